package workflows

import (
	"context"
	"fmt"
	"strings"

	"github.com/leofalp/stategraph/core/graph"
	"github.com/leofalp/stategraph/providers/model"
)

// SampleEssay is the default input of the essay workflow.
const SampleEssay = `A piece is a part of something big. When you break a chocolet, you get many pieces. Each piece may be small but it is still important. If one piece is missing, then the chocolet is not full. I like pieces because I can share them with my friends and family.
In school, my teacher gives us a piece of paper to write on. That small piece helps me learn and do my homework. When we do puzzles, every piece has a special shape. If we lose one piece, the puzzle never gets finish. It makes me feel sad because the picture looks wrong.
My mom cuts pizza into pieces so everyone gets some. I like the biggest piece but my mom says sharing is good. When I give my sister a piece, she smiles and that makes me happy.
A piece can also be a piece of art or music. My brother plays a music piece on piano and it sounds nice. I think every piece matters, even if it is small. Small pieces make big things possible.`

// Feedback is the structured reply of every essay evaluator.
type Feedback struct {
	Feedback string `json:"feedback" description:"detailed feedback on the essay" validate:"required"`
	Score    int    `json:"score" description:"score out of 10 for the essay" validate:"min=0,max=10"`
}

// EvaluationPrompt asks for feedback on one aspect of essay.
func EvaluationPrompt(aspect, essay string) string {
	return fmt.Sprintf("Provide detailed feedback on the %s in the following essay:\n\n%s\n\n"+
		"Your response should be structured as JSON with 'feedback' and 'score' (out of 10).", aspect, essay)
}

// evaluate returns a node scoring one aspect of the essay.
func evaluate(llm model.Extractor, aspect, feedbackField string) graph.NodeFunc {
	return func(ctx context.Context, state graph.State) (graph.Update, error) {
		essay, err := state.Text("essay")
		if err != nil {
			return nil, err
		}
		result, err := model.ExtractAs[Feedback](ctx, llm, EvaluationPrompt(aspect, essay))
		if err != nil {
			return nil, err
		}
		return graph.Update{
			feedbackField:       result.Feedback,
			"individual_scores": []int{result.Score},
		}, nil
	}
}

// FinalizeEvaluation averages individual_scores and asks the model for a
// summary of the three feedbacks.
func FinalizeEvaluation(llm model.Extractor) graph.NodeFunc {
	return func(ctx context.Context, state graph.State) (graph.Update, error) {
		scores, err := graph.ListOf[int](state, "individual_scores")
		if err != nil {
			return nil, err
		}
		if len(scores) == 0 {
			return nil, fmt.Errorf("no individual scores to average")
		}
		total := 0
		for _, score := range scores {
			total += score
		}
		average := round2(float64(total) / float64(len(scores)))

		var prompt strings.Builder
		prompt.WriteString("Based on the following individual feedbacks and scores, provide a comprehensive final feedback summary for the essay.\n")
		for _, field := range []struct{ label, key string }{
			{"Clarity of Thought Feedback", "clarity_of_thought_feedback"},
			{"Depth of Analysis Feedback", "depth_of_analysis_feedback"},
			{"Language Feedback", "language_feedback"},
		} {
			text, err := state.Text(field.key)
			if err != nil {
				return nil, err
			}
			fmt.Fprintf(&prompt, "\n%s: %s\n", field.label, text)
		}
		fmt.Fprintf(&prompt, "\nIndividual Scores: %v\n", scores)
		prompt.WriteString("\nYour final feedback should include an overall average score out of 10 and a summary of strengths and areas for improvement.")

		result, err := model.ExtractAs[Feedback](ctx, llm, prompt.String())
		if err != nil {
			return nil, err
		}
		return graph.Update{"avg_score": average, "final_feedback": result.Feedback}, nil
	}
}

// NewEssay builds three parallel evaluators that fan in to "Finalize Evaluation".
func NewEssay(deps Deps) (*graph.Workflow, error) {
	if err := deps.requireModel("essay"); err != nil {
		return nil, err
	}
	schema, err := graph.NewSchema(
		graph.Text("essay"),
		graph.Text("clarity_of_thought_feedback"),
		graph.Text("depth_of_analysis_feedback"),
		graph.Text("language_feedback"),
		graph.List("individual_scores").Append(),
		graph.Number("avg_score"),
		graph.Text("final_feedback"),
	)
	if err != nil {
		return nil, err
	}

	builder := graph.NewBuilder(schema, deps.options("essay")...)
	for _, evaluator := range []struct{ name, aspect, field string }{
		{"Evaluate Clarity of Thought", "clarity of thought", "clarity_of_thought_feedback"},
		{"Evaluate Depth of Analysis", "depth of analysis", "depth_of_analysis_feedback"},
		{"Evaluate Language", "language used", "language_feedback"},
	} {
		builder.AddNode(evaluator.name, evaluate(deps.Model, evaluator.aspect, evaluator.field)).
			AddEdge(graph.Start, evaluator.name).
			AddEdge(evaluator.name, "Finalize Evaluation")
	}
	builder.AddNode("Finalize Evaluation", FinalizeEvaluation(deps.Model)).
		AddEdge("Finalize Evaluation", graph.End)
	return builder.Compile()
}
