package workflows

import (
	"context"
	"fmt"

	"github.com/leofalp/stategraph/core/graph"
	"github.com/leofalp/stategraph/providers/model"
)

// Sentiment is the structured reply of find_sentiment.
type Sentiment struct {
	Sentiment string `json:"sentiment" description:"Sentiment of the review" enum:"positive,negative" validate:"oneof=positive negative"`
}

// Diagnosis is the structured reply of run_diagnosis.
type Diagnosis struct {
	IssueType string `json:"issue_type" description:"The category of issue mentioned in the review" enum:"UX,Performance,Bug,Support,Other" validate:"oneof=UX Performance Bug Support Other"`
	Tone      string `json:"tone" description:"The emotional tone expressed by the user" enum:"angry,frustrated,disappointed,calm" validate:"oneof=angry frustrated disappointed calm"`
	Urgency   string `json:"urgency" description:"How urgent or critical the issue appears to be" enum:"low,medium,high" validate:"oneof=low medium high"`
}

// FindSentiment classifies review.
func FindSentiment(llm model.Extractor) graph.NodeFunc {
	return func(ctx context.Context, state graph.State) (graph.Update, error) {
		review, err := state.Text("review")
		if err != nil {
			return nil, err
		}
		result, err := model.ExtractAs[Sentiment](ctx, llm, "For the following review find out the sentiment \n "+review)
		if err != nil {
			return nil, err
		}
		return graph.Update{"sentiment": result.Sentiment}, nil
	}
}

// CheckSentiment routes positive reviews to positive_response and the rest to run_diagnosis.
func CheckSentiment(_ context.Context, state graph.State) (graph.Route, error) {
	sentiment, err := state.Text("sentiment")
	if err != nil {
		return nil, err
	}
	if sentiment == "positive" {
		return graph.To("positive_response"), nil
	}
	return graph.To("run_diagnosis"), nil
}

// PositiveResponse writes a thank-you reply.
func PositiveResponse(llm model.Completer) graph.NodeFunc {
	return completeField(llm, "review", "response", func(review string) string {
		return fmt.Sprintf("Write a warm thank-you message in response to this review:\n\n%q\n\n"+
			"Also, kindly ask the user to leave feedback on our website.", review)
	})
}

// RunDiagnosis extracts issue type, tone and urgency into diagnosis.
func RunDiagnosis(llm model.Extractor) graph.NodeFunc {
	return func(ctx context.Context, state graph.State) (graph.Update, error) {
		review, err := state.Text("review")
		if err != nil {
			return nil, err
		}
		result, err := model.ExtractAs[Diagnosis](ctx, llm,
			"Diagnose this negative review:\n\n"+review+"\n\nReturn issue_type, tone, and urgency.")
		if err != nil {
			return nil, err
		}
		return graph.Update{"diagnosis": map[string]any{
			"issue_type": result.IssueType,
			"tone":       result.Tone,
			"urgency":    result.Urgency,
		}}, nil
	}
}

// NegativeResponse writes a resolution message from diagnosis.
func NegativeResponse(llm model.Completer) graph.NodeFunc {
	return func(ctx context.Context, state graph.State) (graph.Update, error) {
		diagnosis, err := state.Record("diagnosis")
		if err != nil {
			return nil, err
		}
		prompt := fmt.Sprintf("You are a support assistant.\n"+
			"The user had a '%v' issue, sounded '%v', and marked urgency as '%v'.\n"+
			"Write an empathetic, helpful resolution message.",
			diagnosis["issue_type"], diagnosis["tone"], diagnosis["urgency"])
		reply, err := llm.Complete(ctx, prompt)
		if err != nil {
			return nil, err
		}
		return graph.Update{"response": reply}, nil
	}
}

// NewReview builds find_sentiment, a path-map-free router to
// positive_response or run_diagnosis, and run_diagnosis -> negative_response.
func NewReview(deps Deps) (*graph.Workflow, error) {
	if err := deps.requireModel("review"); err != nil {
		return nil, err
	}
	schema, err := graph.NewSchema(
		graph.Text("review"),
		graph.Text("sentiment"),
		graph.Record("diagnosis"),
		graph.Text("response"),
	)
	if err != nil {
		return nil, err
	}

	return graph.NewBuilder(schema, deps.options("review")...).
		AddNode("find_sentiment", FindSentiment(deps.Model)).
		AddNode("positive_response", PositiveResponse(deps.Model)).
		AddNode("run_diagnosis", RunDiagnosis(deps.Model)).
		AddNode("negative_response", NegativeResponse(deps.Model)).
		AddEdge(graph.Start, "find_sentiment").
		AddConditionalEdges("find_sentiment", CheckSentiment, nil, graph.WithRouterName("check_sentiment")).
		AddEdge("positive_response", graph.End).
		AddEdge("run_diagnosis", "negative_response").
		AddEdge("negative_response", graph.End).
		Compile()
}
