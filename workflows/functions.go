package workflows

import "github.com/leofalp/stategraph/core/graph"

// Functions returns every node body by qualified name, for declarative
// definitions. Model-backed entries are only present when deps carries a model.
func Functions(deps Deps) map[string]graph.NodeFunc {
	functions := map[string]graph.NodeFunc{
		"bmi.calculate":           CalculateBMI,
		"bmi.categorize":          CategorizeBMI,
		"batting.strike_rate":     CalculateStrikeRate,
		"batting.balls_per_run":   CalculateBallsPerRun,
		"batting.boundary_rate":   CalculateBoundaryRate,
		"routing.big":             BigNode,
		"routing.small":           SmallNode,
		"routing.pass_through":    PassThrough,
		"routing.count":           CountIteration,
		"routing.big_processed":   processedValue("Big"),
		"routing.small_processed": processedValue("Small"),
	}

	functions["web.fetch"] = deps.fetcher().Node("url", "page", "final_url")

	if deps.Model != nil {
		functions["llm.answer"] = completeField(deps.Model, "question", "answer", func(question string) string { return question })
		functions["llm.outline"] = completeField(deps.Model, "topic", "outline", OutlinePrompt)
		functions["llm.content"] = completeField(deps.Model, "outline", "content", ContentPrompt)
		functions["llm.chat"] = ChatResponse(deps.Model)
		functions["review.find_sentiment"] = FindSentiment(deps.Model)
		functions["review.positive_response"] = PositiveResponse(deps.Model)
		functions["review.run_diagnosis"] = RunDiagnosis(deps.Model)
		functions["review.negative_response"] = NegativeResponse(deps.Model)
		functions["essay.clarity"] = evaluate(deps.Model, "clarity of thought", "clarity_of_thought_feedback")
		functions["essay.depth"] = evaluate(deps.Model, "depth of analysis", "depth_of_analysis_feedback")
		functions["essay.language"] = evaluate(deps.Model, "language used", "language_feedback")
		functions["essay.finalize"] = FinalizeEvaluation(deps.Model)
		functions["web.summarize"] = completeField(deps.Model, "page", "summary", SummaryPrompt)
	}
	return functions
}

// Routers returns every router by qualified name.
func Routers() map[string]graph.RouterFunc {
	return map[string]graph.RouterFunc{
		"routing.decide_next":     DecideNext,
		"routing.check_iteration": CheckIteration,
		"routing.decide_parallel": DecideParallel,
		"review.check_sentiment":  CheckSentiment,
	}
}
