package workflows

import (
	"context"
	"math"

	"github.com/leofalp/stategraph/core/graph"
)

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

// CalculateBMI writes bmi = weight / height², rounded to two decimals.
func CalculateBMI(_ context.Context, state graph.State) (graph.Update, error) {
	weight, err := state.Number("weight")
	if err != nil {
		return nil, err
	}
	height, err := state.Number("height")
	if err != nil {
		return nil, err
	}
	return graph.Update{"bmi": round2(weight / (height * height))}, nil
}

// CategorizeBMI writes the category for bmi.
func CategorizeBMI(_ context.Context, state graph.State) (graph.Update, error) {
	bmi, err := state.Number("bmi")
	if err != nil {
		return nil, err
	}
	return graph.Update{"category": BMICategory(bmi)}, nil
}

// BMICategory maps a BMI to its category. The bands are half-open, so
// values between 24.9 and 25 still count as normal weight.
func BMICategory(bmi float64) string {
	switch {
	case bmi < 18.5:
		return "Underweight"
	case bmi < 25:
		return "Normal weight"
	case bmi < 30:
		return "Overweight"
	default:
		return "Obesity"
	}
}

// NewBMI builds "Calculate BMI" -> "Categorize BMI".
func NewBMI(deps Deps) (*graph.Workflow, error) {
	schema, err := graph.NewSchema(
		graph.Number("weight"),
		graph.Number("height"),
		graph.Number("bmi"),
		graph.Text("category"),
	)
	if err != nil {
		return nil, err
	}

	return graph.NewBuilder(schema, deps.options("bmi")...).
		AddNode("Calculate BMI", CalculateBMI, graph.WithDescription("weight in kg / height in m squared")).
		AddNode("Categorize BMI", CategorizeBMI).
		AddEdge(graph.Start, "Calculate BMI").
		AddEdge("Calculate BMI", "Categorize BMI").
		AddEdge("Categorize BMI", graph.End).
		Compile()
}

// ratio returns numerator / denominator * scale, or 0 when denominator is not positive.
func ratio(numerator, denominator, scale float64) float64 {
	if denominator <= 0 {
		return 0
	}
	return round2(numerator / denominator * scale)
}

// CalculateStrikeRate writes sr = runs / balls * 100.
func CalculateStrikeRate(_ context.Context, state graph.State) (graph.Update, error) {
	runs, err := state.Number("runs")
	if err != nil {
		return nil, err
	}
	balls, err := state.Number("balls")
	if err != nil {
		return nil, err
	}
	return graph.Update{"sr": ratio(runs, balls, 100)}, nil
}

// CalculateBallsPerRun writes ballsperrun = balls / runs.
func CalculateBallsPerRun(_ context.Context, state graph.State) (graph.Update, error) {
	runs, err := state.Number("runs")
	if err != nil {
		return nil, err
	}
	balls, err := state.Number("balls")
	if err != nil {
		return nil, err
	}
	return graph.Update{"ballsperrun": ratio(balls, runs, 1)}, nil
}

// CalculateBoundaryRate writes bountrate = (fours + sixes) / balls * 100.
func CalculateBoundaryRate(_ context.Context, state graph.State) (graph.Update, error) {
	fours, err := state.Number("fours")
	if err != nil {
		return nil, err
	}
	sixes, err := state.Number("sixes")
	if err != nil {
		return nil, err
	}
	balls, err := state.Number("balls")
	if err != nil {
		return nil, err
	}
	return graph.Update{"bountrate": ratio(fours+sixes, balls, 100)}, nil
}

// NewBatting builds three independent calculators that all run in the first superstep.
func NewBatting(deps Deps) (*graph.Workflow, error) {
	schema, err := graph.NewSchema(
		graph.Number("runs"),
		graph.Number("balls"),
		graph.Number("fours"),
		graph.Number("sixes"),
		graph.Number("sr"),
		graph.Number("ballsperrun"),
		graph.Number("bountrate"),
	)
	if err != nil {
		return nil, err
	}

	builder := graph.NewBuilder(schema, deps.options("batting")...)
	for _, step := range []struct {
		name string
		fn   graph.NodeFunc
	}{
		{"Calculate Strike Rate", CalculateStrikeRate},
		{"Calculate Balls Per Run", CalculateBallsPerRun},
		{"Calculate Boundary Rate", CalculateBoundaryRate},
	} {
		builder.AddNode(step.name, step.fn).
			AddEdge(graph.Start, step.name).
			AddEdge(step.name, graph.End)
	}
	return builder.Compile()
}
