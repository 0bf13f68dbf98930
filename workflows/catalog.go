package workflows

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/leofalp/stategraph/core/graph"
	"github.com/leofalp/stategraph/providers/model"
	"github.com/leofalp/stategraph/providers/tool/webfetch"
)

var (
	// ErrUnknownWorkflow is returned by Lookup for unregistered names.
	ErrUnknownWorkflow = errors.New("unknown workflow")

	// ErrModelRequired is returned when a model-backed workflow is built without a model.
	ErrModelRequired = errors.New("workflow requires a model")
)

// Deps are the collaborators a workflow may need.
type Deps struct {
	Model   model.Model
	Fetcher *webfetch.Fetcher
	// Options are passed to every graph builder.
	Options []graph.Option
}

func (deps Deps) requireModel(workflow string) error {
	if deps.Model == nil {
		return fmt.Errorf("%s: %w", workflow, ErrModelRequired)
	}
	return nil
}

func (deps Deps) fetcher() *webfetch.Fetcher {
	if deps.Fetcher == nil {
		return webfetch.New()
	}
	return deps.Fetcher
}

func (deps Deps) options(name string) []graph.Option {
	return append([]graph.Option{graph.WithName(name)}, deps.Options...)
}

// Line is one labelled value of a workflow report.
type Line struct {
	Label string
	Value string
}

// Entry describes a catalog workflow.
type Entry struct {
	Name        string
	Description string
	NeedsModel  bool
	// Sample is the initial state used when the caller provides none.
	Sample graph.State
	Build  func(Deps) (*graph.Workflow, error)
	// Report renders the interesting fields of a final state.
	Report func(graph.State) []Line
}

// Catalog returns every workflow sorted by name.
func Catalog() []Entry {
	entries := []Entry{
		{
			Name:        "bmi",
			Description: "Calculate a body mass index and categorize it",
			Sample:      graph.State{"weight": 70.0, "height": 1.75},
			Build:       NewBMI,
			Report:      fieldReport("bmi", "category"),
		},
		{
			Name:        "batting",
			Description: "Compute strike rate, balls per run and boundary rate in parallel",
			Sample:      graph.State{"runs": 150, "balls": 120, "fours": 10, "sixes": 5},
			Build:       NewBatting,
			Report:      fieldReport("sr", "ballsperrun", "bountrate"),
		},
		{
			Name:        "simple_llm",
			Description: "Answer a question with a single model call",
			NeedsModel:  true,
			Sample:      graph.State{"question": "What is the capital of France?"},
			Build:       NewSimpleLLM,
			Report:      fieldReport("question", "answer"),
		},
		{
			Name:        "prompt_chain",
			Description: "Generate a blog outline, then the post from the outline",
			NeedsModel:  true,
			Sample:      graph.State{"topic": "The Future of Artificial Intelligence"},
			Build:       NewPromptChain,
			Report:      fieldReport("outline", "content"),
		},
		{
			Name:        "essay",
			Description: "Evaluate an essay on three axes in parallel and summarize",
			NeedsModel:  true,
			Sample:      graph.State{"essay": SampleEssay},
			Build:       NewEssay,
			Report:      fieldReport("individual_scores", "avg_score", "final_feedback"),
		},
		{
			Name:        "review",
			Description: "Classify a review and reply, diagnosing negative ones first",
			NeedsModel:  true,
			Sample:      graph.State{"review": "The app crashes every time I try to upload a photo. This is so frustrating!"},
			Build:       NewReview,
			Report:      fieldReport("review", "sentiment", "diagnosis", "response"),
		},
		{
			Name:        "chatbot",
			Description: "Reply to a conversation; the caller keeps the history",
			NeedsModel:  true,
			Sample:      graph.State{"chat_history": []model.Message{model.UserMessage("Hello!")}},
			Build:       NewChatbot,
			Report:      chatReport,
		},
		{
			Name:        "basic_routing",
			Description: "Route a value to big or small from START",
			Sample:      graph.State{"value": 15},
			Build:       NewBasicRouting,
			Report:      fieldReport("value", "result"),
		},
		{
			Name:        "loop_routing",
			Description: "Loop through small and pass_through until max_iterations",
			Sample:      graph.State{"value": 5, "status": "small", "iteration": 0, "max_iterations": 3},
			Build:       NewLoopRouting,
			Report:      fieldReport("result", "iteration"),
		},
		{
			Name:        "parallel_paths",
			Description: "Fan a value out to big and small and collect both results",
			Sample:      graph.State{"value": 42},
			Build:       NewParallelPaths,
			Report:      fieldReport("results"),
		},
		{
			Name:        "page_summary",
			Description: "Fetch a web page as Markdown and summarize it",
			NeedsModel:  true,
			Sample:      graph.State{"url": "https://go.dev/doc/effective_go"},
			Build:       NewPageSummary,
			Report:      fieldReport("final_url", "summary"),
		},
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// Lookup returns the catalog entry called name.
func Lookup(name string) (Entry, error) {
	for _, entry := range Catalog() {
		if entry.Name == name {
			return entry, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %q", ErrUnknownWorkflow, name)
}

func fieldReport(fields ...string) func(graph.State) []Line {
	return func(state graph.State) []Line {
		lines := make([]Line, 0, len(fields))
		for _, field := range fields {
			value, ok := state.Get(field)
			if !ok {
				continue
			}
			lines = append(lines, Line{Label: field, Value: FormatValue(value)})
		}
		return lines
	}
}

func chatReport(state graph.State) []Line {
	history, err := graph.ListOf[model.Message](state, "chat_history")
	if err != nil || len(history) == 0 {
		return nil
	}
	last := history[len(history)-1]
	return []Line{{Label: string(last.Role), Value: last.Content}}
}

// FormatValue renders a state value for humans. Whole floats print without
// a fraction.
func FormatValue(value any) string {
	switch typed := value.(type) {
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case string:
		return typed
	case []any:
		parts := make([]string, len(typed))
		for index, element := range typed {
			parts[index] = FormatValue(element)
		}
		return fmt.Sprintf("%v", parts)
	default:
		return fmt.Sprintf("%v", typed)
	}
}
