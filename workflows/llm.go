package workflows

import (
	"context"
	"fmt"

	"github.com/leofalp/stategraph/core/graph"
	"github.com/leofalp/stategraph/providers/model"
)

// maxPageChars bounds the page text sent to the summarizer.
const maxPageChars = 12000

// completeField returns a node that renders a prompt from one text field and
// stores the completion in another.
func completeField(llm model.Completer, input, output string, render func(string) string) graph.NodeFunc {
	return func(ctx context.Context, state graph.State) (graph.Update, error) {
		value, err := state.Text(input)
		if err != nil {
			return nil, err
		}
		reply, err := llm.Complete(ctx, render(value))
		if err != nil {
			return nil, err
		}
		return graph.Update{output: reply}, nil
	}
}

// NewSimpleLLM builds a single "Get LLM Response" node answering question.
func NewSimpleLLM(deps Deps) (*graph.Workflow, error) {
	if err := deps.requireModel("simple_llm"); err != nil {
		return nil, err
	}
	schema, err := graph.NewSchema(graph.Text("question"), graph.Text("answer"))
	if err != nil {
		return nil, err
	}

	return graph.NewBuilder(schema, deps.options("simple_llm")...).
		AddNode("Get LLM Response", completeField(deps.Model, "question", "answer", func(question string) string {
			return question
		})).
		AddEdge(graph.Start, "Get LLM Response").
		AddEdge("Get LLM Response", graph.End).
		Compile()
}

// OutlinePrompt asks for a blog outline about topic.
func OutlinePrompt(topic string) string {
	return "Generate a detailed outline for a blog post about: " + topic
}

// ContentPrompt asks for the post written from outline.
func ContentPrompt(outline string) string {
	return "Write a detailed blog post based on the following outline:\n" + outline
}

// NewPromptChain builds "Generate Outline" -> "Generate Content".
func NewPromptChain(deps Deps) (*graph.Workflow, error) {
	if err := deps.requireModel("prompt_chain"); err != nil {
		return nil, err
	}
	schema, err := graph.NewSchema(graph.Text("topic"), graph.Text("outline"), graph.Text("content"))
	if err != nil {
		return nil, err
	}

	return graph.NewBuilder(schema, deps.options("prompt_chain")...).
		AddNode("Generate Outline", completeField(deps.Model, "topic", "outline", OutlinePrompt)).
		AddNode("Generate Content", completeField(deps.Model, "outline", "content", ContentPrompt)).
		AddEdge(graph.Start, "Generate Outline").
		AddEdge("Generate Outline", "Generate Content").
		AddEdge("Generate Content", graph.End).
		Compile()
}

// ChatResponse sends chat_history to the model and appends the reply.
func ChatResponse(llm model.Chatter) graph.NodeFunc {
	return func(ctx context.Context, state graph.State) (graph.Update, error) {
		history, err := graph.ListOf[model.Message](state, "chat_history")
		if err != nil {
			return nil, err
		}
		if len(history) == 0 {
			return nil, fmt.Errorf("chat_history is empty")
		}

		reply, err := llm.Chat(ctx, history)
		if err != nil {
			return nil, err
		}
		return graph.Update{"chat_history": []model.Message{reply}}, nil
	}
}

// NewChatbot builds a single "Chat Response" node over an append-reduced
// chat_history. Nothing is persisted between invocations.
func NewChatbot(deps Deps) (*graph.Workflow, error) {
	if err := deps.requireModel("chatbot"); err != nil {
		return nil, err
	}
	schema, err := graph.NewSchema(graph.List("chat_history").Append())
	if err != nil {
		return nil, err
	}

	return graph.NewBuilder(schema, deps.options("chatbot")...).
		AddNode("Chat Response", ChatResponse(deps.Model)).
		AddEdge(graph.Start, "Chat Response").
		AddEdge("Chat Response", graph.End).
		Compile()
}

// SummaryPrompt asks for a summary of page, truncated to a bounded length.
func SummaryPrompt(page string) string {
	if len(page) > maxPageChars {
		page = page[:maxPageChars]
	}
	return "Summarize the following web page in a few short paragraphs. Keep the key facts and skip navigation text.\n\n" + page
}

// NewPageSummary builds fetch_page -> summarize.
func NewPageSummary(deps Deps) (*graph.Workflow, error) {
	if err := deps.requireModel("page_summary"); err != nil {
		return nil, err
	}
	schema, err := graph.NewSchema(
		graph.Text("url"),
		graph.Text("page"),
		graph.Text("final_url"),
		graph.Text("summary"),
	)
	if err != nil {
		return nil, err
	}

	return graph.NewBuilder(schema, deps.options("page_summary")...).
		AddNode("fetch_page", deps.fetcher().Node("url", "page", "final_url"), graph.WithDescription("HTTP GET converted to Markdown")).
		AddNode("summarize", completeField(deps.Model, "page", "summary", SummaryPrompt)).
		AddEdge(graph.Start, "fetch_page").
		AddEdge("fetch_page", "summarize").
		AddEdge("summarize", graph.End).
		Compile()
}
