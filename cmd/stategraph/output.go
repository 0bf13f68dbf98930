package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/leofalp/stategraph/core/graph"
	"github.com/leofalp/stategraph/core/overview"
	"github.com/leofalp/stategraph/workflows"
)

var (
	colorAccent = lipgloss.Color("#20B9B4")
	colorMuted  = lipgloss.Color("#6C7A89")
	colorError  = lipgloss.Color("#E74C3C")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	labelStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)
	errorStyle = lipgloss.NewStyle().Foreground(colorError)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(0, 1)
)

func printTitle(out io.Writer, title string) {
	fmt.Fprintln(out, titleStyle.Render(title))
}

// printLines renders labelled values in a box, one per line.
func printLines(out io.Writer, lines []workflows.Line) {
	if len(lines) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("(no output)"))
		return
	}
	width := 0
	for _, line := range lines {
		width = max(width, len(line.Label))
	}

	rendered := make([]string, 0, len(lines))
	for _, line := range lines {
		label := labelStyle.Render(fmt.Sprintf("%-*s", width, line.Label))
		rendered = append(rendered, label+"  "+line.Value)
	}
	fmt.Fprintln(out, boxStyle.Render(strings.Join(rendered, "\n")))
}

// stateLines lists every field of state sorted by name.
func stateLines(state graph.State) []workflows.Line {
	keys := make([]string, 0, len(state))
	for key := range state {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	lines := make([]workflows.Line, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, workflows.Line{Label: key, Value: workflows.FormatValue(state[key])})
	}
	return lines
}

func printEvent(out io.Writer, event graph.Event) {
	switch event.Type {
	case graph.EventRunStart:
		fmt.Fprintln(out, mutedStyle.Render("run "+event.RunID))
	case graph.EventStepStart:
		fmt.Fprintf(out, "%s %s\n", titleStyle.Render(fmt.Sprintf("step %d", event.Step)), strings.Join(event.Nodes, ", "))
	case graph.EventNodeComplete:
		fmt.Fprintf(out, "  %s %s %s\n", labelStyle.Render(event.Node), mutedStyle.Render(event.Duration.String()), formatUpdate(event.Update))
	case graph.EventStepComplete:
		if len(event.Nodes) > 0 {
			fmt.Fprintf(out, "  %s %s\n", mutedStyle.Render("next"), strings.Join(event.Nodes, ", "))
		}
	case graph.EventRunComplete:
		fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("done in %s", event.Duration)))
	}
}

func formatUpdate(update graph.Update) string {
	if len(update) == 0 {
		return ""
	}
	keys := make([]string, 0, len(update))
	for key := range update {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		value := workflows.FormatValue(update[key])
		if len(value) > 60 {
			value = value[:57] + "..."
		}
		parts = append(parts, key+"="+value)
	}
	return strings.Join(parts, " ")
}

// printUsage prints token usage when the model was called.
func printUsage(out io.Writer, summary overview.Summary) {
	if summary.Calls == 0 {
		return
	}
	line := fmt.Sprintf("%d model calls, %d tokens (%d prompt, %d completion)",
		summary.Calls, summary.TotalUsage.TotalTokens, summary.TotalUsage.PromptTokens, summary.TotalUsage.CompletionTokens)
	if summary.Cost > 0 {
		line += fmt.Sprintf(", $%.4f", summary.Cost)
	}
	if summary.Failures > 0 {
		line += errorStyle.Render(fmt.Sprintf(", %d failed", summary.Failures))
	}
	fmt.Fprintln(out, mutedStyle.Render(line))
}
