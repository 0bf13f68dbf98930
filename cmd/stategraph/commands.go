package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leofalp/stategraph/core/graph"
	"github.com/leofalp/stategraph/internal/config"
	"github.com/leofalp/stategraph/internal/definition"
	"github.com/leofalp/stategraph/providers/model"
	"github.com/leofalp/stategraph/providers/model/fake"
	"github.com/leofalp/stategraph/workflows"
)

func newListCommand(application *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the built-in workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries := workflows.Catalog()
			width := 0
			for _, entry := range entries {
				width = max(width, len(entry.Name))
			}

			printTitle(application.out, "Workflows")
			for _, entry := range entries {
				line := fmt.Sprintf("  %s  %s", labelStyle.Render(fmt.Sprintf("%-*s", width, entry.Name)), entry.Description)
				if entry.NeedsModel {
					line += " " + mutedStyle.Render("[model]")
				}
				fmt.Fprintln(application.out, line)
			}
			return nil
		},
	}
}

type runOptions struct {
	inputs    []string
	inputFile string
	stream    bool
	threadID  string
}

func newRunCommand(application *app) *cobra.Command {
	options := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <workflow>",
		Short: "Run a built-in workflow",
		Long: `Run a built-in workflow and print its final state.

Without --input or --input-file the workflow's sample input is used.`,
		Example: `  stategraph run bmi --input weight=70 --input height=1.75
  stategraph run loop_routing --stream
  stategraph run essay --input-file essay.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := workflows.Lookup(args[0])
			if err != nil {
				return err
			}
			deps, err := application.deps(entry.NeedsModel)
			if err != nil {
				return err
			}
			workflow, err := entry.Build(deps)
			if err != nil {
				return err
			}

			base := entry.Sample
			if len(options.inputs) > 0 || options.inputFile != "" {
				base = nil
			}
			initial, err := buildInput(base, options.inputFile, options.inputs)
			if err != nil {
				return err
			}

			final, err := application.execute(cmd, workflow, initial, options)
			if err != nil {
				return err
			}
			printLines(application.out, entry.Report(final))
			printUsage(application.out, application.overview.Summary())
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVar(&options.inputs, "input", nil, "initial state entry as key=value (repeatable)")
	flags.StringVar(&options.inputFile, "input-file", "", "YAML file holding the initial state")
	flags.BoolVar(&options.stream, "stream", false, "print every superstep as it completes")
	flags.StringVar(&options.threadID, "thread-id", "", "session identifier attached to events and logs")
	return cmd
}

// execute invokes workflow, streaming the events when requested.
func (application *app) execute(cmd *cobra.Command, workflow *graph.Workflow, initial graph.State, options *runOptions) (graph.State, error) {
	ctx := application.context(cmd.Context())
	var invokeOptions []graph.InvokeOption
	if options.threadID != "" {
		invokeOptions = append(invokeOptions, graph.WithThreadID(options.threadID))
	}

	application.overview.StartExecution()
	defer application.overview.EndExecution()

	if !options.stream {
		return workflow.Invoke(ctx, initial, invokeOptions...)
	}

	var final graph.State
	for event, err := range workflow.Stream(ctx, initial, invokeOptions...).Iter() {
		if err != nil {
			return nil, err
		}
		printEvent(application.out, event)
		if event.Type == graph.EventRunComplete {
			final = event.State
		}
	}
	return final, nil
}

func newDrawCommand(application *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "draw <workflow>",
		Short: "Print the graph of a built-in workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			entry, err := workflows.Lookup(args[0])
			if err != nil {
				return err
			}
			deps, err := application.deps(false)
			if err != nil {
				return err
			}
			if entry.NeedsModel {
				// Drawing never calls the model.
				deps.Model = fake.New()
			}
			workflow, err := entry.Build(deps)
			if err != nil {
				return err
			}
			return draw(application, workflow, format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "mermaid", "diagram format: mermaid or ascii")
	return cmd
}

func draw(application *app, workflow *graph.Workflow, format string) error {
	switch format {
	case "mermaid":
		fmt.Fprint(application.out, workflow.DrawMermaid())
	case "ascii":
		fmt.Fprint(application.out, workflow.DrawASCII())
	default:
		return fmt.Errorf("unknown format %q, expected mermaid or ascii", format)
	}
	return nil
}

func newChatCommand(application *app) *cobra.Command {
	var threadID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the model; type exit or quit to leave",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := application.deps(true)
			if err != nil {
				return err
			}
			workflow, err := workflows.NewChatbot(deps)
			if err != nil {
				return err
			}

			ctx := application.context(cmd.Context())
			var history []model.Message
			scanner := bufio.NewScanner(application.in)
			printTitle(application.out, "Chat started, type exit or quit to leave")
			for {
				fmt.Fprint(application.out, labelStyle.Render("you> "))
				if !scanner.Scan() {
					break
				}
				message := strings.TrimSpace(scanner.Text())
				if message == "" {
					continue
				}
				if lowered := strings.ToLower(message); lowered == "exit" || lowered == "quit" {
					break
				}

				history = append(history, model.UserMessage(message))
				final, err := workflow.Invoke(ctx, graph.State{"chat_history": history}, graph.WithThreadID(threadID))
				if err != nil {
					fmt.Fprintln(application.out, errorStyle.Render("error: "+err.Error()))
					history = history[:len(history)-1]
					continue
				}
				if history, err = graph.ListOf[model.Message](final, "chat_history"); err != nil {
					return err
				}
				fmt.Fprintf(application.out, "%s %s\n", titleStyle.Render("bot>"), history[len(history)-1].Content)
			}
			fmt.Fprintln(application.out)
			printUsage(application.out, application.overview.Summary())
			return scanner.Err()
		},
	}
	cmd.Flags().StringVar(&threadID, "thread-id", "chat", "session identifier attached to events and logs")
	return cmd
}

func newDefineCommand(application *app) *cobra.Command {
	options := &runOptions{}
	var drawFormat string
	cmd := &cobra.Command{
		Use:   "define <file.hcl>",
		Short: "Compile and run a workflow declared in HCL",
		Long: `Compile a workflow declared in HCL against the built-in functions and
routers, then run it with the definition's input block merged with --input.

Model-backed functions (llm.*, review.*, essay.*, web.summarize) are only
available when a model is configured.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := definition.LoadFile(args[0])
			if err != nil {
				return err
			}

			deps, err := application.deps(true)
			if errors.Is(err, config.ErrMissingAPIKey) {
				// Pure definitions still compile without a model.
				deps, err = application.deps(false)
			}
			if err != nil {
				return err
			}
			registry := definition.NewRegistry(workflows.Functions(deps), workflows.Routers())
			workflow, err := loaded.Compile(registry, deps.Options...)
			if err != nil {
				return err
			}

			if drawFormat != "" {
				return draw(application, workflow, drawFormat)
			}

			initial, err := buildInput(loaded.Input, options.inputFile, options.inputs)
			if err != nil {
				return err
			}
			final, err := application.execute(cmd, workflow, initial, options)
			if err != nil {
				return err
			}
			printLines(application.out, stateLines(final))
			printUsage(application.out, application.overview.Summary())
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&drawFormat, "draw", "", "print the graph (mermaid or ascii) instead of running it")
	flags.Lookup("draw").NoOptDefVal = "mermaid"
	flags.StringArrayVar(&options.inputs, "input", nil, "initial state entry as key=value (repeatable)")
	flags.StringVar(&options.inputFile, "input-file", "", "YAML file holding the initial state")
	flags.BoolVar(&options.stream, "stream", false, "print every superstep as it completes")
	flags.StringVar(&options.threadID, "thread-id", "", "session identifier attached to events and logs")
	return cmd
}
