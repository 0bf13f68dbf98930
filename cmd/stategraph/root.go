package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand(application *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stategraph",
		Short: "Run state-graph workflows",
		Long: `stategraph runs stateful workflow graphs: nodes update a shared state,
routers pick the next nodes and independent nodes run in parallel supersteps.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return application.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return application.teardown()
		},
	}
	rootCmd.SetIn(application.in)
	rootCmd.SetOut(application.out)
	rootCmd.SetErr(application.errOut)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&application.configPath, "config", "", "YAML configuration file")
	flags.StringVar(&application.logLevel, "log-level", "info", "log level: trace, debug, info, warn or error")
	flags.StringVar(&application.logFormat, "log-format", "text", "log format: text or json")
	flags.StringVar(&application.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flags.BoolVar(&application.traceStdout, "trace-stdout", false, "print OpenTelemetry spans to stderr")

	rootCmd.AddCommand(
		newListCommand(application),
		newRunCommand(application),
		newDrawCommand(application),
		newChatCommand(application),
		newDefineCommand(application),
	)
	return rootCmd
}
