package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/leofalp/stategraph/core/overview"
	"github.com/leofalp/stategraph/internal/config"
	"github.com/leofalp/stategraph/providers/model"
	"github.com/leofalp/stategraph/providers/observability"
	"github.com/leofalp/stategraph/providers/observability/otelobs"
	"github.com/leofalp/stategraph/providers/observability/promobs"
	"github.com/leofalp/stategraph/providers/observability/slogobs"
	"github.com/leofalp/stategraph/workflows"
)

// app holds the global flags and the collaborators built from them.
type app struct {
	configPath  string
	logLevel    string
	logFormat   string
	metricsAddr string
	traceStdout bool

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	config    *config.Config
	observer  observability.Provider
	overview  *overview.Overview
	shutdowns []func(context.Context) error

	// newModel builds the model collaborator. Tests replace it.
	newModel func(*config.Config, observability.Provider) (model.Model, error)
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{
		in:     in,
		out:    out,
		errOut: errOut,
		newModel: func(current *config.Config, provider observability.Provider) (model.Model, error) {
			return current.NewModel(provider)
		},
	}
}

// setup loads the configuration, applies flag overrides and starts the
// observability backends.
func (application *app) setup(cmd *cobra.Command) error {
	loaded, err := config.Load(application.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		loaded.Log.Level = application.logLevel
	}
	if flags.Changed("log-format") {
		loaded.Log.Format = application.logFormat
	}
	if flags.Changed("metrics-addr") {
		loaded.Metrics.Addr = application.metricsAddr
	}
	if flags.Changed("trace-stdout") {
		loaded.Metrics.TraceStdout = application.traceStdout
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	application.config = loaded

	providers := []observability.Provider{
		slogobs.New(
			slogobs.WithOutput(application.errOut),
			slogobs.WithFormat(slogobs.ParseFormat(loaded.Log.Format)),
			slogobs.WithLevel(loaded.LogLevel()),
		),
	}

	if loaded.Metrics.Addr != "" {
		registry := prometheus.NewRegistry()
		providers = append(providers, promobs.New(registry, nil))
		if err := application.serveMetrics(loaded.Metrics.Addr, registry); err != nil {
			return err
		}
	}

	if loaded.Metrics.TraceStdout {
		tracing, shutdown, err := otelobs.NewStdoutTracing(application.errOut, "stategraph")
		if err != nil {
			return err
		}
		providers = append(providers, tracing)
		application.shutdowns = append(application.shutdowns, shutdown)
	}

	application.observer = observability.Multi(providers...)
	application.overview = overview.New()
	if loaded.Model.Pricing != (overview.Pricing{}) {
		application.overview.SetPricing(loaded.Model.Name, loaded.Model.Pricing)
	}
	return nil
}

func (application *app) serveMetrics(addr string, registry *prometheus.Registry) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(application.errOut, "metrics server: %v\n", err)
		}
	}()
	application.shutdowns = append(application.shutdowns, server.Shutdown)
	return nil
}

// teardown flushes exporters and stops the metrics server.
func (application *app) teardown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	for index := len(application.shutdowns) - 1; index >= 0; index-- {
		if err := application.shutdowns[index](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	application.shutdowns = nil
	return errors.Join(errs...)
}

// context attaches the observer and the usage overview to ctx.
func (application *app) context(ctx context.Context) context.Context {
	if application.observer != nil {
		ctx = observability.ContextWithObserver(ctx, application.observer)
	}
	if application.overview != nil {
		ctx = application.overview.ToContext(ctx)
	}
	return ctx
}

// deps builds the workflow dependencies. The model is only built when
// needsModel is set, so pure workflows run without credentials.
func (application *app) deps(needsModel bool) (workflows.Deps, error) {
	deps := workflows.Deps{Options: application.config.GraphOptions(application.observer)}
	if !needsModel {
		return deps, nil
	}
	llm, err := application.newModel(application.config, application.observer)
	if err != nil {
		return deps, err
	}
	deps.Model = llm
	return deps, nil
}
