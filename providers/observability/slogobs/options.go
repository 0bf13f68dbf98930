package slogobs

import (
	"io"
	"log/slog"
	"os"
)

// Option configures an Observer created by [New].
type Option func(*config)

type config struct {
	format Format
	level  slog.Level
	output io.Writer
	logger *slog.Logger // If provided, used directly and the other fields are ignored
}

// WithFormat selects the text or JSON handler.
func WithFormat(format Format) Option {
	return func(c *config) {
		c.format = format
	}
}

// WithLevel sets the minimum level that reaches the output.
func WithLevel(level slog.Level) Option {
	return func(c *config) {
		c.level = level
	}
}

// WithOutput sets the writer logs are written to. Defaults to os.Stderr so
// that command output on stdout stays clean.
func WithOutput(output io.Writer) Option {
	return func(c *config) {
		c.output = output
	}
}

// WithLogger uses an existing logger instead of building a handler.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

func defaultConfig() *config {
	return &config{
		format: GetFormatFromEnv(),
		level:  GetLogLevelFromEnv(),
		output: os.Stderr,
	}
}

func applyOptions(opts ...Option) *config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// newHandler builds the slog handler described by cfg.
func newHandler(cfg *config) slog.Handler {
	handlerOptions := &slog.HandlerOptions{
		Level: cfg.level,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.LevelKey {
				if level, isLevel := attr.Value.Any().(slog.Level); isLevel && level <= LevelTrace {
					attr.Value = slog.StringValue("TRACE")
				}
			}
			return attr
		},
	}

	if cfg.format == FormatJSON {
		return slog.NewJSONHandler(cfg.output, handlerOptions)
	}
	return slog.NewTextHandler(cfg.output, handlerOptions)
}
