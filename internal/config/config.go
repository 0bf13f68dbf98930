package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/leofalp/stategraph/core/graph"
	"github.com/leofalp/stategraph/core/overview"
	"github.com/leofalp/stategraph/providers/model"
	"github.com/leofalp/stategraph/providers/model/fake"
	"github.com/leofalp/stategraph/providers/model/openai"
	"github.com/leofalp/stategraph/providers/observability"
	"github.com/leofalp/stategraph/providers/observability/slogobs"
)

// Environment variables read by Load after the YAML file.
const (
	EnvAPIKey         = "OPENAI_API_KEY"
	EnvBaseURL        = "OPENAI_API_BASE_URL"
	EnvModel          = "STATEGRAPH_MODEL"
	EnvRecursionLimit = "STATEGRAPH_RECURSION_LIMIT"
	EnvMaxConcurrency = "STATEGRAPH_MAX_CONCURRENCY"
	EnvMetricsAddr    = "STATEGRAPH_METRICS_ADDR"
	EnvLogLevel       = "STATEGRAPH_LOG_LEVEL"
	EnvLogFormat      = "STATEGRAPH_LOG_FORMAT"
)

// Model providers.
const (
	ProviderOpenAI = "openai"
	ProviderFake   = "fake"
)

// ErrMissingAPIKey is returned by NewModel when the openai provider has no key.
var ErrMissingAPIKey = errors.New(EnvAPIKey + " is not set")

// Config is the runtime configuration of the stategraph CLI.
type Config struct {
	Model   ModelConfig   `yaml:"model"`
	Graph   GraphConfig   `yaml:"graph"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ModelConfig selects and tunes the model collaborator.
type ModelConfig struct {
	Provider     string  `yaml:"provider" validate:"oneof=openai fake"`
	Name         string  `yaml:"name" validate:"required"`
	APIKey       string  `yaml:"api_key"`
	BaseURL      string  `yaml:"base_url" validate:"omitempty,url"`
	SystemPrompt string  `yaml:"system_prompt"`
	Temperature  float32 `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens    int     `yaml:"max_tokens" validate:"gte=0"`

	// Timeout bounds each attempt.
	Timeout   time.Duration    `yaml:"timeout" validate:"gte=0"`
	Retry     RetryConfig      `yaml:"retry"`
	RateLimit RateLimitConfig  `yaml:"rate_limit"`
	Pricing   overview.Pricing `yaml:"pricing"`

	// FakeReplies script the fake provider, keyed by prompt substring.
	FakeReplies map[string]string `yaml:"fake_replies"`
	FakeDefault string            `yaml:"fake_default"`
}

// RetryConfig mirrors model.RetryConfig.
type RetryConfig struct {
	Enabled        bool          `yaml:"enabled"`
	MaxRetries     int           `yaml:"max_retries" validate:"gte=1,lte=10"`
	InitialBackoff time.Duration `yaml:"initial_backoff" validate:"gte=0"`
	MaxBackoff     time.Duration `yaml:"max_backoff" validate:"gte=0"`
}

// RateLimitConfig configures a token bucket in front of the model.
// A zero rate disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
	Burst             int     `yaml:"burst" validate:"gte=0"`
}

// GraphConfig holds the workflow defaults.
type GraphConfig struct {
	RecursionLimit   int           `yaml:"recursion_limit" validate:"gte=1"`
	MaxConcurrency   int           `yaml:"max_concurrency" validate:"gte=0"`
	ExecutionTimeout time.Duration `yaml:"execution_timeout" validate:"gte=0"`
	NodeTimeout      time.Duration `yaml:"node_timeout" validate:"gte=0"`
	LastWriteWins    bool          `yaml:"last_write_wins"`
}

// LogConfig configures the slog observer.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn warning error TRACE DEBUG INFO WARN WARNING ERROR"`
	Format string `yaml:"format" validate:"oneof=text json"`
	// Calls sets the detail of model call logs.
	Calls string `yaml:"calls" validate:"oneof=minimal standard verbose"`
}

// MetricsConfig configures the exporters.
type MetricsConfig struct {
	// Addr serves Prometheus metrics on /metrics when set.
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
	// TraceStdout exports OpenTelemetry spans to stderr.
	TraceStdout bool `yaml:"trace_stdout"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Provider: ProviderOpenAI,
			Name:     openai.DefaultModel,
			Timeout:  2 * time.Minute,
			Retry: RetryConfig{
				Enabled:        true,
				MaxRetries:     3,
				InitialBackoff: time.Second,
				MaxBackoff:     30 * time.Second,
			},
		},
		Graph: GraphConfig{
			RecursionLimit: graph.DefaultRecursionLimit,
		},
		Log: LogConfig{
			Level:  "info",
			Format: string(slogobs.FormatText),
			Calls:  "standard",
		},
	}
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Load builds the configuration from, in order: the defaults, the YAML file
// at path (skipped when path is empty), a .env file in the working directory
// and the process environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the struct tags of the configuration.
func (config *Config) Validate() error {
	if err := structValidator.Struct(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (config *Config) applyEnv(lookup func(string) (string, bool)) error {
	if value, ok := lookup(EnvAPIKey); ok && value != "" {
		config.Model.APIKey = value
	}
	if value, ok := lookup(EnvBaseURL); ok && value != "" {
		config.Model.BaseURL = value
	}
	if value, ok := lookup(EnvModel); ok && value != "" {
		config.Model.Name = value
	}
	if value, ok := lookup(EnvMetricsAddr); ok && value != "" {
		config.Metrics.Addr = value
	}
	if value, ok := lookup(EnvLogLevel); ok && value != "" {
		config.Log.Level = value
	}
	if value, ok := lookup(EnvLogFormat); ok && value != "" {
		config.Log.Format = value
	}

	for _, entry := range []struct {
		name   string
		target *int
	}{
		{EnvRecursionLimit, &config.Graph.RecursionLimit},
		{EnvMaxConcurrency, &config.Graph.MaxConcurrency},
	} {
		value, ok := lookup(entry.name)
		if !ok || value == "" {
			continue
		}
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", entry.name, value, err)
		}
		*entry.target = parsed
	}
	return nil
}

// GraphOptions converts the graph section into builder options.
func (config *Config) GraphOptions(provider observability.Provider) []graph.Option {
	options := []graph.Option{
		graph.WithRecursionLimit(config.Graph.RecursionLimit),
		graph.WithMaxConcurrency(config.Graph.MaxConcurrency),
	}
	if config.Graph.ExecutionTimeout > 0 {
		options = append(options, graph.WithExecutionTimeout(config.Graph.ExecutionTimeout))
	}
	if config.Graph.NodeTimeout > 0 {
		options = append(options, graph.WithDefaultNodeTimeout(config.Graph.NodeTimeout))
	}
	if config.Graph.LastWriteWins {
		options = append(options, graph.WithLastWriteWins())
	}
	if provider != nil {
		options = append(options, graph.WithObserver(provider))
	}
	return options
}

// LogLevel parses Log.Level.
func (config *Config) LogLevel() slog.Level {
	level, err := slogobs.ParseLogLevel(config.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// CallLogLevel parses Log.Calls.
func (config *Config) CallLogLevel() model.LogLevel {
	switch config.Log.Calls {
	case "minimal":
		return model.LogLevelMinimal
	case "verbose":
		return model.LogLevelVerbose
	default:
		return model.LogLevelStandard
	}
}

// OpenAIOptions converts the model section into client options.
func (config *Config) OpenAIOptions() []openai.Option {
	options := []openai.Option{
		openai.WithModel(config.Model.Name),
		openai.WithTemperature(config.Model.Temperature),
	}
	if config.Model.APIKey != "" {
		options = append(options, openai.WithAPIKey(config.Model.APIKey))
	}
	if config.Model.BaseURL != "" {
		options = append(options, openai.WithBaseURL(config.Model.BaseURL))
	}
	if config.Model.SystemPrompt != "" {
		options = append(options, openai.WithSystemPrompt(config.Model.SystemPrompt))
	}
	if config.Model.MaxTokens > 0 {
		options = append(options, openai.WithMaxTokens(config.Model.MaxTokens))
	}
	return options
}

// Middlewares returns the model middleware stack, outermost first: logging,
// retry, rate limit and the per-attempt timeout.
func (config *Config) Middlewares(provider observability.Provider) []model.Middleware {
	middlewares := []model.Middleware{model.WithLogging(provider, config.CallLogLevel())}
	if config.Model.Retry.Enabled {
		middlewares = append(middlewares, model.WithRetry(model.RetryConfig{
			MaxRetries:     config.Model.Retry.MaxRetries,
			InitialBackoff: config.Model.Retry.InitialBackoff,
			MaxBackoff:     config.Model.Retry.MaxBackoff,
		}))
	}
	if config.Model.RateLimit.RequestsPerSecond > 0 {
		burst := max(config.Model.RateLimit.Burst, 1)
		middlewares = append(middlewares, model.WithRateLimit(rate.NewLimiter(rate.Limit(config.Model.RateLimit.RequestsPerSecond), burst)))
	}
	middlewares = append(middlewares, model.WithTimeout(config.Model.Timeout))
	return middlewares
}

// NewModel builds the configured provider wrapped in Middlewares.
func (config *Config) NewModel(provider observability.Provider) (model.Model, error) {
	var base model.Model
	switch config.Model.Provider {
	case ProviderFake:
		scripted := fake.New()
		matches := make([]string, 0, len(config.Model.FakeReplies))
		for match := range config.Model.FakeReplies {
			matches = append(matches, match)
		}
		slices.Sort(matches)
		for _, match := range matches {
			scripted.On(match, config.Model.FakeReplies[match])
		}
		if config.Model.FakeDefault != "" {
			scripted.Default(config.Model.FakeDefault)
		}
		base = scripted
	default:
		if config.Model.APIKey == "" {
			return nil, ErrMissingAPIKey
		}
		base = openai.New(config.OpenAIOptions()...)
	}
	return model.Chain(base, config.Middlewares(provider)...), nil
}
