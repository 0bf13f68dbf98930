package overview

import (
	"context"
	"sync"
	"time"
)

type contextKey string

const overviewContextKey contextKey = "overview"

// Usage counts tokens reported by a model provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	ReasoningTokens  int `json:"reasoning_tokens,omitempty"`
	CachedTokens     int `json:"cached_tokens,omitempty"`
}

func (usage *Usage) add(other Usage) {
	usage.PromptTokens += other.PromptTokens
	usage.CompletionTokens += other.CompletionTokens
	usage.TotalTokens += other.TotalTokens
	usage.ReasoningTokens += other.ReasoningTokens
	usage.CachedTokens += other.CachedTokens
}

// Pricing is the per-million-token price of a model in USD.
type Pricing struct {
	InputPerMillion  float64 `json:"input_per_million" yaml:"input_per_million"`
	OutputPerMillion float64 `json:"output_per_million" yaml:"output_per_million"`
	// CachedPerMillion applies to cached prompt tokens. Zero means cached
	// tokens are billed at the input price.
	CachedPerMillion float64 `json:"cached_per_million,omitempty" yaml:"cached_per_million"`
}

// Cost estimates the price of usage.
func (pricing Pricing) Cost(usage Usage) float64 {
	input := float64(usage.PromptTokens) * pricing.InputPerMillion
	if pricing.CachedPerMillion > 0 {
		uncached := max(usage.PromptTokens-usage.CachedTokens, 0)
		input = float64(uncached)*pricing.InputPerMillion + float64(usage.CachedTokens)*pricing.CachedPerMillion
	}
	return (input + float64(usage.CompletionTokens)*pricing.OutputPerMillion) / 1_000_000
}

// Call is one recorded model request.
type Call struct {
	Model    string        `json:"model"`
	Kind     string        `json:"kind"`
	Usage    Usage         `json:"usage"`
	Duration time.Duration `json:"duration"`
	Err      string        `json:"error,omitempty"`
}

// Overview aggregates model usage for one execution lifecycle.
type Overview struct {
	mutex   sync.Mutex
	calls   []Call
	total   Usage
	byModel map[string]Usage
	pricing map[string]Pricing
	started time.Time
	ended   time.Time
}

// New returns an empty Overview.
func New() *Overview {
	return &Overview{
		byModel: make(map[string]Usage),
		pricing: make(map[string]Pricing),
	}
}

// OverviewFromContext retrieves the Overview from the context, creating one if
// it does not already exist. The context pointer is updated in place when a new
// Overview is created so callers see the enriched context.
func OverviewFromContext(ctx *context.Context) *Overview {
	if existing := FromContext(*ctx); existing != nil {
		return existing
	}
	if (*ctx).Value(overviewContextKey) != nil {
		return nil
	}

	created := New()
	*ctx = created.ToContext(*ctx)
	return created
}

// FromContext returns the Overview stored in ctx, or nil.
func FromContext(ctx context.Context) *Overview {
	if ctx == nil {
		return nil
	}
	overview, _ := ctx.Value(overviewContextKey).(*Overview)
	return overview
}

// ToContext stores the Overview in the given context and returns the enriched context.
func (overview *Overview) ToContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, overviewContextKey, overview)
}

// Record appends a call and accumulates its usage.
func (overview *Overview) Record(call Call) {
	if overview == nil {
		return
	}
	overview.mutex.Lock()
	defer overview.mutex.Unlock()

	if overview.byModel == nil {
		overview.byModel = make(map[string]Usage)
	}
	overview.calls = append(overview.calls, call)
	overview.total.add(call.Usage)
	modelUsage := overview.byModel[call.Model]
	modelUsage.add(call.Usage)
	overview.byModel[call.Model] = modelUsage
}

// SetPricing configures the price used by Cost for a model.
func (overview *Overview) SetPricing(model string, pricing Pricing) {
	overview.mutex.Lock()
	defer overview.mutex.Unlock()
	if overview.pricing == nil {
		overview.pricing = make(map[string]Pricing)
	}
	overview.pricing[model] = pricing
}

// StartExecution marks the start of the execution.
func (overview *Overview) StartExecution() {
	overview.mutex.Lock()
	overview.started = time.Now()
	overview.mutex.Unlock()
}

// EndExecution marks the end of the execution.
func (overview *Overview) EndExecution() {
	overview.mutex.Lock()
	overview.ended = time.Now()
	overview.mutex.Unlock()
}

// ExecutionDuration returns 0 until both StartExecution and EndExecution were called.
func (overview *Overview) ExecutionDuration() time.Duration {
	overview.mutex.Lock()
	defer overview.mutex.Unlock()
	if overview.started.IsZero() || overview.ended.IsZero() {
		return 0
	}
	return overview.ended.Sub(overview.started)
}

// Calls returns a copy of the recorded calls in recording order.
func (overview *Overview) Calls() []Call {
	overview.mutex.Lock()
	defer overview.mutex.Unlock()
	return append([]Call(nil), overview.calls...)
}

// TotalUsage returns the usage summed over all calls.
func (overview *Overview) TotalUsage() Usage {
	overview.mutex.Lock()
	defer overview.mutex.Unlock()
	return overview.total
}

// UsageByModel returns a copy of the per-model usage.
func (overview *Overview) UsageByModel() map[string]Usage {
	overview.mutex.Lock()
	defer overview.mutex.Unlock()
	result := make(map[string]Usage, len(overview.byModel))
	for model, usage := range overview.byModel {
		result[model] = usage
	}
	return result
}

// Summary is a serializable snapshot of an Overview.
type Summary struct {
	Calls        int              `json:"calls"`
	Failures     int              `json:"failures"`
	TotalUsage   Usage            `json:"total_usage"`
	UsageByModel map[string]Usage `json:"usage_by_model,omitempty"`
	Cost         float64          `json:"cost_usd"`
	Duration     time.Duration    `json:"duration"`
}

// Summary snapshots the counters and the estimated cost. Models without
// pricing contribute no cost.
func (overview *Overview) Summary() Summary {
	duration := overview.ExecutionDuration()

	overview.mutex.Lock()
	defer overview.mutex.Unlock()

	summary := Summary{
		Calls:        len(overview.calls),
		TotalUsage:   overview.total,
		UsageByModel: make(map[string]Usage, len(overview.byModel)),
		Duration:     duration,
	}
	for _, call := range overview.calls {
		if call.Err != "" {
			summary.Failures++
		}
	}
	for model, usage := range overview.byModel {
		summary.UsageByModel[model] = usage
		if pricing, ok := overview.pricing[model]; ok {
			summary.Cost += pricing.Cost(usage)
		}
	}
	return summary
}
