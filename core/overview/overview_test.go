package overview

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"
)

func TestOverviewFromContext_CreatesNew(t *testing.T) {
	ctx := context.Background()
	overview := OverviewFromContext(&ctx)

	if overview == nil {
		t.Fatal("expected a new Overview, got nil")
	}
	if FromContext(ctx) != overview {
		t.Error("expected context to be updated with the new Overview")
	}
}

func TestOverviewFromContext_ReturnsExisting(t *testing.T) {
	ctx := context.Background()
	first := OverviewFromContext(&ctx)
	second := OverviewFromContext(&ctx)

	if first != second {
		t.Error("expected the same Overview pointer on second call")
	}
}

func TestOverviewFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), overviewContextKey, "not-an-overview")
	if result := OverviewFromContext(&ctx); result != nil {
		t.Errorf("expected nil for wrong type, got %v", result)
	}
}

func TestFromContext_Missing(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Error("expected nil without an Overview")
	}
}

func TestToContext_NilContext(t *testing.T) {
	overview := New()
	//nolint:staticcheck // nil context is the case under test
	ctx := overview.ToContext(nil)
	if FromContext(ctx) != overview {
		t.Error("expected the Overview in a background context")
	}
}

func TestRecord_AccumulatesUsage(t *testing.T) {
	overview := New()
	overview.Record(Call{Model: "gpt-4o-mini", Kind: "complete", Usage: Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}})
	overview.Record(Call{Model: "gpt-4o-mini", Kind: "extract", Usage: Usage{PromptTokens: 20, CompletionTokens: 7, TotalTokens: 27, CachedTokens: 4}})
	overview.Record(Call{Model: "gpt-4o", Kind: "chat", Usage: Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2}, Err: "boom"})

	total := overview.TotalUsage()
	if total.PromptTokens != 31 || total.CompletionTokens != 13 || total.TotalTokens != 44 || total.CachedTokens != 4 {
		t.Errorf("unexpected totals: %+v", total)
	}

	byModel := overview.UsageByModel()
	if byModel["gpt-4o-mini"].TotalTokens != 42 || byModel["gpt-4o"].TotalTokens != 2 {
		t.Errorf("unexpected per-model usage: %+v", byModel)
	}

	calls := overview.Calls()
	if len(calls) != 3 || calls[1].Kind != "extract" {
		t.Errorf("unexpected calls: %+v", calls)
	}

	summary := overview.Summary()
	if summary.Calls != 3 || summary.Failures != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

func TestRecord_NilOverview(t *testing.T) {
	var overview *Overview
	overview.Record(Call{Model: "m"})
}

func TestRecord_Concurrent(t *testing.T) {
	overview := New()
	var waitGroup sync.WaitGroup
	for range 50 {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			overview.Record(Call{Model: "m", Usage: Usage{TotalTokens: 2}})
		}()
	}
	waitGroup.Wait()

	if got := overview.TotalUsage().TotalTokens; got != 100 {
		t.Errorf("TotalTokens = %d, want 100", got)
	}
}

func TestPricing_Cost(t *testing.T) {
	usage := Usage{PromptTokens: 1_000_000, CompletionTokens: 500_000, CachedTokens: 200_000}

	flat := Pricing{InputPerMillion: 2, OutputPerMillion: 8}
	if got := flat.Cost(usage); math.Abs(got-6) > 1e-9 {
		t.Errorf("flat cost = %v, want 6", got)
	}

	cached := Pricing{InputPerMillion: 2, OutputPerMillion: 8, CachedPerMillion: 0.5}
	// 0.8M * 2 + 0.2M * 0.5 + 0.5M * 8
	if got := cached.Cost(usage); math.Abs(got-5.7) > 1e-9 {
		t.Errorf("cached cost = %v, want 5.7", got)
	}
}

func TestSummary_CostOnlyForPricedModels(t *testing.T) {
	overview := New()
	overview.SetPricing("priced", Pricing{InputPerMillion: 1, OutputPerMillion: 1})
	overview.Record(Call{Model: "priced", Usage: Usage{PromptTokens: 500_000, CompletionTokens: 500_000}})
	overview.Record(Call{Model: "unpriced", Usage: Usage{PromptTokens: 1_000_000}})

	if got := overview.Summary().Cost; math.Abs(got-1) > 1e-9 {
		t.Errorf("cost = %v, want 1", got)
	}
}

func TestExecutionDuration(t *testing.T) {
	overview := New()
	if overview.ExecutionDuration() != 0 {
		t.Error("expected 0 before start")
	}

	overview.StartExecution()
	if overview.ExecutionDuration() != 0 {
		t.Error("expected 0 before end")
	}

	time.Sleep(5 * time.Millisecond)
	overview.EndExecution()
	if overview.ExecutionDuration() < 5*time.Millisecond {
		t.Errorf("duration = %v", overview.ExecutionDuration())
	}
}
