package observability

import "context"

// Multi returns a Provider that forwards every call to each non-nil provider,
// in order. Returns nil when no provider is given so callers keep the
// zero-overhead nil check.
func Multi(providers ...Provider) Provider {
	filtered := make([]Provider, 0, len(providers))
	for _, provider := range providers {
		if provider != nil {
			filtered = append(filtered, provider)
		}
	}

	switch len(filtered) {
	case 0:
		return nil
	case 1:
		return filtered[0]
	default:
		return multiProvider(filtered)
	}
}

type multiProvider []Provider

var _ Provider = multiProvider(nil)

func (providers multiProvider) StartSpan(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span) {
	spans := make(multiSpan, 0, len(providers))
	for _, provider := range providers {
		var span Span
		ctx, span = provider.StartSpan(ctx, name, attrs...)
		if span != nil {
			spans = append(spans, span)
		}
	}
	return ctx, spans
}

func (providers multiProvider) Counter(name string) Counter {
	counters := make(multiCounter, 0, len(providers))
	for _, provider := range providers {
		counters = append(counters, provider.Counter(name))
	}
	return counters
}

func (providers multiProvider) Histogram(name string) Histogram {
	histograms := make(multiHistogram, 0, len(providers))
	for _, provider := range providers {
		histograms = append(histograms, provider.Histogram(name))
	}
	return histograms
}

func (providers multiProvider) Trace(ctx context.Context, msg string, attrs ...Attribute) {
	for _, provider := range providers {
		provider.Trace(ctx, msg, attrs...)
	}
}

func (providers multiProvider) Debug(ctx context.Context, msg string, attrs ...Attribute) {
	for _, provider := range providers {
		provider.Debug(ctx, msg, attrs...)
	}
}

func (providers multiProvider) Info(ctx context.Context, msg string, attrs ...Attribute) {
	for _, provider := range providers {
		provider.Info(ctx, msg, attrs...)
	}
}

func (providers multiProvider) Warn(ctx context.Context, msg string, attrs ...Attribute) {
	for _, provider := range providers {
		provider.Warn(ctx, msg, attrs...)
	}
}

func (providers multiProvider) Error(ctx context.Context, msg string, attrs ...Attribute) {
	for _, provider := range providers {
		provider.Error(ctx, msg, attrs...)
	}
}

type multiSpan []Span

func (spans multiSpan) End() {
	for _, span := range spans {
		span.End()
	}
}

func (spans multiSpan) SetAttributes(attrs ...Attribute) {
	for _, span := range spans {
		span.SetAttributes(attrs...)
	}
}

func (spans multiSpan) SetStatus(code StatusCode, description string) {
	for _, span := range spans {
		span.SetStatus(code, description)
	}
}

func (spans multiSpan) RecordError(err error) {
	for _, span := range spans {
		span.RecordError(err)
	}
}

func (spans multiSpan) AddEvent(name string, attrs ...Attribute) {
	for _, span := range spans {
		span.AddEvent(name, attrs...)
	}
}

type multiCounter []Counter

func (counters multiCounter) Add(ctx context.Context, value int64, attrs ...Attribute) {
	for _, counter := range counters {
		counter.Add(ctx, value, attrs...)
	}
}

type multiHistogram []Histogram

func (histograms multiHistogram) Record(ctx context.Context, value float64, attrs ...Attribute) {
	for _, histogram := range histograms {
		histogram.Record(ctx, value, attrs...)
	}
}
