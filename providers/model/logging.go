package model

import (
	"context"
	"time"

	"github.com/leofalp/stategraph/core/overview"
	"github.com/leofalp/stategraph/providers/observability"
)

// LogLevel controls how much detail the logging middleware emits per call.
type LogLevel int

const (
	// LogLevelMinimal logs the operation, model and duration.
	LogLevelMinimal LogLevel = iota

	// LogLevelStandard adds the message count and token usage.
	LogLevelStandard

	// LogLevelVerbose adds the prompt truncated to 500 characters.
	//
	// WARNING: raw prompts may contain personal data. Use it only locally.
	LogLevelVerbose
)

const truncateLen = 500

// WithLogging opens a span, logs and records metrics for every call on
// provider. A nil provider falls back to the observer attached to the call's
// context and passes calls through untouched when there is none.
func WithLogging(provider observability.Provider, level LogLevel) Middleware {
	return func(next Model) Model {
		return Intercept(next, func(ctx context.Context, call Call, invoke Invoke) error {
			observer := provider
			if observer == nil {
				observer = observability.ObserverFromContext(ctx)
			}
			if observer == nil {
				return invoke(ctx)
			}

			attrs := []observability.Attribute{
				observability.String(observability.AttrModelOperation, string(call.Operation)),
				observability.String(observability.AttrModelName, call.Model),
			}
			if level >= LogLevelStandard && call.Operation == OperationChat {
				attrs = append(attrs, observability.Int("model.messages", len(call.Messages)))
			}
			if level >= LogLevelVerbose {
				attrs = append(attrs, observability.String(observability.AttrModelPrompt, observability.TruncateString(call.Prompt, truncateLen)))
			}

			spanCtx, span := observer.StartSpan(ctx, "model."+string(call.Operation), attrs...)
			defer span.End()
			observer.Debug(spanCtx, "model call started", attrs...)

			usageBefore := usageFrom(spanCtx)
			start := time.Now()
			err := invoke(spanCtx)
			elapsed := time.Since(start)

			status := "ok"
			if err != nil {
				status = "error"
			}
			observer.Counter(observability.MetricModelCalls).Add(spanCtx, 1,
				observability.String(observability.AttrModelOperation, string(call.Operation)),
				observability.String(observability.AttrStatus, status),
			)
			observer.Histogram(observability.MetricModelDuration).Record(spanCtx, elapsed.Seconds(),
				observability.String(observability.AttrModelOperation, string(call.Operation)),
			)

			if err != nil {
				span.RecordError(err)
				span.SetStatus(observability.StatusError, err.Error())
				observer.Error(spanCtx, "model call failed",
					append(attrs, observability.Duration(observability.AttrDuration, elapsed), observability.Error(err))...,
				)
				return err
			}

			completed := append(attrs, observability.Duration(observability.AttrDuration, elapsed))
			if level >= LogLevelStandard {
				if usage, ok := usageDelta(spanCtx, usageBefore); ok {
					completed = append(completed,
						observability.Int(observability.AttrTokensPrompt, usage.PromptTokens),
						observability.Int(observability.AttrTokensCompletion, usage.CompletionTokens),
						observability.Int(observability.AttrTokensTotal, usage.TotalTokens),
					)
					span.SetAttributes(observability.Int(observability.AttrTokensTotal, usage.TotalTokens))
				}
			}
			span.SetStatus(observability.StatusOK, "")
			observer.Info(spanCtx, "model call completed", completed...)
			return nil
		})
	}
}

func usageFrom(ctx context.Context) overview.Usage {
	if tracked := overview.FromContext(ctx); tracked != nil {
		return tracked.TotalUsage()
	}
	return overview.Usage{}
}

// usageDelta reports the usage recorded since before. Concurrent calls
// sharing one overview may be attributed to each other.
func usageDelta(ctx context.Context, before overview.Usage) (overview.Usage, bool) {
	tracked := overview.FromContext(ctx)
	if tracked == nil {
		return overview.Usage{}, false
	}
	after := tracked.TotalUsage()
	return overview.Usage{
		PromptTokens:     after.PromptTokens - before.PromptTokens,
		CompletionTokens: after.CompletionTokens - before.CompletionTokens,
		TotalTokens:      after.TotalTokens - before.TotalTokens,
	}, true
}
