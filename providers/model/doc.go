// Package model defines the language-model collaborators that graph nodes
// call: [Completer] for single prompts, [Extractor] for schema-constrained
// structured output and [Chatter] for multi-turn conversations.
//
// Concrete backends live in sub-packages (openai, fake). Cross-cutting
// behavior such as retries, rate limiting, timeouts and logging is added by
// wrapping a [Model] with [Middleware] values composed by [Chain]:
//
//	llm := model.Chain(openai.New(cfg),
//	    model.WithLogging(provider),
//	    model.WithRetry(model.RetryConfig{MaxRetries: 3}),
//	    model.WithRateLimit(rate.NewLimiter(rate.Every(time.Second), 2)),
//	)
//
// Structured output is decoded into Go types with [ExtractAs], which derives
// the JSON schema from struct tags and validates the result with
// go-playground/validator tags.
package model
