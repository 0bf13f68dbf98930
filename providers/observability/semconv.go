package observability

// Semantic conventions for observability attributes.
// These constants define standard attribute names to ensure consistency
// across the executor, the model collaborators and the backends.

// --- Model Attributes ---

const (
	// AttrModelProvider is the name of the model backend (e.g., "openai", "fake")
	AttrModelProvider = "model.provider"

	// AttrModelName is the model identifier (e.g., "gpt-4o-mini")
	AttrModelName = "model.name"

	// AttrModelOperation is the collaborator call kind: complete, extract or chat
	AttrModelOperation = "model.operation"

	// AttrModelAttempt is the 1-based attempt number inside the retry middleware
	AttrModelAttempt = "model.attempt"

	// AttrModelPrompt is a truncated copy of the prompt
	AttrModelPrompt = "model.prompt"
)

// --- Token Usage Attributes ---

const (
	// AttrTokensPrompt is the number of prompt tokens
	AttrTokensPrompt = "model.tokens.prompt" // #nosec G101 -- Not a credential

	// AttrTokensCompletion is the number of completion tokens
	AttrTokensCompletion = "model.tokens.completion" // #nosec G101 -- Not a credential

	// AttrTokensTotal is the total number of tokens
	AttrTokensTotal = "model.tokens.total" // #nosec G101 -- Not a credential
)

// --- HTTP Attributes ---

const (
	// AttrHTTPURL is the full request URL
	AttrHTTPURL = "http.url"

	// AttrHTTPStatusCode is the HTTP response status code
	AttrHTTPStatusCode = "http.status_code"

	// AttrHTTPResponseBodySize is the response body size in bytes
	AttrHTTPResponseBodySize = "http.response.body.size"
)

// --- General Attributes ---

const (
	// AttrError is the error message
	AttrError = "error"

	// AttrDuration is the operation duration
	AttrDuration = "duration"

	// AttrStatus is the operation status
	AttrStatus = "status"

	// AttrStatusDescription is the human readable status description
	AttrStatusDescription = "status.description"
)

// --- Metric Names ---

const (
	// MetricModelCalls counts model collaborator calls by operation and status
	MetricModelCalls = "stategraph.model.calls"

	// MetricModelDuration records model call latency in seconds
	MetricModelDuration = "stategraph.model.duration"

	// MetricModelRetries counts retry attempts made by the retry middleware
	MetricModelRetries = "stategraph.model.retries"
)
