// Package parse converts raw model replies into Go values. Replies are
// unwrapped from Markdown fences and surrounding prose, repaired when the JSON
// is malformed, and flattened when the model echoed schema-style wrappers.
//
// The entry point is the generic [ParseStringAs] function.
package parse
