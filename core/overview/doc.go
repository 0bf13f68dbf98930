// Package overview accounts for model usage during a single graph
// invocation. Model providers record token usage into the [Overview] carried
// by the context; callers read the totals, per-model breakdown and an
// optional cost estimate once the invocation returns.
//
// Nodes of one superstep run concurrently, so every method is safe for
// concurrent use.
package overview
