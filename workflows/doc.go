// Package workflows rebuilds the sample pipelines as compiled graphs: pure
// calculators (bmi, batting), model-backed chains (simple_llm, prompt_chain,
// essay, review, chatbot, page_summary) and the conditional-routing demos
// (basic_routing, loop_routing, parallel_paths).
//
// Every workflow is reachable through [Catalog], which the CLI uses to list,
// run and draw them. [Functions] and [Routers] expose the node bodies by
// qualified name for declarative graph definitions.
package workflows
