// Package definition loads workflows declared in HCL.
//
// A definition names registered functions instead of containing code:
//
//	name = "loop_routing"
//
//	state {
//	  field "value"     { type = "number" }
//	  field "iteration" { type = "number" }
//	  field "results" {
//	    type    = "list"
//	    reducer = "append"
//	  }
//	}
//
//	node "small" { func = "routing.small" }
//
//	edge {
//	  from = "START"
//	  to   = "small"
//	}
//
//	branch {
//	  from   = "pass_through"
//	  router = "routing.check_iteration"
//	  paths  = { continue_small = "small", end = "END" }
//	}
//
//	input {
//	  value = 5
//	}
//
// START and END are aliases of the reserved entry and exit nodes. Names are
// resolved through a [Registry] before the graph is compiled, so an unknown
// function fails at load time rather than at run time.
package definition
