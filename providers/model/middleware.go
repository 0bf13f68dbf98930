package model

// Middleware wraps a Model with additional behavior.
type Middleware func(next Model) Model

// Chain applies middlewares to base. The first middleware is the outermost
// wrapper, i.e. the first to see an incoming call. Nil entries are skipped.
func Chain(base Model, middlewares ...Middleware) Model {
	chained := base
	for index := len(middlewares) - 1; index >= 0; index-- {
		if middlewares[index] == nil {
			continue
		}
		chained = middlewares[index](chained)
	}
	return chained
}
