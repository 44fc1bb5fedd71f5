package middleware

import (
	"net/http"

	"github.com/davidbz/freeroute/internal/config"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain folds middlewares right to left, so Chain(a, b)(h) serves a(b(h)).
func Chain(middlewares ...Middleware) Middleware {
	return func(final http.Handler) http.Handler {
		wrapped := final
		for i := range middlewares {
			wrapped = middlewares[len(middlewares)-1-i](wrapped)
		}
		return wrapped
	}
}

// BuildMiddlewareChain composes the production chain. CORS answers preflights
// before any tracing; Recover runs innermost so panics are logged with IDs.
func BuildMiddlewareChain(corsConfig *config.CORSConfig) Middleware {
	return Chain(
		CORS(corsConfig),
		Trace(),
		Recover(),
	)
}
