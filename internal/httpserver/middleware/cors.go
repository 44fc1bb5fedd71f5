package middleware

import (
	"net/http"

	"github.com/rs/cors"

	"github.com/davidbz/freeroute/internal/config"
)

// exposedHeaders lets browser clients read the routing outcome.
var exposedHeaders = []string{ //nolint:gochecknoglobals // read-only header list
	"X-Trace-Id",
	"X-Request-Id",
	"X-FreeRoute-Model",
	"X-FreeRoute-Attempts",
	"X-FreeRoute-Failovers",
	"X-FreeRoute-Tier",
}

// CORS creates a middleware backed by github.com/rs/cors. A nil config disables it.
func CORS(cfg *config.CORSConfig) Middleware {
	if cfg == nil {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   append([]string{"X-Request-Id"}, cfg.AllowedHeaders...),
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	})

	return c.Handler
}
