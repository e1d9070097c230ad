package middlewares

import (
	"net/http"
	"time"

	"github.com/dropDatabas3/johnboard/internal/http/errors"
	"github.com/go-chi/httprate"
)

// WithRateLimit limita requests por IP en la ventana dada. Con limit <= 0 es
// un no-op (rate limiting deshabilitado por config).
func WithRateLimit(limit int, window time.Duration) Middleware {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(limit, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			errors.WriteError(w, errors.ErrRateLimitExceeded)
		}),
	)
}
