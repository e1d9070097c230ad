package middlewares

import (
	"net/http"
	"time"

	"github.com/dropDatabas3/johnboard/internal/metrics"
)

// WithMetrics instrumenta requests HTTP con métricas Prometheus
// (contadores, latencia, inflight).
func WithMetrics() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			metrics.InflightHTTP(r.Method, r.URL.Path, 1)
			start := time.Now()

			rec := &statusRecorder{ResponseWriter: w}
			defer func() {
				metrics.InflightHTTP(r.Method, r.URL.Path, -1)
				status := rec.status
				if status == 0 {
					status = http.StatusOK
				}
				metrics.ObserveHTTP(r.Method, r.URL.Path, status, time.Since(start).Seconds())
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
