package middleware

import (
	"log/slog"
	"net/http"

	"github.com/comeencasa/restaurant-api/pkg/logger"
)

// RequestLogger stores a logger enriched with correlation_id, trace_id and
// span_id in the request context, for handlers to fetch with
// logger.FromContext. Mount it after RequestLogging and Tracing; the auth
// guard adds user_id later through WithIdentity.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
