package middleware

import (
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/cards-api/internal/api/shared"
	"github.com/phrazzld/cards-api/internal/platform/logger"
)

// TraceIDHeader carries the trace ID back to the client.
const TraceIDHeader = "X-Trace-ID"

// NewTraceMiddleware returns middleware that gives every request a trace ID
// and a request-scoped logger carrying it. The chi request ID is reused when
// chi's RequestID middleware ran first.
func NewTraceMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := chimw.GetReqID(r.Context())
			if traceID == "" {
				traceID = shared.NewTraceID()
			}

			ctx := logger.WithTraceID(r.Context(), traceID, base)
			w.Header().Set(TraceIDHeader, traceID)

			logger.FromContext(ctx).DebugContext(ctx, "request started",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
