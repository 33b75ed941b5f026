package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/fastprodman/rewardrecon/internal/infra/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// observe records request metrics by route pattern and logs the request.
// Labelling by pattern keeps account ids out of the metric cardinality.
func observe(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}

			code := strconv.Itoa(rec.status)
			elapsed := time.Since(start)

			metrics.HTTPRequestsTotal.WithLabelValues(route, code).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(route, code).Observe(elapsed.Seconds())

			logger.Debug("http request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"route", route,
				"status", rec.status,
				"duration", elapsed,
			)
		})
	}
}
