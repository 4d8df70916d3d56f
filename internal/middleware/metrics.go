package middleware

import (
	"context"
	"net/http"
	"time"
)

// RequestRecorder receives one observation per served request.
// observability.CatalogMetrics implements it.
type RequestRecorder interface {
	RecordRequest(ctx context.Context, route string, status int, duration time.Duration)
}

// RequestMetrics records duration and status of requests to one route. The
// route is the mux pattern, not the raw path, to keep cardinality bounded.
func RequestMetrics(recorder RequestRecorder, route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if recorder == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := NewStatusRecorder(w)
			next.ServeHTTP(rec, r)
			recorder.RecordRequest(r.Context(), route, rec.Status(), time.Since(start))
		})
	}
}
