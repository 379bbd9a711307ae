package httpx

import (
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/nicktill/ipedscomps/pkg/logging"
	"github.com/nicktill/ipedscomps/pkg/metrics"
)

var numericSegment = regexp.MustCompile(`/\d+`)

// Middleware returns HTTP middleware that records request metrics and logs a
// summary line per request. It tracks:
//   - http_requests_total (counter): by method, route, status
//   - http_request_duration_seconds (histogram): request latency
//
// The request context carries logger, retrievable with logging.FromContext.
func Middleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap ResponseWriter to capture status code
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r.WithContext(logging.WithLogger(r.Context(), logger)))

			duration := time.Since(start)
			route := routeName(r)
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequests.WithLabelValues(r.Method, route, status).Inc()
			metrics.HTTPDuration.WithLabelValues(r.Method, route, status).Observe(duration.Seconds())

			logger.Infow("Request served",
				"method", r.Method,
				"path", r.URL.Path,
				"query", r.URL.RawQuery,
				"status", rw.statusCode,
				"bytes", rw.written,
				"elapsed", duration.Round(time.Microsecond))
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}

// routeName prefers the matched mux template so label cardinality stays
// bounded; unmatched paths fall back to collapsing numeric segments.
func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return normalizePath(r.URL.Path)
}

// normalizePath replaces numeric path segments with {id}.
// Examples:
//   - /api/comps → /api/comps
//   - /api/institutions/100654 → /api/institutions/{id}
func normalizePath(path string) string {
	return numericSegment.ReplaceAllString(path, "/{id}")
}
