package middleware

import (
	"net"
	"net/http"
	"time"

	"jaterm_gateway/internal/logging"
	"jaterm_gateway/internal/metrics"
)

// AccessRecorder receives one entry per finished request
type AccessRecorder interface {
	Record(entry logging.AccessEntry)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

// Flush keeps streamed responses working through the wrapper
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Observe records request metrics and, when access is non-nil, an access log line.
// Routes are labelled with the matched ServeMux pattern so paths with ids do not
// explode metric cardinality.
func Observe(m metrics.Metrics, access AccessRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			// Handlers below fill in the caller; the pointer lets us read it back.
			var caller Identity
			r = r.WithContext(withCallerSlot(r.Context(), &caller))

			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			elapsed := time.Since(start)
			m.ObserveHTTPRequest(route, status, elapsed)

			if access != nil {
				access.Record(logging.AccessEntry{
					Timestamp:  start.UTC(),
					Method:     r.Method,
					Route:      route,
					Path:       r.URL.Path,
					Status:     status,
					DurationMs: elapsed.Milliseconds(),
					UserID:     caller.UserID,
					RemoteAddr: ClientIP(r),
				})
			}
		})
	}
}

// ClientIP returns the request's remote address without the port
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
