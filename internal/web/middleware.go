package web

import (
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"snowtools/internal/observability"
)

// statusRecorder captures the status code written by a handler so the
// request log can report it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	return sr.ResponseWriter.Write(b)
}

// logRequests attaches a request ID and logs each request on the way
// out. Static asset requests are skipped to keep the log readable.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		ctx := observability.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))

		if isStaticAsset(r.URL.Path) {
			return
		}
		s.logger.Info("request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// recoverPanics converts a handler panic into a 500 instead of tearing
// down the process.
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("handler panic",
					"request_id", observability.RequestID(r.Context()),
					"path", r.URL.Path,
					"panic", rec,
				)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func isStaticAsset(path string) bool {
	return len(path) >= 8 && path[:8] == "/static/"
}

// redirectFlash sends the browser to target with a one-shot notice in
// the query string.
func (s *Server) redirectFlash(w http.ResponseWriter, r *http.Request, target, kind, message string) {
	u, err := url.Parse(target)
	if err != nil {
		u = &url.URL{Path: s.path("/portal")}
	}
	q := u.Query()
	q.Set("flash", message)
	q.Set("kind", kind)
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusSeeOther)
}
