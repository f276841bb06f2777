package httpx

import (
	"log/slog"
	"net/http"
	"time"
)

// StatusRecorder remembers the status code and byte count written through it.
type StatusRecorder struct {
	http.ResponseWriter
	Status int
	Bytes  int64
}

func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{ResponseWriter: w}
}

func (w *StatusRecorder) WriteHeader(code int) {
	w.Status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *StatusRecorder) Write(p []byte) (int, error) {
	if w.Status == 0 {
		w.Status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.Bytes += int64(n)
	return n, err
}

// Code returns the recorded status, treating "nothing written" as 200.
func (w *StatusRecorder) Code() int {
	if w.Status == 0 {
		return http.StatusOK
	}
	return w.Status
}

func WithAccessLog(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := NewStatusRecorder(w)

			next.ServeHTTP(sw, r)

			level := slog.LevelInfo
			if sw.Code() >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.Log(r.Context(), level, "http request",
				"request_id", RequestIDFromContext(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.Code(),
				"bytes", sw.Bytes,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
