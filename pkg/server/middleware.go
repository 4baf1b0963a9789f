package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type traceIDContextKey struct{}

// TraceIDFromContext returns the short request correlation id.
func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(traceIDContextKey{}).(string)
	return id
}

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// requestLogging attaches a correlation id and emits one access log line per
// request, recording request metrics alongside.
func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := uuid.NewString()[:8]
		ctx := context.WithValue(r.Context(), traceIDContextKey{}, traceID)

		rec := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))
		duration := time.Since(start)

		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		s.metrics.RecordRequest(r.Method, rec.status, duration)
		s.logger.Info().
			Str("trace_id", traceID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", duration).
			Msg("request completed")
	})
}

// recoverPanics is the outermost boundary: unexpected panics become a generic
// internal-error response with no detail leaked, fully logged server-side.
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error().
					Str("event", "TX_CRASH").
					Str("trace_id", TraceIDFromContext(r.Context())).
					Any("panic", rec).
					Msg("unexpected panic")
				writeInternalError(w)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
