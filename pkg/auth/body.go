package auth

import (
	"bytes"
	"context"
	"io"
	"net/http"
)

// DefaultMaxBodyBytes bounds how much of the request body is buffered for
// signature verification and downstream decoding.
const DefaultMaxBodyBytes = 8 * 1024

type bodyContextKey struct{}

// CachedBody buffers the request body exactly once, bounded to maxBytes, and
// makes the identical bytes available both to the admission gate and to the
// handler via BodyFromContext. The body reader is replaced so downstream
// readers observe the same bytes. Requests whose body exceeds the bound are
// rejected with 413 before any authentication work.
func CachedBody(maxBytes int64, next http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			limited := io.LimitReader(r.Body, maxBytes+1)
			buf, err := io.ReadAll(limited)
			if err != nil {
				http.Error(w, "unable to read request body", http.StatusBadRequest)
				return
			}
			if int64(len(buf)) > maxBytes {
				http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			body = buf
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		ctx := context.WithValue(r.Context(), bodyContextKey{}, body)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BodyFromContext returns the buffered request body, or nil when the request
// did not pass through CachedBody.
func BodyFromContext(ctx context.Context) []byte {
	body, _ := ctx.Value(bodyContextKey{}).([]byte)
	return body
}
