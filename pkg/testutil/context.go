package testutil

import (
	"context"
	"net/http"
	"time"

	"census/pkg/requestcontext"
)

// ContextAt returns a context whose request time is now, the way the
// requesttime middleware prepares it for handlers.
func ContextAt(now time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), now)
}

// WithRequestTime pins the request-scoped clock of req.
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

// WithRequestID attaches a request id as the RequestID middleware would.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
