// Package httputil holds the JSON envelope helpers shared by handlers.
//
// Successful responses are wrapped as {"data": ...}. Errors are written as
// {"error": "<code>", "detail": "<message>"}; detail is omitted for internal
// and unavailable errors so infrastructure messages never leak to callers.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "census/pkg/domain-errors"
)

// DataEnvelope wraps every successful response body.
type DataEnvelope struct {
	Data any `json:"data"`
}

// ErrorBody is the error response shape.
type ErrorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData writes data inside the {"data": ...} envelope.
func WriteData(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, DataEnvelope{Data: data})
}

// WriteError translates a domain error into a status and error body.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := ErrorBody{Error: string(code)}
	switch code {
	case dErrors.CodeInternal, dErrors.CodeUnavailable, dErrors.CodeTimeout:
	default:
		body.Detail = dErrors.MessageOf(err)
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), body)
}
