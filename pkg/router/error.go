package router

import (
	"encoding/json"
	"io"
)

// Error is an error a handler can return to take over the response that is
// written to the client.
type Error interface {
	error
	StatusCode() int
	Encode(w io.Writer) error
}

// JsonError is the wire form of a handler error. Details optionally carries
// per-field messages for validation failures.
type JsonError struct {
	Code    int               `json:"code"`
	Err     string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

func NewJsonError(code int, err string) JsonError {
	return JsonError{
		Code: code,
		Err:  err,
	}
}

// WithDetails returns a copy of the error annotated with per-field messages.
func (e JsonError) WithDetails(details map[string]string) JsonError {
	e.Details = details
	return e
}

func (e JsonError) StatusCode() int {
	return e.Code
}

func (e JsonError) Error() string {
	return e.Err
}

func (e JsonError) Encode(w io.Writer) error {
	return json.NewEncoder(w).Encode(e)
}
