package client

import "fmt"

// FieldError is one per-field entry of a validation failure payload.
type FieldError struct {
	Code    string
	Message string
}

// ResponseError is the store-specific error surfaced by transport
// implementations. Status 0 means the request never reached the server.
type ResponseError struct {
	URL     string
	Status  int
	Message string

	// Data carries the per-field payload of a validation failure, keyed by
	// storage field name.
	Data map[string]FieldError

	// IsAbort marks a request cancelled before completion.
	IsAbort bool

	cause error
}

// NewResponseError wraps a transport failure with its response status.
func NewResponseError(status int, message string, cause error) *ResponseError {
	return &ResponseError{Status: status, Message: message, cause: cause}
}

func (e *ResponseError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.cause != nil {
		return e.cause.Error()
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// Unwrap exposes the transport-level cause, if any.
func (e *ResponseError) Unwrap() error {
	return e.cause
}
