// Package apierror converts transport and store failures into a stable typed
// taxonomy with retry eligibility. Every error leaving the data-access layer
// passes through Classify; no other package constructs ServiceError values.
package apierror

import "errors"

// Kind is the stable error taxonomy.
type Kind string

const (
	KindNetwork    Kind = "network"
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindPermission Kind = "permission"
	KindNotFound   Kind = "not_found"
	KindServer     Kind = "server"
)

// ServiceError is the classified form of any failure raised by the store or
// the transport. Message is always human-readable; Details carries one entry
// per offending field for validation failures.
type ServiceError struct {
	Kind      Kind
	Message   string
	Retryable bool
	Details   map[string]string

	cause error
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Unwrap exposes the original failure for errors.Is/As chains.
func (e *ServiceError) Unwrap() error {
	return e.cause
}

// IsKind reports whether err is a ServiceError of the given kind.
func IsKind(err error, kind Kind) bool {
	var svcErr *ServiceError
	return errors.As(err, &svcErr) && svcErr.Kind == kind
}

// IsNotFound reports whether err classified as a missing record.
func IsNotFound(err error) bool {
	return IsKind(err, KindNotFound)
}
