package apierror

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"
	"unicode"

	"github.com/rpattn/storekit/internal/client"
	"github.com/rpattn/storekit/internal/metrics"
)

// networkMessageFragments are the known transport failure phrases, matched
// case-insensitively against transport-layer error messages.
var networkMessageFragments = []string{
	"failed to fetch",
	"network request failed",
	"abort",
	"timeout",
	"timed out",
	"connection refused",
	"connection reset",
	"connection lost",
	"unreachable",
	"cancel",
	"no such host",
}

const (
	networkMessage = "Network connection failed. Please check your connection and try again."
	genericMessage = "An unexpected error occurred. Please try again."
)

// Classifier produces ServiceError values from arbitrary failure values. The
// offline probe reports the runtime's connectivity flag; when it returns true
// every failure classifies as a network error regardless of its message.
type Classifier struct {
	offline func() bool
	metrics *metrics.Metrics
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithOfflineProbe installs the runtime connectivity flag.
func WithOfflineProbe(probe func() bool) Option {
	return func(c *Classifier) {
		c.offline = probe
	}
}

// WithMetrics counts retry attempts driven by this classifier.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Classifier) {
		c.metrics = m
	}
}

// NewClassifier creates a classifier. Without an offline probe, connectivity
// is assumed.
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsNetworkError reports whether the failure value describes a transport-level
// connectivity problem, as opposed to a definite store response. Plain errors,
// non-error values and nil are never network errors unless the runtime is
// offline.
func (c *Classifier) IsNetworkError(v any) bool {
	if c.offline != nil && c.offline() {
		return v != nil
	}

	err, ok := v.(error)
	if !ok || err == nil {
		return false
	}

	// Transport-layer error types whose message names a known failure.
	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		if matchesNetworkMessage(err.Error()) {
			return true
		}
		if netErr != nil && netErr.Timeout() {
			return true
		}
	}

	// Cancellation and deadline errors from the runtime.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// A store response that never reached the server.
	var respErr *client.ResponseError
	if errors.As(err, &respErr) {
		if respErr.Status == 0 || respErr.IsAbort {
			return true
		}
	}

	return false
}

// Classify maps any failure value to a ServiceError. The mapping is total: a
// nil or unrecognized value still yields a generic server error. Already
// classified errors pass through unchanged.
func (c *Classifier) Classify(v any) *ServiceError {
	if svcErr, ok := v.(*ServiceError); ok && svcErr != nil {
		return svcErr
	}
	if err, ok := v.(error); ok {
		var svcErr *ServiceError
		if errors.As(err, &svcErr) {
			return svcErr
		}
	}

	if c.IsNetworkError(v) {
		return &ServiceError{
			Kind:      KindNetwork,
			Message:   networkMessage,
			Retryable: true,
			cause:     causeOf(v),
		}
	}

	if err, ok := v.(error); ok {
		var respErr *client.ResponseError
		if errors.As(err, &respErr) {
			return c.classifyResponse(respErr)
		}
		message := strings.TrimSpace(err.Error())
		if message == "" {
			message = genericMessage
		}
		return &ServiceError{Kind: KindServer, Message: message, cause: err}
	}

	if v == nil {
		return &ServiceError{Kind: KindServer, Message: genericMessage}
	}
	return &ServiceError{Kind: KindServer, Message: fmt.Sprintf("%v", v)}
}

func (c *Classifier) classifyResponse(respErr *client.ResponseError) *ServiceError {
	switch {
	case respErr.Status == 400:
		details := validationDetails(respErr.Data)
		return &ServiceError{
			Kind:    KindValidation,
			Message: validationMessage(details),
			Details: details,
			cause:   respErr,
		}
	case respErr.Status == 401:
		return &ServiceError{
			Kind:    KindAuth,
			Message: "Authentication required. Please sign in and try again.",
			cause:   respErr,
		}
	case respErr.Status == 403:
		return &ServiceError{
			Kind:    KindPermission,
			Message: "You do not have permission to perform this action.",
			cause:   respErr,
		}
	case respErr.Status == 404:
		return &ServiceError{
			Kind:    KindNotFound,
			Message: "The requested record was not found.",
			cause:   respErr,
		}
	case respErr.Status == 429 || (respErr.Status >= 500 && respErr.Status < 600):
		return &ServiceError{
			Kind:      KindServer,
			Message:   "The server is temporarily unavailable. Please try again shortly.",
			Retryable: true,
			cause:     respErr,
		}
	default:
		message := strings.TrimSpace(respErr.Message)
		if message == "" {
			message = genericMessage
		}
		return &ServiceError{Kind: KindServer, Message: message, cause: respErr}
	}
}

func validationDetails(data map[string]client.FieldError) map[string]string {
	if len(data) == 0 {
		return nil
	}
	fields := make([]string, 0, len(data))
	for field := range data {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	details := make(map[string]string, len(data))
	for _, field := range fields {
		message := strings.TrimSpace(data[field].Message)
		if message == "" {
			message = "is invalid"
		}
		// Distinct fields can humanize to the same label ("userName" and
		// "user_name"); later ones keep their raw name so no entry is lost.
		label := humanizeField(field)
		if _, taken := details[label]; taken {
			label = field
		}
		details[label] = message
	}
	return details
}

func validationMessage(details map[string]string) string {
	if len(details) == 0 {
		return "Validation failed. Please review the submitted data."
	}
	fields := make([]string, 0, len(details))
	for field := range details {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, len(fields))
	for i, field := range fields {
		parts[i] = fmt.Sprintf("%s: %s", field, details[field])
	}
	return strings.Join(parts, "; ")
}

// humanizeField un-camel-cases a field name into a readable label, e.g.
// "userName" or "user_name" become "User name".
func humanizeField(field string) string {
	var b strings.Builder
	b.Grow(len(field) + 4)
	for i, r := range field {
		switch {
		case r == '_':
			b.WriteByte(' ')
		case unicode.IsUpper(r) && i > 0:
			b.WriteByte(' ')
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	label := strings.TrimSpace(b.String())
	if label == "" {
		return field
	}
	runes := []rune(label)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func matchesNetworkMessage(message string) bool {
	message = strings.ToLower(message)
	for _, fragment := range networkMessageFragments {
		if strings.Contains(message, fragment) {
			return true
		}
	}
	return false
}

func causeOf(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return nil
}
