package filter

import (
	"time"

	"github.com/rpattn/storekit/internal/domain"
)

// ForUser builds the filter matching records owned by the given user.
func ForUser(userID string) domain.StructuredFilter {
	return NewBuilder().Equals("user", userID).Build()
}

// DateRange builds the inclusive range filter start <= field <= end.
func DateRange(field string, start, end time.Time) domain.StructuredFilter {
	return NewBuilder().
		GreaterOrEqual(field, start).
		LessOrEqual(field, end).
		Build()
}

// WithStatus builds a status filter. A single status compares with equality;
// multiple statuses use the any-of form.
func WithStatus(statuses ...string) domain.StructuredFilter {
	b := NewBuilder()
	switch len(statuses) {
	case 0:
		return b.Build()
	case 1:
		return b.Equals("status", statuses[0]).Build()
	default:
		values := make([]any, len(statuses))
		for i, status := range statuses {
			values[i] = status
		}
		return b.In("status", values...).Build()
	}
}
