// Package filter builds structured filter expressions and serializes them to
// the store's filter-string syntax.
package filter

import (
	"github.com/rpattn/storekit/internal/domain"
)

// Builder accumulates conditions and nested groups through a fluent chain.
// The accumulator is private and discarded after Build; the returned
// StructuredFilter is immutable.
type Builder struct {
	conditions []domain.FilterCondition
	groups     []domain.FilterGroup
	logic      domain.Logic
}

// NewBuilder creates an empty builder with AND logic.
func NewBuilder() *Builder {
	return &Builder{logic: domain.LogicAnd}
}

// Where appends a condition with an explicit operator. The value is converted
// through domain.ValueOf, so slices become array values.
func (b *Builder) Where(field string, op domain.Operator, value any) *Builder {
	b.conditions = append(b.conditions, domain.FilterCondition{
		Field:    field,
		Operator: op,
		Value:    domain.ValueOf(value),
	})
	return b
}

// Equals appends an equality condition.
func (b *Builder) Equals(field string, value any) *Builder {
	return b.Where(field, domain.OpEquals, value)
}

// NotEquals appends an inequality condition.
func (b *Builder) NotEquals(field string, value any) *Builder {
	return b.Where(field, domain.OpNotEquals, value)
}

// GreaterThan appends a strict ordering condition.
func (b *Builder) GreaterThan(field string, value any) *Builder {
	return b.Where(field, domain.OpGreater, value)
}

// GreaterOrEqual appends an inclusive ordering condition.
func (b *Builder) GreaterOrEqual(field string, value any) *Builder {
	return b.Where(field, domain.OpGreaterOrEqual, value)
}

// LessThan appends a strict ordering condition.
func (b *Builder) LessThan(field string, value any) *Builder {
	return b.Where(field, domain.OpLess, value)
}

// LessOrEqual appends an inclusive ordering condition.
func (b *Builder) LessOrEqual(field string, value any) *Builder {
	return b.Where(field, domain.OpLessOrEqual, value)
}

// Contains appends a substring match condition.
func (b *Builder) Contains(field string, value any) *Builder {
	return b.Where(field, domain.OpContains, value)
}

// NotContains appends a negated substring match condition.
func (b *Builder) NotContains(field string, value any) *Builder {
	return b.Where(field, domain.OpNotContains, value)
}

// In appends an any-of equality condition over the given values. The any-of
// operator is forced so the array value always passes serialization.
func (b *Builder) In(field string, values ...any) *Builder {
	return b.Where(field, domain.OpAnyEquals, values)
}

// NotIn appends an any-of inequality condition over the given values.
func (b *Builder) NotIn(field string, values ...any) *Builder {
	return b.Where(field, domain.OpAnyNotEquals, values)
}

// Group invokes fn on a fresh builder and appends the result as a nested
// group. The sub-builder's own nested groups are preserved, not flattened into
// the child's top-level conditions. An empty sub-builder is pruned.
func (b *Builder) Group(fn func(*Builder)) *Builder {
	sub := NewBuilder()
	fn(sub)
	group := domain.FilterGroup{
		Conditions: sub.conditions,
		Groups:     sub.groups,
		Logic:      sub.logic,
	}
	if group.Empty() {
		return b
	}
	b.groups = append(b.groups, group)
	return b
}

// SetLogic sets the combinator applied between this builder's own conditions
// and groups.
func (b *Builder) SetLogic(logic domain.Logic) *Builder {
	b.logic = logic
	return b
}

// Build returns the immutable structured filter. Absent parts stay nil so
// serialization has nothing to do for them.
func (b *Builder) Build() domain.StructuredFilter {
	filter := domain.StructuredFilter{Logic: b.logic}
	if len(b.conditions) > 0 {
		filter.Conditions = append([]domain.FilterCondition(nil), b.conditions...)
	}
	if len(b.groups) > 0 {
		filter.Groups = append([]domain.FilterGroup(nil), b.groups...)
	}
	return filter
}
