package domain

// Logic is the boolean combinator applied between sibling conditions and
// groups of a filter level.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Operator is the closed set of comparison operators understood by the store's
// filter syntax. The "?"-prefixed variants are the any-of forms: they accept an
// array value and match when at least one element satisfies the base operator.
type Operator string

const (
	OpEquals         Operator = "="
	OpNotEquals      Operator = "!="
	OpGreater        Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpLess           Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpContains       Operator = "~"
	OpNotContains    Operator = "!~"

	OpAnyEquals         Operator = "?="
	OpAnyNotEquals      Operator = "?!="
	OpAnyGreater        Operator = "?>"
	OpAnyGreaterOrEqual Operator = "?>="
	OpAnyLess           Operator = "?<"
	OpAnyLessOrEqual    Operator = "?<="
	OpAnyContains       Operator = "?~"
	OpAnyNotContains    Operator = "?!~"
)

// IsAnyOf reports whether the operator is an any-of variant.
func (o Operator) IsAnyOf() bool {
	return len(o) > 1 && o[0] == '?'
}

// Base strips the any-of prefix, returning the scalar form of the operator.
func (o Operator) Base() Operator {
	if o.IsAnyOf() {
		return Operator(o[1:])
	}
	return o
}

// Valid reports whether the operator is a member of the closed enumeration.
func (o Operator) Valid() bool {
	switch o.Base() {
	case OpEquals, OpNotEquals, OpGreater, OpGreaterOrEqual, OpLess, OpLessOrEqual, OpContains, OpNotContains:
		return true
	}
	return false
}

// FilterCondition is a single field comparison.
type FilterCondition struct {
	Field    string
	Operator Operator
	Value    Value
}

// FilterGroup is a parenthesized set of conditions and nested groups joined by
// its own logic. Groups nest to arbitrary depth; an empty group (no conditions
// and no nested groups) is pruned by the builder and never serialized.
type FilterGroup struct {
	Conditions []FilterCondition
	Groups     []FilterGroup
	Logic      Logic
}

// Empty reports whether the group carries no conditions and no nested groups.
func (g FilterGroup) Empty() bool {
	return len(g.Conditions) == 0 && len(g.Groups) == 0
}

// StructuredFilter is the immutable condition/group tree produced by the
// filter builder. Nil slices mean "absent": serialization has nothing to do
// for missing parts.
type StructuredFilter struct {
	Conditions []FilterCondition
	Groups     []FilterGroup
	Logic      Logic
}

// Empty reports whether the filter carries no conditions and no groups.
func (f StructuredFilter) Empty() bool {
	return len(f.Conditions) == 0 && len(f.Groups) == 0
}
