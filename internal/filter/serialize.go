package filter

import (
	"fmt"
	"strings"

	"github.com/rpattn/storekit/internal/domain"
)

// FieldMapping translates an application field name to its storage name during
// serialization. A nil mapping leaves field names untouched.
type FieldMapping func(field string) string

// ToFilterString serializes a structured filter depth-first into the store's
// filter syntax. An empty filter serializes to the empty string.
func ToFilterString(f domain.StructuredFilter, mapping FieldMapping) (string, error) {
	return serializeLevel(f.Conditions, f.Groups, f.Logic, mapping)
}

func serializeLevel(conditions []domain.FilterCondition, groups []domain.FilterGroup, logic domain.Logic, mapping FieldMapping) (string, error) {
	if logic != domain.LogicOr {
		logic = domain.LogicAnd
	}

	parts := make([]string, 0, len(conditions)+len(groups))
	for _, cond := range conditions {
		part, err := serializeCondition(cond, mapping)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	for _, group := range groups {
		if group.Empty() {
			continue
		}
		inner, err := serializeLevel(group.Conditions, group.Groups, group.Logic, mapping)
		if err != nil {
			return "", err
		}
		parts = append(parts, "("+inner+")")
	}

	return strings.Join(parts, " "+string(logic)+" "), nil
}

func serializeCondition(cond domain.FilterCondition, mapping FieldMapping) (string, error) {
	if !cond.Operator.Valid() {
		return "", fmt.Errorf("filter field %q: unknown operator %q", cond.Field, cond.Operator)
	}

	field := cond.Field
	if mapping != nil {
		field = mapping(field)
	}

	if cond.Value.IsArray() {
		if !cond.Operator.IsAnyOf() {
			return "", fmt.Errorf("filter field %q: operator %q cannot accept an array value", cond.Field, cond.Operator)
		}
		elements := cond.Value.Elements()
		if len(elements) == 0 {
			// An any-of over nothing degrades to the empty-string comparison,
			// matching the null scalar serialization.
			return fmt.Sprintf("%s %s ''", field, cond.Operator.Base()), nil
		}
		base := cond.Operator.Base()
		parts := make([]string, len(elements))
		for i, element := range elements {
			parts[i] = fmt.Sprintf("%s %s '%s'", field, base, escape(element.Literal()))
		}
		if len(parts) == 1 {
			return parts[0], nil
		}
		return "(" + strings.Join(parts, " "+string(domain.LogicOr)+" ") + ")", nil
	}

	return fmt.Sprintf("%s %s '%s'", field, cond.Operator, escape(cond.Value.Literal())), nil
}

func escape(literal string) string {
	literal = strings.ReplaceAll(literal, `'`, `\'`)
	literal = strings.ReplaceAll(literal, `"`, `\"`)
	return literal
}
