// Package mapper translates record payloads between the application naming
// convention (camelCase) and the storage naming convention (snake_case).
package mapper

import (
	"strings"
	"time"
	"unicode"
)

// maxDepth bounds recursion into nested payloads so a cyclic or degenerate
// payload cannot blow the stack.
const maxDepth = 32

// FieldMapper performs bidirectional field-name translation. Explicit
// overrides supplied at construction win over the automatic convention-based
// conversion in both directions.
type FieldMapper struct {
	toStorage     map[string]string
	toApplication map[string]string
}

// New creates a field mapper. The overrides map application keys to storage
// keys; the reverse direction is derived from it.
func New(overrides map[string]string) *FieldMapper {
	m := &FieldMapper{
		toStorage:     make(map[string]string, len(overrides)),
		toApplication: make(map[string]string, len(overrides)),
	}
	for app, storage := range overrides {
		m.toStorage[app] = storage
		m.toApplication[storage] = app
	}
	return m
}

// StorageField translates a single application field name to its storage name.
func (m *FieldMapper) StorageField(field string) string {
	if mapped, ok := m.toStorage[field]; ok {
		return mapped
	}
	return camelToSnake(field)
}

// ApplicationField translates a single storage field name to its application
// name.
func (m *FieldMapper) ApplicationField(field string) string {
	if mapped, ok := m.toApplication[field]; ok {
		return mapped
	}
	return snakeToCamel(field)
}

// ToStorage translates every key of the payload to the storage convention,
// recursing into nested plain maps. Arrays and date-like values are treated as
// atomic leaves; leaf values pass through unchanged.
func (m *FieldMapper) ToStorage(payload map[string]any) map[string]any {
	return m.translate(payload, m.StorageField, 0)
}

// ToApplication translates every key of the payload to the application
// convention, recursing into nested plain maps.
func (m *FieldMapper) ToApplication(payload map[string]any) map[string]any {
	return m.translate(payload, m.ApplicationField, 0)
}

// MapFilterFields applies only the key-translation half, for building filters
// against storage field names. Values are carried over untouched.
func (m *FieldMapper) MapFilterFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	mapped := make(map[string]any, len(fields))
	for key, value := range fields {
		mapped[m.StorageField(key)] = value
	}
	return mapped
}

func (m *FieldMapper) translate(payload map[string]any, field func(string) string, depth int) map[string]any {
	if payload == nil {
		return nil
	}
	translated := make(map[string]any, len(payload))
	for key, value := range payload {
		translated[field(key)] = m.translateValue(value, field, depth+1)
	}
	return translated
}

func (m *FieldMapper) translateValue(value any, field func(string) string, depth int) any {
	if depth >= maxDepth {
		return value
	}
	switch v := value.(type) {
	case time.Time, *time.Time:
		return value
	case map[string]any:
		return m.translate(v, field, depth)
	default:
		return value
	}
}

func camelToSnake(field string) string {
	var b strings.Builder
	b.Grow(len(field) + 4)
	for i, r := range field {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func snakeToCamel(field string) string {
	parts := strings.Split(field, "_")
	if len(parts) == 1 {
		return field
	}
	var b strings.Builder
	b.Grow(len(field))
	for i, part := range parts {
		if i == 0 || part == "" {
			b.WriteString(part)
			continue
		}
		runes := []rune(part)
		b.WriteRune(unicode.ToUpper(runes[0]))
		b.WriteString(string(runes[1:]))
	}
	return b.String()
}
