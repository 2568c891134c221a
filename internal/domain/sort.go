package domain

import "strings"

// SortDirection represents ordering direction for sortable fields.
type SortDirection string

const (
	SortDirectionAsc  SortDirection = "asc"
	SortDirectionDesc SortDirection = "desc"
)

// SortField is one ordering term of a listing.
type SortField struct {
	Field     string
	Direction SortDirection
}

// Sort captures ordering preferences for record listings.
type Sort []SortField

// String renders the store's sort syntax: comma-separated field names, with a
// leading '-' for descending terms.
func (s Sort) String() string {
	if len(s) == 0 {
		return ""
	}
	parts := make([]string, 0, len(s))
	for _, field := range s {
		if field.Field == "" {
			continue
		}
		if field.Direction == SortDirectionDesc {
			parts = append(parts, "-"+field.Field)
			continue
		}
		parts = append(parts, field.Field)
	}
	return strings.Join(parts, ",")
}
