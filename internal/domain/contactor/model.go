package contactor

import (
	"errors"
	"strings"
)

// FieldName is the only key of a reference name document.
const FieldName = "name"

// AllOption is the sentinel filter value that matches every contact.
const AllOption = "All"

// MaxNameLength caps a reference name.
const MaxNameLength = 100

// Domain errors
var (
	ErrBlankName   = errors.New("name cannot be blank")
	ErrNameTooLong = errors.New("name cannot exceed 100 characters")
)

// Normalize trims a reference name and checks it is usable.
// PRE: none
// POST: returns the trimmed name, or ErrBlankName for whitespace-only input
func Normalize(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", ErrBlankName
	}
	if len(name) > MaxNameLength {
		return "", ErrNameTooLong
	}
	return name, nil
}

// Document encodes a reference name as a store document.
func Document(name string) map[string]any {
	return map[string]any{FieldName: name}
}

// FromDocument extracts the name from a stored document.
// POST: ok is false when the document carries no string name
func FromDocument(doc map[string]any) (string, bool) {
	name, ok := doc[FieldName].(string)
	if !ok || strings.TrimSpace(name) == "" {
		return "", false
	}
	return name, true
}

// FilterOptions prepends the "All" sentinel to the names.
func FilterOptions(names []string) []string {
	opts := make([]string, 0, len(names)+1)
	opts = append(opts, AllOption)
	return append(opts, names...)
}

// FormOptions returns the names offered when editing a contact, without "All".
func FormOptions(names []string) []string {
	opts := make([]string, len(names))
	copy(opts, names)
	return opts
}
