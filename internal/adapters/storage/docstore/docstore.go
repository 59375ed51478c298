// Package docstore stores schema-less documents in named collections.
// Documents are JSON-like field maps addressed by a string id. Backends:
// SQLite and PostgreSQL (JSON columns), MongoDB, and an in-memory store.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Errors returned by every backend.
var (
	ErrNotFound          = errors.New("document not found")
	ErrInvalidField      = errors.New("invalid field name")
	ErrInvalidCollection = errors.New("invalid collection name")
	ErrEmptyID           = errors.New("document id is required")
)

// Doc is a stored document.
type Doc struct {
	ID   string
	Data map[string]any
}

// Store is a document store client.
type Store interface {
	// Set writes fields into the document, creating it when absent.
	// Fields not named keep their stored values.
	// PRE: id is non-empty
	Set(ctx context.Context, collection, id string, fields map[string]any) error

	// Add creates a document under a generated id.
	// POST: Returns the new id
	Add(ctx context.Context, collection string, fields map[string]any) (string, error)

	// Get returns one document.
	// POST: Returns ErrNotFound when absent
	Get(ctx context.Context, collection, id string) (Doc, error)

	// Query returns documents whose field equals value, in insertion order.
	Query(ctx context.Context, collection, field string, value any) ([]Doc, error)

	// UpdateFields merges fields into an existing document.
	// POST: Returns ErrNotFound when the document does not exist
	UpdateFields(ctx context.Context, collection, id string, fields map[string]any) error

	// Delete removes a document. Deleting an absent document is not an error.
	Delete(ctx context.Context, collection, id string) error

	// ListAll returns every document in insertion order.
	ListAll(ctx context.Context, collection string) ([]Doc, error)
}

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// ValidateCollection checks a collection name.
func ValidateCollection(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidCollection, name)
	}
	return nil
}

// ValidateField checks a field name. Field names are embedded in JSON
// paths, so only identifier characters are accepted.
func ValidateField(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidField, name)
	}
	return nil
}

func validateFields(fields map[string]any) error {
	for k := range fields {
		if err := ValidateField(k); err != nil {
			return err
		}
	}
	return nil
}

func validateTarget(collection, id string) error {
	if err := ValidateCollection(collection); err != nil {
		return err
	}
	if id == "" {
		return ErrEmptyID
	}
	return nil
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
