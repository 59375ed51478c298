package outbox

import (
	"context"
	"errors"
	"time"

	domain "outreach/internal/domain/outbox"
)

// ErrNotFound is returned when no entry matches.
var ErrNotFound = errors.New("outbox entry not found")

// Store defines the interface for outbox entry persistence.
type Store interface {
	// GetByID retrieves an outbox entry by its ID.
	// PRE: id is non-empty
	// POST: Returns the entry or ErrNotFound
	GetByID(ctx context.Context, id string) (domain.Entry, error)

	// Save persists an outbox entry.
	// PRE: entity has been validated
	// POST: Entity is persisted (insert or update)
	Save(ctx context.Context, e domain.Entry) error

	// ListOpen returns entries still waiting to be applied (pending or retrying).
	// PRE: limit > 0
	// POST: Returns up to limit entries oldest first
	ListOpen(ctx context.Context, limit int) ([]domain.Entry, error)

	// ListFailed returns entries that have permanently failed.
	// PRE: limit > 0
	// POST: Returns up to limit entries, most recently attempted first
	ListFailed(ctx context.Context, limit int) ([]domain.Entry, error)

	// ListOpenIn returns every open entry for collection, oldest first.
	ListOpenIn(ctx context.Context, collection string) ([]domain.Entry, error)

	// HasOpen reports whether any open entry targets the given document.
	HasOpen(ctx context.Context, collection, documentID string) (bool, error)

	// HasOpenIn reports whether any open entry writes to collection.
	HasOpenIn(ctx context.Context, collection string) (bool, error)

	// CountByStatus returns the number of entries per status.
	CountByStatus(ctx context.Context) (map[string]int, error)

	// PurgeDone deletes done and abandoned entries created before cutoff.
	// POST: Returns the number of deleted entries
	PurgeDone(ctx context.Context, cutoff time.Time) (int64, error)
}
