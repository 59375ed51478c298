// Package contactors manages the reference list of people who contact
// outreach contacts. Names are free text; contacts are not checked against it.
package contactors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"outreach/internal/adapters/storage/docstore"
	"outreach/internal/application/writes"
	"outreach/internal/domain/contactor"
)

// Collection holds one {name} document per list entry.
const Collection = "whoContacts"

// DocumentReader loads the name documents. *writes.Writer serves them
// with queued writes already applied.
type DocumentReader interface {
	ListAll(ctx context.Context, collection string) ([]docstore.Doc, error)
}

// DocumentWriter issues remote writes.
type DocumentWriter interface {
	Apply(ctx context.Context, op writes.Op) (writes.Outcome, error)
}

// Manager holds the reference names in memory in insertion order.
// Duplicates are allowed, as in the stored collection.
type Manager struct {
	mu     sync.RWMutex
	seq    writes.Sequencer
	names  []string
	reader DocumentReader
	writer DocumentWriter
}

// NewManager creates an empty manager. Call Load to populate it.
func NewManager(reader DocumentReader, writer DocumentWriter) *Manager {
	return &Manager{reader: reader, writer: writer}
}

// Load replaces the names with the stored ones.
// POST: on read failure the list is empty and the error is returned
func (m *Manager) Load(ctx context.Context) error {
	docs, err := m.reader.ListAll(ctx, Collection)
	if err != nil {
		m.mu.Lock()
		m.names = nil
		m.mu.Unlock()
		slog.Error("contactor_event", "event", "load_failed", "error", err)
		return fmt.Errorf("load contactors: %w", err)
	}
	names := make([]string, 0, len(docs))
	for _, d := range docs {
		if name, ok := contactor.FromDocument(d.Data); ok {
			names = append(names, name)
		}
	}
	m.mu.Lock()
	m.names = names
	m.mu.Unlock()
	return nil
}

// AddName appends a trimmed name and stores it under a new document id.
// POST: blank input changes nothing and returns false
func (m *Manager) AddName(ctx context.Context, raw string) (bool, error) {
	name, err := contactor.Normalize(raw)
	if errors.Is(err, contactor.ErrBlankName) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	m.names = append(m.names, name)
	ticket := m.seq.Ticket()
	m.mu.Unlock()

	slog.Info("contactor_event", "event", "name_added", "name", name)
	m.write(ctx, ticket, writes.Set(Collection, uuid.NewString(), contactor.Document(name)))
	return true, nil
}

// RemoveName removes every occurrence of name, in memory and in the store,
// including stored copies whose add is still queued.
// POST: returns how many in-memory entries were removed
func (m *Manager) RemoveName(ctx context.Context, name string) int {
	m.mu.Lock()
	kept := m.names[:0:0]
	for _, n := range m.names {
		if n != name {
			kept = append(kept, n)
		}
	}
	removed := len(m.names) - len(kept)
	m.names = kept
	ticket := m.seq.Ticket()
	m.mu.Unlock()

	slog.Info("contactor_event", "event", "name_removed", "name", name, "count", removed)
	m.write(ctx, ticket, writes.DeleteWhere(Collection, contactor.FieldName, name))
	return removed
}

// Names returns a copy of the names in insertion order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// FilterOptions returns "All" followed by the names.
func (m *Manager) FilterOptions() []string {
	return contactor.FilterOptions(m.Names())
}

// FormOptions returns the names without "All".
func (m *Manager) FormOptions() []string {
	return contactor.FormOptions(m.Names())
}

// write issues op in the turn taken under m.mu.
func (m *Manager) write(ctx context.Context, ticket uint64, op writes.Op) {
	m.seq.Run(ticket, func() {
		if _, err := m.writer.Apply(ctx, op); err != nil {
			slog.Error("contactor_event", "event", "write_lost", "kind", op.Kind, "error", err)
		}
	})
}
