// Package contacts keeps the active and inactive contact lists in memory
// and mirrors every change to the document store.
package contacts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"outreach/internal/adapters/storage/docstore"
	"outreach/internal/application/writes"
	"outreach/internal/domain/contact"
)

// Collection holds one document per contact, keyed by contact id.
const Collection = "contacts"

// DocumentReader loads the contact documents. *writes.Writer serves them
// with queued writes already applied.
type DocumentReader interface {
	ListAll(ctx context.Context, collection string) ([]docstore.Doc, error)
}

// DocumentWriter issues remote writes.
type DocumentWriter interface {
	Apply(ctx context.Context, op writes.Op) (writes.Outcome, error)
}

// Options configures a Repository.
type Options struct {
	// PersistContactedReset makes ResetAllContacted write the cleared flags
	// to the store. When false the reset only affects this process.
	PersistContactedReset bool
}

// Repository holds both contact sets in memory. Every mutation updates
// memory first and then issues the remote write; a failed write does not
// roll memory back.
// INVARIANT: every contact id appears in exactly one set
// INVARIANT: remote writes are issued in the order memory was changed
type Repository struct {
	mu     sync.RWMutex
	seq    writes.Sequencer
	lists  map[contact.Set][]contact.Contact
	reader DocumentReader
	writer DocumentWriter
	opts   Options
	newID  func() string
}

// NewRepository creates an empty repository. Call LoadAll to populate it.
func NewRepository(reader DocumentReader, writer DocumentWriter, opts Options) *Repository {
	return &Repository{
		lists:  emptyLists(),
		reader: reader,
		writer: writer,
		opts:   opts,
		newID:  uuid.NewString,
	}
}

func emptyLists() map[contact.Set][]contact.Contact {
	return map[contact.Set][]contact.Contact{
		contact.SetActive:   nil,
		contact.SetInactive: nil,
	}
}

// LoadAll replaces both sets with the stored contacts.
// Malformed documents are coerced; documents without any id are skipped.
// POST: on read failure both sets are empty and the error is returned
func (r *Repository) LoadAll(ctx context.Context) error {
	docs, err := r.reader.ListAll(ctx, Collection)
	if err != nil {
		r.mu.Lock()
		r.lists = emptyLists()
		r.mu.Unlock()
		slog.Error("contact_event", "event", "load_failed", "error", err)
		return fmt.Errorf("load contacts: %w", err)
	}

	lists := emptyLists()
	seen := make(map[string]bool, len(docs))
	skipped := 0
	for _, d := range docs {
		c, err := contact.FromDocument(d.ID, d.Data)
		if err != nil {
			slog.Warn("contact_event", "event", "document_skipped", "document_id", d.ID, "error", err)
			skipped++
			continue
		}
		if seen[c.ID] {
			slog.Warn("contact_event", "event", "duplicate_id_skipped", "contact_id", c.ID, "document_id", d.ID)
			skipped++
			continue
		}
		seen[c.ID] = true
		lists[c.Set] = append(lists[c.Set], c)
	}

	r.mu.Lock()
	r.lists = lists
	r.mu.Unlock()

	slog.Info("contact_event", "event", "contacts_loaded",
		"active", len(lists[contact.SetActive]), "inactive", len(lists[contact.SetInactive]), "skipped", skipped)
	return nil
}

// Create adds a contact to set with a fresh id.
// PRE: set is valid
// POST: NoResponse is 0, Contacted is false; the contact is last in its set
func (r *Repository) Create(ctx context.Context, set contact.Set, f contact.Fields) (contact.Contact, error) {
	if !set.Valid() {
		return contact.Contact{}, contact.ErrInvalidSet
	}
	c := contact.New(r.newID(), set, f)

	r.mu.Lock()
	r.lists[set] = append(r.lists[set], c)
	ticket := r.seq.Ticket()
	r.mu.Unlock()

	slog.Info("contact_event", "event", "contact_created", "contact_id", c.ID, "set", set)
	r.commit(ctx, ticket, writes.Set(Collection, c.ID, c.Document()))
	return c, nil
}

// Update applies a partial edit of free-text fields.
// PRE: the contact is in set
// POST: returns contact.ErrNotFound when it is not; an empty patch writes nothing
func (r *Repository) Update(ctx context.Context, set contact.Set, id string, p contact.Patch) (contact.Contact, error) {
	c, err := r.mutate(ctx, set, id, func(c *contact.Contact) (writes.Op, bool) {
		p.Apply(c)
		return writes.Update(Collection, id, p.Document()), !p.IsEmpty()
	})
	if err == nil && !p.IsEmpty() {
		slog.Info("contact_event", "event", "contact_updated", "contact_id", id, "set", set)
	}
	return c, err
}

// Delete removes a contact from set. Deleting an absent id does nothing.
func (r *Repository) Delete(ctx context.Context, set contact.Set, id string) error {
	if !set.Valid() {
		return contact.ErrInvalidSet
	}
	r.mu.Lock()
	list := r.lists[set]
	idx := indexOf(list, id)
	if idx < 0 {
		r.mu.Unlock()
		return nil
	}
	r.lists[set] = append(list[:idx:idx], list[idx+1:]...)
	ticket := r.seq.Ticket()
	r.mu.Unlock()

	slog.Info("contact_event", "event", "contact_deleted", "contact_id", id, "set", set)
	r.commit(ctx, ticket, writes.Delete(Collection, id))
	return nil
}

// ToggleContacted flips the contacted flag.
// POST: only the contacted field is written
func (r *Repository) ToggleContacted(ctx context.Context, set contact.Set, id string) (contact.Contact, error) {
	return r.mutate(ctx, set, id, func(c *contact.Contact) (writes.Op, bool) {
		c.ToggleContacted()
		return writes.Update(Collection, id, map[string]any{contact.FieldContacted: c.Contacted}), true
	})
}

// IncrementNoResponse adds one to the no-response counter.
// POST: only the noResponse field is written
func (r *Repository) IncrementNoResponse(ctx context.Context, set contact.Set, id string) (contact.Contact, error) {
	return r.mutate(ctx, set, id, func(c *contact.Contact) (writes.Op, bool) {
		c.IncrementNoResponse()
		return writes.Update(Collection, id, map[string]any{contact.FieldNoResponse: c.NoResponse}), true
	})
}

// DecrementNoResponse subtracts one from the no-response counter.
// POST: at 0 nothing changes and nothing is written
func (r *Repository) DecrementNoResponse(ctx context.Context, set contact.Set, id string) (contact.Contact, error) {
	return r.mutate(ctx, set, id, func(c *contact.Contact) (writes.Op, bool) {
		changed := c.DecrementNoResponse()
		return writes.Update(Collection, id, map[string]any{contact.FieldNoResponse: c.NoResponse}), changed
	})
}

// Move transfers a contact from fromSet to the opposite set and rewrites
// its tracking fields. The store sees one update of set, noResponse and
// contacted, so the contact is never absent or duplicated remotely.
// POST: the contact is appended to the target set
func (r *Repository) Move(ctx context.Context, fromSet contact.Set, id string) (contact.Contact, error) {
	if !fromSet.Valid() {
		return contact.Contact{}, contact.ErrInvalidSet
	}
	target := fromSet.Opposite()

	r.mu.Lock()
	list := r.lists[fromSet]
	idx := indexOf(list, id)
	if idx < 0 {
		r.mu.Unlock()
		return contact.Contact{}, contact.ErrNotFound
	}
	c := list[idx]
	r.lists[fromSet] = append(list[:idx:idx], list[idx+1:]...)
	c.MoveTo(target)
	r.lists[target] = append(r.lists[target], c)
	ticket := r.seq.Ticket()
	r.mu.Unlock()

	slog.Info("contact_event", "event", "contact_moved", "contact_id", id, "from", fromSet, "to", target)
	r.commit(ctx, ticket, writes.Update(Collection, id, c.TrackingDocument()))
	return c, nil
}

// ResetAllContacted clears the contacted flag on every contact in both sets.
// POST: returns how many contacts changed; writes only when PersistContactedReset is set
func (r *Repository) ResetAllContacted(ctx context.Context) int {
	var changed []string
	r.mu.Lock()
	for set, list := range r.lists {
		for i := range list {
			if list[i].Contacted {
				list[i].Contacted = false
				changed = append(changed, list[i].ID)
			}
		}
		r.lists[set] = list
	}
	persist := r.opts.PersistContactedReset && len(changed) > 0
	var ticket uint64
	if persist {
		ticket = r.seq.Ticket()
	}
	r.mu.Unlock()

	slog.Info("contact_event", "event", "contacted_reset", "count", len(changed), "persisted", r.opts.PersistContactedReset)
	if persist {
		ops := make([]writes.Op, 0, len(changed))
		for _, id := range changed {
			ops = append(ops, writes.Update(Collection, id, map[string]any{contact.FieldContacted: false}))
		}
		r.commit(ctx, ticket, ops...)
	}
	return len(changed)
}

// List returns a copy of the contacts in set, in order.
func (r *Repository) List(set contact.Set) []contact.Contact {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]contact.Contact, len(r.lists[set]))
	copy(out, r.lists[set])
	return out
}

// Find returns the contact with id from either set.
func (r *Repository) Find(id string) (contact.Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, list := range r.lists {
		if idx := indexOf(list, id); idx >= 0 {
			return list[idx], nil
		}
	}
	return contact.Contact{}, contact.ErrNotFound
}

// Counts returns the size of each set.
func (r *Repository) Counts() (active, inactive int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.lists[contact.SetActive]), len(r.lists[contact.SetInactive])
}

// mutate runs fn on the contact with id in set under the write lock and
// issues the op fn returns when it also returns true.
func (r *Repository) mutate(ctx context.Context, set contact.Set, id string, fn func(*contact.Contact) (writes.Op, bool)) (contact.Contact, error) {
	if !set.Valid() {
		return contact.Contact{}, contact.ErrInvalidSet
	}
	r.mu.Lock()
	list := r.lists[set]
	idx := indexOf(list, id)
	if idx < 0 {
		r.mu.Unlock()
		return contact.Contact{}, contact.ErrNotFound
	}
	op, write := fn(&list[idx])
	c := list[idx]
	if !write {
		r.mu.Unlock()
		return c, nil
	}
	ticket := r.seq.Ticket()
	r.mu.Unlock()

	r.commit(ctx, ticket, op)
	return c, nil
}

// commit issues ops in the turn reserved by ticket. The ticket must be
// taken under r.mu so turns follow the order of the memory changes.
func (r *Repository) commit(ctx context.Context, ticket uint64, ops ...writes.Op) {
	r.seq.Run(ticket, func() {
		for _, op := range ops {
			r.write(ctx, op)
		}
	})
}

// write issues op. Failures are handled by the writer and never undo memory.
func (r *Repository) write(ctx context.Context, op writes.Op) {
	if _, err := r.writer.Apply(ctx, op); err != nil {
		slog.Error("contact_event", "event", "write_lost", "contact_id", op.DocumentID, "kind", op.Kind, "error", err)
	}
}

func indexOf(list []contact.Contact, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}
