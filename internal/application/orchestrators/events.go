package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"outreach/internal/adapters/storage/docstore"
	"outreach/internal/application/writes"
	"outreach/internal/domain/event"
)

// EventCollection holds one document per event.
const EventCollection = "events"

// EventReader defines the store reads needed by the event orchestrators.
type EventReader interface {
	Get(ctx context.Context, collection, id string) (docstore.Doc, error)
	ListAll(ctx context.Context, collection string) ([]docstore.Doc, error)
}

// EventWriter issues event writes through the write path.
type EventWriter interface {
	Apply(ctx context.Context, op writes.Op) (writes.Outcome, error)
}

// EventDeps holds dependencies for the event orchestrators.
type EventDeps struct {
	Reader     EventReader
	Writer     EventWriter
	GenerateID func() string
}

func (d EventDeps) newID() string {
	if d.GenerateID != nil {
		return d.GenerateID()
	}
	return uuid.NewString()
}

// ExecuteListEvents returns every event in creation order.
// POST: documents that fail validation are still listed, as stored
func ExecuteListEvents(ctx context.Context, deps EventDeps) ([]event.Event, error) {
	docs, err := deps.Reader.ListAll(ctx, EventCollection)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	events := make([]event.Event, 0, len(docs))
	for _, d := range docs {
		events = append(events, event.FromDocument(d.ID, d.Data))
	}
	return events, nil
}

// CreateEventInput carries the initial fields. A zero input creates a blank event.
type CreateEventInput struct {
	Name        string
	Date        string
	Description string
	Details     string
	ImageURL    string
}

// ExecuteCreateEvent stores a new event.
// PRE: none
// POST: Returns the event with a fresh id, or a validation error and nothing is written
func ExecuteCreateEvent(ctx context.Context, input CreateEventInput, deps EventDeps) (event.Event, error) {
	e := event.Event{
		ID:          deps.newID(),
		Name:        input.Name,
		Date:        input.Date,
		Description: input.Description,
		Details:     input.Details,
		ImageURL:    input.ImageURL,
	}
	if err := e.Validate(); err != nil {
		return event.Event{}, err
	}
	outcome, err := deps.Writer.Apply(ctx, writes.Set(EventCollection, e.ID, e.Document()))
	if err != nil {
		return event.Event{}, err
	}
	slog.Info("event_event", "event", "event_created", "event_id", e.ID, "outcome", outcome.String())
	return e, nil
}

// UpdateEventFieldInput names one field and its new value.
type UpdateEventFieldInput struct {
	ID    string
	Field string
	Value string
}

// ExecuteUpdateEventField changes a single editable field.
// PRE: input.Field is one of event.EditableFields
// POST: Returns the updated event; event.ErrNotFound for an unknown id
func ExecuteUpdateEventField(ctx context.Context, input UpdateEventFieldInput, deps EventDeps) (event.Event, error) {
	doc, err := deps.Reader.Get(ctx, EventCollection, input.ID)
	if errors.Is(err, docstore.ErrNotFound) || errors.Is(err, docstore.ErrEmptyID) {
		return event.Event{}, event.ErrNotFound
	}
	if err != nil {
		return event.Event{}, fmt.Errorf("get event: %w", err)
	}

	e := event.FromDocument(doc.ID, doc.Data)
	if err := e.SetField(input.Field, input.Value); err != nil {
		return event.Event{}, err
	}
	if _, err := deps.Writer.Apply(ctx, writes.Update(EventCollection, e.ID, map[string]any{input.Field: input.Value})); err != nil {
		return event.Event{}, err
	}
	slog.Info("event_event", "event", "event_updated", "event_id", e.ID, "field", input.Field)
	return e, nil
}

// ExecuteDeleteEvent removes an event. Deleting an unknown id is a no-op.
func ExecuteDeleteEvent(ctx context.Context, id string, deps EventDeps) error {
	if id == "" {
		return event.ErrNotFound
	}
	if _, err := deps.Writer.Apply(ctx, writes.Delete(EventCollection, id)); err != nil {
		return err
	}
	slog.Info("event_event", "event", "event_deleted", "event_id", id)
	return nil
}
