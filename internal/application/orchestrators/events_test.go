package orchestrators

import (
	"context"
	"errors"
	"testing"

	"outreach/internal/adapters/storage/docstore"
	"outreach/internal/application/writes"
	"outreach/internal/domain/event"
)

// storeWriter applies ops straight to a document store.
type storeWriter struct{ store docstore.Store }

func (w storeWriter) Apply(ctx context.Context, op writes.Op) (writes.Outcome, error) {
	if err := op.Apply(ctx, w.store); err != nil {
		return writes.Rejected, err
	}
	return writes.Applied, nil
}

func newEventDeps() (EventDeps, *docstore.MemoryStore) {
	store := docstore.NewMemoryStore()
	n := 0
	return EventDeps{
		Reader: store,
		Writer: storeWriter{store: store},
		GenerateID: func() string {
			n++
			return "event-" + string(rune('0'+n))
		},
	}, store
}

func TestExecuteCreateEvent_BlankAndListed(t *testing.T) {
	deps, _ := newEventDeps()
	ctx := context.Background()

	blank, err := ExecuteCreateEvent(ctx, CreateEventInput{}, deps)
	if err != nil {
		t.Fatalf("create blank: %v", err)
	}
	if blank.ID != "event-1" || blank.Name != "" {
		t.Errorf("blank = %+v", blank)
	}
	if _, err := ExecuteCreateEvent(ctx, CreateEventInput{Name: "Spring Fair", Date: "2026-04-18"}, deps); err != nil {
		t.Fatalf("create: %v", err)
	}

	events, err := ExecuteListEvents(ctx, deps)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 || events[1].Name != "Spring Fair" || events[1].Date != "2026-04-18" {
		t.Errorf("events = %+v", events)
	}
}

func TestExecuteCreateEvent_InvalidWritesNothing(t *testing.T) {
	deps, store := newEventDeps()
	_, err := ExecuteCreateEvent(context.Background(), CreateEventInput{Date: "April 18"}, deps)
	if !errors.Is(err, event.ErrInvalidDate) {
		t.Fatalf("err = %v, want ErrInvalidDate", err)
	}
	if store.Writes() != 0 {
		t.Errorf("writes = %d, want 0", store.Writes())
	}
}

func TestExecuteUpdateEventField(t *testing.T) {
	deps, _ := newEventDeps()
	ctx := context.Background()
	e, _ := ExecuteCreateEvent(ctx, CreateEventInput{Name: "Fair"}, deps)

	tests := []struct {
		name    string
		input   UpdateEventFieldInput
		wantErr error
	}{
		{"details", UpdateEventFieldInput{ID: e.ID, Field: event.FieldDetails, Value: "**Bring** a friend"}, nil},
		{"image", UpdateEventFieldInput{ID: e.ID, Field: event.FieldImageURL, Value: "https://example.org/fair.png"}, nil},
		{"bad image", UpdateEventFieldInput{ID: e.ID, Field: event.FieldImageURL, Value: "javascript:alert(1)"}, event.ErrInvalidImage},
		{"unknown field", UpdateEventFieldInput{ID: e.ID, Field: "owner", Value: "x"}, event.ErrUnknownField},
		{"unknown id", UpdateEventFieldInput{ID: "missing", Field: event.FieldName, Value: "x"}, event.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExecuteUpdateEventField(ctx, tt.input, deps)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	events, _ := ExecuteListEvents(ctx, deps)
	if events[0].Details != "**Bring** a friend" || events[0].ImageURL != "https://example.org/fair.png" || events[0].Name != "Fair" {
		t.Errorf("stored = %+v", events[0])
	}
}

func TestExecuteDeleteEvent(t *testing.T) {
	deps, _ := newEventDeps()
	ctx := context.Background()
	e, _ := ExecuteCreateEvent(ctx, CreateEventInput{Name: "Fair"}, deps)

	if err := ExecuteDeleteEvent(ctx, e.ID, deps); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := ExecuteDeleteEvent(ctx, e.ID, deps); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	events, _ := ExecuteListEvents(ctx, deps)
	if len(events) != 0 {
		t.Errorf("events = %+v, want none", events)
	}
}
