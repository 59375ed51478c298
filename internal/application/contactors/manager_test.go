package contactors

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"

	"outreach/internal/adapters/storage"
	"outreach/internal/adapters/storage/docstore"
	outboxStore "outreach/internal/adapters/storage/outbox"
	"outreach/internal/application/writes"
	"outreach/internal/domain/contactor"
)

type storeWriter struct {
	store *docstore.MemoryStore
	ops   int
}

func (w *storeWriter) Apply(ctx context.Context, op writes.Op) (writes.Outcome, error) {
	w.ops++
	if err := op.Apply(ctx, w.store); err != nil {
		return writes.Rejected, nil
	}
	return writes.Applied, nil
}

func newTestManager() (*Manager, *storeWriter) {
	store := docstore.NewMemoryStore()
	w := &storeWriter{store: store}
	return NewManager(store, w), w
}

func TestManager_AddNameTrims(t *testing.T) {
	m, w := newTestManager()
	ctx := context.Background()

	added, err := m.AddName(ctx, "  Sam  ")
	if err != nil || !added {
		t.Fatalf("AddName = %v, %v", added, err)
	}
	if got := m.Names(); len(got) != 1 || got[0] != "Sam" {
		t.Errorf("Names() = %v, want [Sam]", got)
	}
	docs, _ := w.store.ListAll(ctx, Collection)
	if len(docs) != 1 || docs[0].Data[contactor.FieldName] != "Sam" {
		t.Errorf("stored = %+v", docs)
	}
}

func TestManager_AddBlankIsNoop(t *testing.T) {
	m, w := newTestManager()
	for _, raw := range []string{"", "   ", "\t"} {
		added, err := m.AddName(context.Background(), raw)
		if err != nil || added {
			t.Errorf("AddName(%q) = %v, %v; want false, nil", raw, added, err)
		}
	}
	if len(m.Names()) != 0 || w.ops != 0 {
		t.Errorf("blank names changed state: names=%v writes=%d", m.Names(), w.ops)
	}
}

func TestManager_RemoveNameDeletesDuplicates(t *testing.T) {
	m, w := newTestManager()
	ctx := context.Background()
	m.AddName(ctx, "Sam")
	m.AddName(ctx, "Jo")
	m.AddName(ctx, "Sam")

	if n := m.RemoveName(ctx, "Sam"); n != 2 {
		t.Errorf("RemoveName = %d, want 2", n)
	}
	if got := m.Names(); len(got) != 1 || got[0] != "Jo" {
		t.Errorf("Names() = %v, want [Jo]", got)
	}
	docs, _ := w.store.Query(ctx, Collection, contactor.FieldName, "Sam")
	if len(docs) != 0 {
		t.Errorf("%d Sam documents left, want 0", len(docs))
	}
}

func TestManager_Options(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()
	m.AddName(ctx, "Sam")
	m.AddName(ctx, "Jo")

	filter := m.FilterOptions()
	if len(filter) != 3 || filter[0] != contactor.AllOption || filter[1] != "Sam" {
		t.Errorf("FilterOptions() = %v", filter)
	}
	form := m.FormOptions()
	if len(form) != 2 || form[0] != "Sam" {
		t.Errorf("FormOptions() = %v", form)
	}
}

func TestManager_LoadSkipsNamelessDocuments(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	store.Set(ctx, Collection, "1", map[string]any{"name": "Sam"})
	store.Set(ctx, Collection, "2", map[string]any{"label": "stray"})
	store.Set(ctx, Collection, "3", map[string]any{"name": "Jo"})

	m := NewManager(store, &storeWriter{store: store})
	if err := m.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := m.Names(); len(got) != 2 || got[0] != "Sam" || got[1] != "Jo" {
		t.Errorf("Names() = %v", got)
	}

	store.FailReads(errors.New("offline"))
	if err := m.Load(ctx); err == nil {
		t.Error("Load error = nil, want read error")
	}
	if len(m.Names()) != 0 {
		t.Error("names should be empty after failed load")
	}
}

func TestManager_RemovedNameStaysRemovedAfterReplay(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := storage.InitDB(db); err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	w := writes.NewWriter(store, outboxStore.NewSQLiteStore(db))
	replayer := writes.NewReplayer(w)
	replayer.SetBackoff(0, 0)
	m := NewManager(w, w)

	store.FailWrites(errors.New("offline"))
	m.AddName(ctx, "Bob")
	store.FailWrites(nil)
	m.RemoveName(ctx, "Bob")

	// Before replay the queued add and remove cancel out.
	if err := m.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := m.Names(); len(got) != 0 {
		t.Errorf("Names() before replay = %v, want none", got)
	}

	report, err := replayer.ProcessPending(ctx)
	if err != nil || report.Succeeded != 2 {
		t.Fatalf("ProcessPending = %+v, %v; want 2 applied", report, err)
	}
	docs, _ := store.ListAll(ctx, Collection)
	if len(docs) != 0 {
		t.Errorf("stored names = %+v, want none", docs)
	}
	if err := m.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := m.Names(); len(got) != 0 {
		t.Errorf("Names() after replay = %v, want none", got)
	}
}
