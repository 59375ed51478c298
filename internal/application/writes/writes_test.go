package writes

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"outreach/internal/adapters/email"
	"outreach/internal/adapters/storage"
	"outreach/internal/adapters/storage/docstore"
	outboxStore "outreach/internal/adapters/storage/outbox"
	domain "outreach/internal/domain/outbox"
)

var errUnavailable = errors.New("store unavailable")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	docs     *docstore.MemoryStore
	outbox   *outboxStore.SQLiteStore
	clock    *fakeClock
	writer   *Writer
	replayer *Replayer
	metrics  *Metrics
	failed   []domain.Entry
}

func newHarness(t *testing.T, opts ...WriterOption) *harness {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.InitDB(db))

	h := &harness{
		docs:    docstore.NewMemoryStore(),
		outbox:  outboxStore.NewSQLiteStore(db),
		clock:   &fakeClock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)},
		metrics: NewMetrics(prometheus.NewRegistry()),
	}
	opts = append([]WriterOption{
		WithClock(h.clock.Now),
		WithMetrics(h.metrics),
		WithFailureHandler(func(_ context.Context, failed []domain.Entry) {
			h.failed = append(h.failed, failed...)
		}),
	}, opts...)
	h.writer = NewWriter(h.docs, h.outbox, opts...)
	h.replayer = NewReplayer(h.writer)
	return h
}

func TestWriter_AppliesDirectly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	outcome, err := h.writer.Apply(ctx, Set("contacts", "c1", map[string]any{"name": "Alice"}))
	require.NoError(t, err)
	assert.Equal(t, Applied, outcome)

	doc, err := h.docs.Get(ctx, "contacts", "c1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", doc.Data["name"])

	status, err := h.replayer.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Healthy())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Writes.WithLabelValues("applied")))
}

func TestWriter_QueuesFailedWriteAndReplays(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.docs.FailWrites(errUnavailable)
	outcome, err := h.writer.Apply(ctx, Set("contacts", "c1", map[string]any{"name": "Alice"}))
	require.NoError(t, err)
	assert.Equal(t, Queued, outcome)

	status, err := h.replayer.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Pending)

	h.docs.FailWrites(nil)
	h.clock.Advance(time.Hour)
	report, err := h.replayer.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)

	doc, err := h.docs.Get(ctx, "contacts", "c1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", doc.Data["name"])

	status, err = h.replayer.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Healthy())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Writes.WithLabelValues("queued")))
	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.Pending))
}

func TestWriter_LaterWritesQueueBehindOpenEntries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.docs.Set(ctx, "contacts", "c1", map[string]any{"noResponse": 0}))

	h.docs.FailWrites(errUnavailable)
	_, err := h.writer.Apply(ctx, Update("contacts", "c1", map[string]any{"noResponse": 1}))
	require.NoError(t, err)

	// The store is back, but the second write must not overtake the first.
	h.docs.FailWrites(nil)
	outcome, err := h.writer.Apply(ctx, Update("contacts", "c1", map[string]any{"noResponse": 2}))
	require.NoError(t, err)
	assert.Equal(t, Queued, outcome)

	// Other documents are unaffected.
	outcome, err = h.writer.Apply(ctx, Set("contacts", "c2", map[string]any{"name": "Bob"}))
	require.NoError(t, err)
	assert.Equal(t, Applied, outcome)

	h.clock.Advance(time.Hour)
	report, err := h.replayer.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)

	doc, err := h.docs.Get(ctx, "contacts", "c1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, doc.Data["noResponse"])
}

func TestReplayer_BlocksTargetUntilHeadApplies(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.docs.FailWrites(errUnavailable)
	h.writer.Apply(ctx, Set("contacts", "c1", map[string]any{"name": "first"}))
	h.writer.Apply(ctx, Set("contacts", "c1", map[string]any{"name": "second"}))

	// Head entry is still backing off, so nothing for c1 runs.
	report, err := h.replayer.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Succeeded)
	assert.Equal(t, 2, report.Skipped)

	// Head fails again; the entry behind it waits.
	h.clock.Advance(time.Hour)
	report, err = h.replayer.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Retrying)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 2, h.docs.Writes(), "one direct attempt and one replay attempt")
}

func TestWriter_RejectsUpdateOfMissingDocument(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	outcome, err := h.writer.Apply(ctx, Update("contacts", "ghost", map[string]any{"contacted": true}))
	require.NoError(t, err)
	assert.Equal(t, Rejected, outcome)
	require.Len(t, h.failed, 1)
	assert.Equal(t, "contacts/ghost", h.failed[0].Key())

	status, err := h.replayer.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, status.Pending)
	require.Len(t, status.Failed, 1)
	assert.False(t, status.Healthy())
}

func TestReplayer_ExhaustedAttemptsFail(t *testing.T) {
	h := newHarness(t, WithMaxAttempts(2))
	ctx := context.Background()

	h.docs.FailWrites(errUnavailable)
	h.writer.Apply(ctx, Set("contacts", "c1", map[string]any{"name": "Alice"}))

	h.clock.Advance(time.Hour)
	report, err := h.replayer.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, h.failed, 1)
	assert.Equal(t, errUnavailable.Error(), h.failed[0].ErrorMessage)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Failed))
}

func TestReplayer_RetryAndAbandon(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.writer.Apply(ctx, Update("contacts", "ghost", map[string]any{"name": "x"}))
	require.Len(t, h.failed, 1)
	id := h.failed[0].ID

	require.NoError(t, h.replayer.Retry(ctx, id))
	entry, err := h.outbox.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, entry.Status)
	assert.Equal(t, 0, entry.Attempts)

	assert.ErrorIs(t, h.replayer.Retry(ctx, id), domain.ErrNotRetryable)

	require.NoError(t, h.replayer.Abandon(ctx, id))
	assert.ErrorIs(t, h.replayer.Abandon(ctx, id), ErrTerminal)

	status, err := h.replayer.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Healthy())
}

func TestOp_DeleteWhereRemovesEveryMatch(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	store.Set(ctx, "whoContacts", "a", map[string]any{"name": "Sam"})
	store.Set(ctx, "whoContacts", "b", map[string]any{"name": "Jo"})
	store.Set(ctx, "whoContacts", "c", map[string]any{"name": "Sam"})

	require.NoError(t, DeleteWhere("whoContacts", "name", "Sam").Apply(ctx, store))

	docs, err := store.ListAll(ctx, "whoContacts")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "b", docs[0].ID)
}

func TestWriter_RemoveWaitsForQueuedAdd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.docs.FailWrites(errUnavailable)
	outcome, err := h.writer.Apply(ctx, Set("whoContacts", "doc-1", map[string]any{"name": "Bob"}))
	require.NoError(t, err)
	require.Equal(t, Queued, outcome)

	// The add has no stored document yet, so removing now would miss it.
	h.docs.FailWrites(nil)
	outcome, err = h.writer.Apply(ctx, DeleteWhere("whoContacts", "name", "Bob"))
	require.NoError(t, err)
	assert.Equal(t, Queued, outcome)

	h.clock.Advance(time.Hour)
	report, err := h.replayer.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)

	docs, err := h.docs.ListAll(ctx, "whoContacts")
	require.NoError(t, err)
	assert.Empty(t, docs, "removed name came back")
}

func TestWriter_WritesWaitForQueuedRemove(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.docs.Set(ctx, "whoContacts", "old", map[string]any{"name": "Bob"}))

	h.docs.FailWrites(errUnavailable)
	h.writer.Apply(ctx, DeleteWhere("whoContacts", "name", "Bob"))
	h.docs.FailWrites(nil)

	outcome, err := h.writer.Apply(ctx, Set("whoContacts", "new", map[string]any{"name": "Bob"}))
	require.NoError(t, err)
	assert.Equal(t, Queued, outcome)

	// Other collections are unaffected.
	outcome, err = h.writer.Apply(ctx, Set("contacts", "c1", map[string]any{"name": "Alice"}))
	require.NoError(t, err)
	assert.Equal(t, Applied, outcome)

	// The remove is still backing off, so the add behind it waits too.
	report, err := h.replayer.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Succeeded)
	assert.Equal(t, 2, report.Skipped)

	h.clock.Advance(time.Hour)
	report, err = h.replayer.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)

	docs, err := h.docs.ListAll(ctx, "whoContacts")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "new", docs[0].ID)
}

func TestWriter_ListAllAppliesQueuedWrites(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.docs.Set(ctx, "contacts", "c1", map[string]any{"name": "Alice", "noResponse": 0}))
	require.NoError(t, h.docs.Set(ctx, "contacts", "c3", map[string]any{"name": "Cara"}))

	outcome, _ := h.writer.Apply(ctx, Update("contacts", "ghost", map[string]any{"name": "x"}))
	require.Equal(t, Rejected, outcome)

	h.docs.FailWrites(errUnavailable)
	h.writer.Apply(ctx, Update("contacts", "c1", map[string]any{"noResponse": 2}))
	h.writer.Apply(ctx, Set("contacts", "c2", map[string]any{"name": "Bob"}))
	h.writer.Apply(ctx, Delete("contacts", "c3"))

	docs, err := h.writer.ListAll(ctx, "contacts")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "c1", docs[0].ID)
	assert.EqualValues(t, 2, docs[0].Data["noResponse"])
	assert.Equal(t, "Alice", docs[0].Data["name"])
	assert.Equal(t, "c2", docs[1].ID)
	assert.Equal(t, "Bob", docs[1].Data["name"])

	h.docs.FailReads(errUnavailable)
	_, err = h.writer.ListAll(ctx, "contacts")
	assert.ErrorIs(t, err, errUnavailable)
}

func TestOverlay_DeleteWhereMatchesStrings(t *testing.T) {
	docs := []docstore.Doc{
		{ID: "a", Data: map[string]any{"name": "Sam"}},
		{ID: "b", Data: map[string]any{"name": []any{"Sam"}}},
		{ID: "c", Data: nil},
	}
	got := overlay(docs, []Op{
		DeleteWhere("whoContacts", "name", "Sam"),
		Update("whoContacts", "c", map[string]any{"name": "Jo"}),
	})
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "Jo", got[1].Data["name"])
	assert.Equal(t, "Sam", docs[0].Data["name"], "input left untouched")
}

func TestSequencer_RunsInTicketOrder(t *testing.T) {
	var seq Sequencer
	tickets := []uint64{seq.Ticket(), seq.Ticket(), seq.Ticket()}

	var mu sync.Mutex
	var order []uint64
	var wg sync.WaitGroup
	for i := len(tickets) - 1; i >= 0; i-- {
		wg.Add(1)
		go func(ticket uint64) {
			defer wg.Done()
			seq.Run(ticket, func() {
				mu.Lock()
				order = append(order, ticket)
				mu.Unlock()
			})
		}(tickets[i])
	}
	wg.Wait()
	assert.Equal(t, []uint64{0, 1, 2}, order)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, msg email.Message) (email.Receipt, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(email.Receipt), args.Error(1)
}

func TestEmailOperator_SendsSummary(t *testing.T) {
	sender := new(mockSender)
	sender.On("Send", mock.Anything, mock.MatchedBy(func(msg email.Message) bool {
		return len(msg.To) == 1 && msg.To[0] == "ops@outreach.org" && msg.Subject == "Outreach: 2 writes failed"
	})).Return(email.Receipt{MessageID: "m1"}, nil).Once()

	handler := EmailOperator(sender, "ops@outreach.org")
	handler(context.Background(), []domain.Entry{
		{Collection: "contacts", DocumentID: "c1", Attempts: 8, ErrorMessage: "timeout"},
		{Collection: "contacts", DocumentID: "c2", Attempts: 1, ErrorMessage: "<gone>"},
	})

	sender.AssertExpectations(t)
}

func TestEmailOperator_NoAddressSendsNothing(t *testing.T) {
	sender := new(mockSender)
	EmailOperator(sender, "")(context.Background(), []domain.Entry{{Collection: "contacts", DocumentID: "c1"}})
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestFailureMessage_EscapesHTML(t *testing.T) {
	msg := failureMessage("ops@outreach.org", []domain.Entry{
		{Collection: "contacts", DocumentID: "c1", ErrorMessage: "<script>"},
	})
	assert.Contains(t, msg.HTML, "&lt;script&gt;")
	assert.Equal(t, "Outreach: 1 write failed", msg.Subject)
}
