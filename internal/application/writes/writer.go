package writes

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"outreach/internal/adapters/storage/docstore"
	outboxStore "outreach/internal/adapters/storage/outbox"
	domain "outreach/internal/domain/outbox"
)

// Outcome reports what Apply did with a write.
type Outcome int

const (
	// Applied means the store accepted the write.
	Applied Outcome = iota
	// Queued means the write waits in the outbox for replay.
	Queued
	// Rejected means the write can never be applied and was recorded as failed.
	Rejected
)

// String returns the metric label for the outcome.
func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Queued:
		return "queued"
	default:
		return "failed"
	}
}

// FailureHandler is told about writes that will never reach the store.
type FailureHandler func(ctx context.Context, failed []domain.Entry)

// Writer applies writes to the document store, queueing the ones that fail.
// INVARIANT: writes with the same collection and target reach the store in issue order
// INVARIANT: a collection-wide write is ordered against every write in its collection
type Writer struct {
	store       docstore.Store
	outbox      outboxStore.Store
	metrics     *Metrics
	maxAttempts int
	onFailure   FailureHandler
	now         func() time.Time

	// mu makes the open-entry check and the direct apply one step, and is
	// shared with the Replayer.
	mu sync.Mutex
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithMetrics records outcomes in m.
func WithMetrics(m *Metrics) WriterOption {
	return func(w *Writer) { w.metrics = m }
}

// WithMaxAttempts sets the replay attempt limit for queued writes.
func WithMaxAttempts(n int) WriterOption {
	return func(w *Writer) {
		if n > 0 {
			w.maxAttempts = n
		}
	}
}

// WithFailureHandler sets the callback for writes that permanently fail.
func WithFailureHandler(h FailureHandler) WriterOption {
	return func(w *Writer) { w.onFailure = h }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) WriterOption {
	return func(w *Writer) { w.now = now }
}

// NewWriter creates a Writer over store, queueing failures in outbox.
func NewWriter(store docstore.Store, outbox outboxStore.Store, opts ...WriterOption) *Writer {
	w := &Writer{
		store:       store,
		outbox:      outbox,
		maxAttempts: domain.DefaultMaxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SetFailureHandler replaces the failure callback. Used by the composition
// root once the components that react to failures exist.
func (w *Writer) SetFailureHandler(h FailureHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onFailure = h
}

// Apply issues op. A write for a target with queued writes is queued
// behind them; otherwise it is applied now and queued only if that fails.
// PRE: op names a collection and a target
// POST: Returns Applied, Queued or Rejected; error only when the write was lost
func (w *Writer) Apply(ctx context.Context, op Op) (Outcome, error) {
	outcome, failed, err := w.apply(ctx, op)
	w.metrics.write(outcome.String())
	if failed != nil {
		w.notify(ctx, []domain.Entry{*failed})
	}
	return outcome, err
}

func (w *Writer) notify(ctx context.Context, failed []domain.Entry) {
	w.mu.Lock()
	h := w.onFailure
	w.mu.Unlock()
	if h != nil {
		h(ctx, failed)
	}
}

func (w *Writer) apply(ctx context.Context, op Op) (Outcome, *domain.Entry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	open, err := w.hasOpen(ctx, op)
	if err != nil {
		slog.Warn("write_event", "event", "outbox_check_failed", "collection", op.Collection, "target", op.Target(), "error", err)
	}
	if open {
		if err := w.enqueue(ctx, op, nil); err != nil {
			return Rejected, nil, err
		}
		slog.Info("write_event", "event", "write_queued_behind", "collection", op.Collection, "target", op.Target(), "kind", op.Kind)
		return Queued, nil, nil
	}

	applyErr := op.Apply(ctx, w.store)
	if applyErr == nil {
		return Applied, nil, nil
	}

	if isPermanent(applyErr) {
		slog.Error("write_event", "event", "write_rejected", "collection", op.Collection, "target", op.Target(), "kind", op.Kind, "error", applyErr)
		entry, err := w.newEntry(op)
		if err != nil {
			return Rejected, nil, err
		}
		entry.MarkAttempt(w.now())
		entry.MarkPermanentFailure(applyErr)
		if err := w.outbox.Save(ctx, entry); err != nil {
			return Rejected, nil, fmt.Errorf("record rejected write: %w", err)
		}
		return Rejected, &entry, nil
	}

	slog.Warn("write_event", "event", "write_failed", "collection", op.Collection, "target", op.Target(), "kind", op.Kind, "error", applyErr)
	if err := w.enqueue(ctx, op, applyErr); err != nil {
		return Rejected, nil, err
	}
	return Queued, nil, nil
}

// hasOpen reports whether op must queue behind an open entry.
func (w *Writer) hasOpen(ctx context.Context, op Op) (bool, error) {
	if op.Target() == CollectionTarget {
		return w.outbox.HasOpenIn(ctx, op.Collection)
	}
	open, err := w.outbox.HasOpen(ctx, op.Collection, op.Target())
	if err != nil || open {
		return open, err
	}
	return w.outbox.HasOpen(ctx, op.Collection, CollectionTarget)
}

// ListAll returns the documents of collection as they will be once the
// queued writes land: the stored documents with every open entry for the
// collection applied on top, oldest first. Failed entries are not applied.
// POST: a store read error is returned; an outbox read error only drops the overlay
func (w *Writer) ListAll(ctx context.Context, collection string) ([]docstore.Doc, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	docs, err := w.store.ListAll(ctx, collection)
	if err != nil {
		return nil, err
	}
	entries, err := w.outbox.ListOpenIn(ctx, collection)
	if err != nil {
		slog.Warn("write_event", "event", "overlay_unavailable", "collection", collection, "error", err)
		return docs, nil
	}
	ops := make([]Op, 0, len(entries))
	for _, e := range entries {
		op, err := decodeOp(e.Payload)
		if err != nil {
			slog.Warn("write_event", "event", "overlay_entry_skipped", "entry_id", e.ID, "error", err)
			continue
		}
		ops = append(ops, op)
	}
	return overlay(docs, ops), nil
}

// enqueue stores op as an open entry. attemptErr is the error of a direct
// attempt, which then counts as the first attempt.
func (w *Writer) enqueue(ctx context.Context, op Op, attemptErr error) error {
	entry, err := w.newEntry(op)
	if err != nil {
		return err
	}
	if attemptErr != nil {
		entry.MarkAttempt(w.now())
		entry.MarkFailed(attemptErr)
	}
	if err := w.outbox.Save(ctx, entry); err != nil {
		slog.Error("write_event", "event", "write_lost", "collection", op.Collection, "target", op.Target(), "error", err)
		return fmt.Errorf("queue write: %w", err)
	}
	return nil
}

func (w *Writer) newEntry(op Op) (domain.Entry, error) {
	payload, err := encodeOp(op)
	if err != nil {
		return domain.Entry{}, err
	}
	entry := domain.Entry{
		ID:          uuid.NewString(),
		ActionType:  domain.ActionTypeDocumentWrite,
		Payload:     payload,
		Collection:  op.Collection,
		DocumentID:  op.Target(),
		Status:      domain.StatusPending,
		MaxAttempts: w.maxAttempts,
		CreatedAt:   w.now(),
	}
	if err := entry.Validate(); err != nil {
		return domain.Entry{}, err
	}
	return entry, nil
}
