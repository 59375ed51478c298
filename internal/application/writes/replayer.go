package writes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domain "outreach/internal/domain/outbox"
)

// ErrTerminal is returned when retrying an entry that already finished.
var ErrTerminal = errors.New("entry is finished and cannot be changed")

// doneRetention is how long applied entries are kept for inspection.
const doneRetention = 7 * 24 * time.Hour

// Report summarises one replay pass.
type Report struct {
	Succeeded int
	Retrying  int
	Failed    int
	Skipped   int
}

// Replayer re-applies queued writes with exponential backoff.
// INVARIANT: an entry is attempted only when every older open entry for its target has been applied
// INVARIANT: a collection-wide entry is attempted only when no older entry in its collection is open
type Replayer struct {
	writer    *Writer
	baseDelay time.Duration
	maxDelay  time.Duration
	batchSize int
}

// NewReplayer creates a replayer sharing w's store, outbox and lock.
func NewReplayer(w *Writer) *Replayer {
	return &Replayer{
		writer:    w,
		baseDelay: 10 * time.Second,
		maxDelay:  30 * time.Minute,
		batchSize: 200,
	}
}

// SetBackoff overrides the retry delays.
func (r *Replayer) SetBackoff(base, maxDelay time.Duration) {
	r.baseDelay = base
	r.maxDelay = maxDelay
}

// ProcessPending runs one replay pass over the open entries, oldest first.
// A target whose oldest open entry is not applied in this pass is skipped
// for the rest of the pass.
// POST: Permanently failed entries are handed to the failure handler
func (r *Replayer) ProcessPending(ctx context.Context) (Report, error) {
	w := r.writer
	entries, err := w.outbox.ListOpen(ctx, r.batchSize)
	if err != nil {
		return Report{}, fmt.Errorf("list open writes: %w", err)
	}

	var report Report
	var failed []domain.Entry
	var blocked blockedTargets

	for _, entry := range entries {
		if blocked.holds(entry) {
			report.Skipped++
			continue
		}
		if !entry.IsDue(w.now(), r.baseDelay, r.maxDelay) {
			blocked.add(entry)
			report.Skipped++
			continue
		}

		applied, err := r.replay(ctx, &entry)
		if err != nil {
			slog.Error("write_event", "event", "replay_save_failed", "entry_id", entry.ID, "error", err)
		}
		switch {
		case applied:
			report.Succeeded++
			w.metrics.replay("succeeded")
		case entry.Status == domain.StatusFailed:
			report.Failed++
			failed = append(failed, entry)
			blocked.add(entry)
			w.metrics.replay("failed")
		default:
			report.Retrying++
			blocked.add(entry)
			w.metrics.replay("retrying")
		}
	}

	if n, err := w.outbox.PurgeDone(ctx, w.now().Add(-doneRetention)); err != nil {
		slog.Warn("write_event", "event", "purge_failed", "error", err)
	} else if n > 0 {
		slog.Debug("write_event", "event", "purged", "count", n)
	}
	r.refreshGauges(ctx)

	if len(entries) > 0 {
		slog.Info("write_event", "event", "replay_pass",
			"succeeded", report.Succeeded, "retrying", report.Retrying,
			"failed", report.Failed, "skipped", report.Skipped)
	}
	if len(failed) > 0 {
		w.notify(ctx, failed)
	}
	return report, nil
}

// blockedTargets tracks entries left unapplied in a pass. Later entries
// for the same target wait, and a collection-wide entry waits for, and
// holds back, everything in its collection.
type blockedTargets struct {
	keys        map[string]bool
	collections map[string]bool
	wide        map[string]bool
}

func (b *blockedTargets) add(e domain.Entry) {
	if b.keys == nil {
		b.keys = make(map[string]bool)
		b.collections = make(map[string]bool)
		b.wide = make(map[string]bool)
	}
	b.keys[e.Key()] = true
	b.collections[e.Collection] = true
	if e.DocumentID == CollectionTarget {
		b.wide[e.Collection] = true
	}
}

func (b *blockedTargets) holds(e domain.Entry) bool {
	if e.DocumentID == CollectionTarget {
		return b.collections[e.Collection]
	}
	return b.keys[e.Key()] || b.wide[e.Collection]
}

// replay attempts one entry and saves its new state.
func (r *Replayer) replay(ctx context.Context, entry *domain.Entry) (bool, error) {
	w := r.writer
	w.mu.Lock()
	defer w.mu.Unlock()

	entry.MarkAttempt(w.now())
	op, err := decodeOp(entry.Payload)
	if err == nil {
		err = op.Apply(ctx, w.store)
	}

	applied := err == nil
	switch {
	case applied:
		entry.MarkSuccess()
		slog.Info("write_event", "event", "replay_succeeded", "entry_id", entry.ID, "target", entry.Key(), "attempt", entry.Attempts)
	case isPermanent(err):
		entry.MarkPermanentFailure(err)
		slog.Error("write_event", "event", "replay_rejected", "entry_id", entry.ID, "target", entry.Key(), "error", err)
	default:
		entry.MarkFailed(err)
		slog.Warn("write_event", "event", "replay_failed", "entry_id", entry.ID, "target", entry.Key(), "attempt", entry.Attempts, "error", err)
	}
	return applied, w.outbox.Save(ctx, *entry)
}

// Retry gives a failed entry a fresh set of attempts on the next pass.
// PRE: entry is failed
func (r *Replayer) Retry(ctx context.Context, id string) error {
	entry, err := r.writer.outbox.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get write %s: %w", id, err)
	}
	if err := entry.Requeue(); err != nil {
		return err
	}
	if err := r.writer.outbox.Save(ctx, entry); err != nil {
		return err
	}
	slog.Info("write_event", "event", "write_requeued", "entry_id", id)
	r.refreshGauges(ctx)
	return nil
}

// Abandon stops an entry from being replayed.
// PRE: entry is open or failed
func (r *Replayer) Abandon(ctx context.Context, id string) error {
	entry, err := r.writer.outbox.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get write %s: %w", id, err)
	}
	if entry.Status == domain.StatusDone || entry.Status == domain.StatusAbandoned {
		return ErrTerminal
	}
	entry.MarkAbandoned()
	if err := r.writer.outbox.Save(ctx, entry); err != nil {
		return err
	}
	slog.Info("write_event", "event", "write_abandoned", "entry_id", id)
	r.refreshGauges(ctx)
	return nil
}

// Status describes the write backlog.
type Status struct {
	Pending int            `json:"pending"`
	Failed  []domain.Entry `json:"failed"`
}

// Healthy reports whether every write has reached the store.
func (s Status) Healthy() bool {
	return s.Pending == 0 && len(s.Failed) == 0
}

// Status returns the number of queued writes and the failed ones.
func (r *Replayer) Status(ctx context.Context) (Status, error) {
	counts, err := r.writer.outbox.CountByStatus(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("count writes: %w", err)
	}
	failed, err := r.writer.outbox.ListFailed(ctx, 50)
	if err != nil {
		return Status{}, fmt.Errorf("list failed writes: %w", err)
	}
	return Status{
		Pending: counts[domain.StatusPending] + counts[domain.StatusRetrying],
		Failed:  failed,
	}, nil
}

func (r *Replayer) refreshGauges(ctx context.Context) {
	if r.writer.metrics == nil {
		return
	}
	counts, err := r.writer.outbox.CountByStatus(ctx)
	if err != nil {
		return
	}
	r.writer.metrics.setBacklog(counts[domain.StatusPending]+counts[domain.StatusRetrying], counts[domain.StatusFailed])
}

// StartBackgroundWorker replays queued writes every interval.
// PRE: stopCh is provided to signal shutdown
// POST: Worker runs until stopCh is closed
func StartBackgroundWorker(r *Replayer, interval time.Duration, stopCh <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
				if _, err := r.ProcessPending(ctx); err != nil {
					slog.Error("write_event", "event", "replay_pass_failed", "error", err)
				}
				cancel()
			case <-stopCh:
				slog.Info("write_event", "event", "replay_worker_stopped")
				return
			}
		}
	}()
}
