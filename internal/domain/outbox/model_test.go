package outbox_test

import (
	"errors"
	"testing"
	"time"

	"outreach/internal/domain/outbox"
)

func validEntry() outbox.Entry {
	return outbox.Entry{
		ID:         "1",
		ActionType: outbox.ActionTypeDocumentWrite,
		Payload:    `{"kind":"update"}`,
		Collection: "contacts",
		DocumentID: "c1",
		Status:     outbox.StatusPending,
		CreatedAt:  time.Now(),
	}
}

// TestEntryValidate tests validation of Entry.
func TestEntryValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(e *outbox.Entry)
		wantErr bool
	}{
		{"valid", func(e *outbox.Entry) {}, false},
		{"no action type", func(e *outbox.Entry) { e.ActionType = "" }, true},
		{"no payload", func(e *outbox.Entry) { e.Payload = "" }, true},
		{"no document", func(e *outbox.Entry) { e.DocumentID = "" }, true},
		{"no created_at", func(e *outbox.Entry) { e.CreatedAt = time.Time{} }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEntry()
			tt.mutate(&e)
			err := e.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	e := validEntry()
	_ = e.Validate()
	if e.MaxAttempts != outbox.DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want default %d", e.MaxAttempts, outbox.DefaultMaxAttempts)
	}
}

// TestEntryLifecycle walks an entry through attempts to failure and requeue.
func TestEntryLifecycle(t *testing.T) {
	now := time.Now()
	e := validEntry()
	e.MaxAttempts = 2

	e.MarkAttempt(now)
	e.MarkFailed(errors.New("offline"))
	if e.Status != outbox.StatusRetrying || !e.CanRetry() {
		t.Fatalf("after 1 failure status=%s canRetry=%v", e.Status, e.CanRetry())
	}

	e.MarkAttempt(now)
	e.MarkFailed(errors.New("offline"))
	if e.Status != outbox.StatusFailed || !e.IsTerminal() {
		t.Fatalf("after max failures status=%s", e.Status)
	}

	if err := e.Requeue(); err != nil {
		t.Fatalf("Requeue() error = %v", err)
	}
	if e.Status != outbox.StatusPending || e.Attempts != 0 {
		t.Errorf("after Requeue status=%s attempts=%d", e.Status, e.Attempts)
	}
	if err := e.Requeue(); !errors.Is(err, outbox.ErrNotRetryable) {
		t.Errorf("Requeue() of pending entry error = %v, want ErrNotRetryable", err)
	}

	e.MarkAttempt(now)
	e.MarkSuccess()
	if e.Status != outbox.StatusDone || e.ErrorMessage != "" {
		t.Errorf("after success status=%s err=%q", e.Status, e.ErrorMessage)
	}
}

// TestMarkPermanentFailure verifies the entry fails with attempts left.
func TestMarkPermanentFailure(t *testing.T) {
	e := validEntry()
	_ = e.Validate()
	e.MarkAttempt(time.Now())
	e.MarkPermanentFailure(errors.New("document missing"))
	if e.Status != outbox.StatusFailed {
		t.Errorf("Status = %s, want failed", e.Status)
	}
}

// TestNextRetryDelay verifies exponential backoff with a cap.
func TestNextRetryDelay(t *testing.T) {
	e := outbox.Entry{}
	base, max := time.Second, time.Minute
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	for i, w := range want {
		e.Attempts = i
		if got := e.NextRetryDelay(base, max); got != w {
			t.Errorf("attempts=%d delay=%v, want %v", i, got, w)
		}
	}
	e.Attempts = 10
	if got := e.NextRetryDelay(base, max); got != max {
		t.Errorf("capped delay = %v, want %v", got, max)
	}
	e.Attempts = 62
	if got := e.NextRetryDelay(base, max); got != max {
		t.Errorf("overflow delay = %v, want %v", got, max)
	}
}

// TestIsDue verifies backoff gating.
func TestIsDue(t *testing.T) {
	now := time.Now()
	e := outbox.Entry{}
	if !e.IsDue(now, time.Second, time.Minute) {
		t.Error("never attempted entry should be due")
	}
	e.Attempts = 1
	e.LastAttemptedAt = now
	if e.IsDue(now.Add(time.Second), time.Second, time.Minute) {
		t.Error("entry should wait 2s after first attempt")
	}
	if !e.IsDue(now.Add(2*time.Second), time.Second, time.Minute) {
		t.Error("entry should be due after 2s")
	}
}
