package outbox

import (
	"errors"
	"time"
)

// Status constants for outbox entry lifecycle.
const (
	StatusPending   = "pending"
	StatusRetrying  = "retrying"
	StatusDone      = "done"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned"
)

// ActionTypeDocumentWrite marks an entry holding a document store write
// that could not be applied when it was issued.
const ActionTypeDocumentWrite = "document_write"

// DefaultMaxAttempts applies when an entry is created without a limit.
const DefaultMaxAttempts = 8

// Domain errors.
var (
	ErrEmptyActionType = errors.New("action type is required")
	ErrEmptyPayload    = errors.New("payload is required")
	ErrEmptyTarget     = errors.New("collection and document id are required")
	ErrNotRetryable    = errors.New("entry is not in a retryable state")
)

// Entry is a remote write waiting to be replayed.
// Entries for the same Collection/DocumentID replay strictly in CreatedAt order.
type Entry struct {
	ID              string
	ActionType      string
	Payload         string // JSON encoded write
	Collection      string
	DocumentID      string
	Status          string // pending, retrying, done, failed, abandoned
	Attempts        int
	MaxAttempts     int
	LastAttemptedAt time.Time
	CreatedAt       time.Time
	ErrorMessage    string // last error, if any
}

// Validate checks that the Entry has valid data.
// PRE: Entry struct is populated
// POST: Returns nil if valid, error otherwise; MaxAttempts defaulted
func (e *Entry) Validate() error {
	if e.ActionType == "" {
		return ErrEmptyActionType
	}
	if e.Payload == "" {
		return ErrEmptyPayload
	}
	if e.Collection == "" || e.DocumentID == "" {
		return ErrEmptyTarget
	}
	if e.CreatedAt.IsZero() {
		return errors.New("created_at must be set")
	}
	if e.MaxAttempts <= 0 {
		e.MaxAttempts = DefaultMaxAttempts
	}
	return nil
}

// Key identifies the document the entry writes to.
func (e *Entry) Key() string {
	return e.Collection + "/" + e.DocumentID
}

// IsOpen reports whether the entry still blocks later writes to its document.
func (e *Entry) IsOpen() bool {
	return e.Status == StatusPending || e.Status == StatusRetrying
}

// CanRetry returns true if the entry can be retried.
// POST: Returns true for pending/retrying with attempts < max
func (e *Entry) CanRetry() bool {
	return e.IsOpen() && e.Attempts < e.MaxAttempts
}

// IsTerminal returns true if the entry has reached a terminal state.
func (e *Entry) IsTerminal() bool {
	return e.Status == StatusDone || e.Status == StatusAbandoned || e.Status == StatusFailed
}

// MarkAttempt records a replay attempt.
// PRE: Entry is in a retryable state
// POST: Attempts incremented, LastAttemptedAt updated, status set to retrying
func (e *Entry) MarkAttempt(now time.Time) {
	e.Attempts++
	e.LastAttemptedAt = now
	e.Status = StatusRetrying
}

// MarkSuccess marks the entry as applied.
// POST: Status set to done, ErrorMessage cleared
func (e *Entry) MarkSuccess() {
	e.Status = StatusDone
	e.ErrorMessage = ""
}

// MarkFailed records a failed attempt.
// POST: ErrorMessage set; Status becomes failed once attempts are exhausted
func (e *Entry) MarkFailed(err error) {
	e.ErrorMessage = err.Error()
	if e.Attempts >= e.MaxAttempts {
		e.Status = StatusFailed
	}
}

// MarkPermanentFailure fails the entry regardless of remaining attempts.
// Used when replaying can never succeed, for example the target document is gone.
// POST: Status set to failed
func (e *Entry) MarkPermanentFailure(err error) {
	e.ErrorMessage = err.Error()
	e.Status = StatusFailed
}

// MarkAbandoned marks the entry as abandoned by an admin.
// POST: Status set to abandoned
func (e *Entry) MarkAbandoned() {
	e.Status = StatusAbandoned
}

// Requeue gives a failed entry a fresh set of attempts.
// PRE: Status is failed
// POST: Status is pending, Attempts is 0
func (e *Entry) Requeue() error {
	if e.Status != StatusFailed {
		return ErrNotRetryable
	}
	e.Status = StatusPending
	e.Attempts = 0
	e.LastAttemptedAt = time.Time{}
	return nil
}

// NextRetryDelay calculates the delay before the next retry attempt.
// Uses exponential backoff: 2^attempts * baseDelay, capped at maxDelay.
// PRE: Attempts is set
// POST: Returns duration for next retry
func (e *Entry) NextRetryDelay(baseDelay time.Duration, maxDelay time.Duration) time.Duration {
	if e.Attempts >= 30 {
		return maxDelay
	}
	delay := baseDelay * (1 << e.Attempts)
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

// IsDue reports whether enough time has passed since the last attempt.
func (e *Entry) IsDue(now time.Time, baseDelay, maxDelay time.Duration) bool {
	if e.LastAttemptedAt.IsZero() {
		return true
	}
	return !now.Before(e.LastAttemptedAt.Add(e.NextRetryDelay(baseDelay, maxDelay)))
}
