package web

import (
	"context"
	"errors"
	"net/http"

	outboxStore "outreach/internal/adapters/storage/outbox"
	"outreach/internal/application/writes"
	"outreach/internal/domain/outbox"
)

// handleSyncStatus reports queued and failed writes: GET /api/sync/status
func handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	status, err := stores.Replayer.Status(r.Context())
	if err != nil {
		internalError(w, err)
		return
	}
	if status.Failed == nil {
		status.Failed = []outbox.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"healthy": status.Healthy(),
		"pending": status.Pending,
		"failed":  status.Failed,
	})
}

// handleSyncRetry requeues a failed write: POST /api/sync/retry (admin)
func handleSyncRetry(w http.ResponseWriter, r *http.Request) {
	syncAction(w, r, stores.Replayer.Retry, "requeued")
}

// handleSyncAbandon drops a queued or failed write: POST /api/sync/abandon (admin)
func handleSyncAbandon(w http.ResponseWriter, r *http.Request) {
	syncAction(w, r, stores.Replayer.Abandon, "abandoned")
}

type syncRequest struct {
	ID string `json:"id"`
}

func syncAction(w http.ResponseWriter, r *http.Request, run func(ctx context.Context, id string) error, done string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req syncRequest
	if isJSONRequest(r) {
		if err := strictDecode(r, &req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		req.ID = r.PostFormValue("id")
	}
	if req.ID == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	err := run(r.Context(), req.ID)
	switch {
	case errors.Is(err, outboxStore.ErrNotFound):
		http.Error(w, "write not found", http.StatusNotFound)
		return
	case errors.Is(err, outbox.ErrNotRetryable), errors.Is(err, writes.ErrTerminal):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		internalError(w, err)
		return
	}

	if isJSONRequest(r) {
		writeJSON(w, http.StatusOK, map[string]string{"status": done})
		return
	}
	redirectBack(w, r, "/contacts")
}
