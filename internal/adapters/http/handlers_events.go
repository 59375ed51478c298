package web

import (
	"errors"
	"net/http"

	"outreach/internal/application/orchestrators"
	"outreach/internal/domain/event"
)

func eventDeps() orchestrators.EventDeps {
	return orchestrators.EventDeps{
		Reader: stores.Documents,
		Writer: stores.Writer,
	}
}

// eventError maps event errors onto a status.
func eventError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, event.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, event.ErrInvalidDate), errors.Is(err, event.ErrInvalidImage),
		errors.Is(err, event.ErrUnknownField), errors.Is(err, event.ErrTooLong):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		internalError(w, err)
	}
}

// handleEventsManage renders the staff event editor.
func handleEventsManage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	events, err := orchestrators.ExecuteListEvents(r.Context(), eventDeps())
	if err != nil {
		internalError(w, err)
		return
	}
	renderTemplate(w, r, "events_manage.html", map[string]any{
		"Events": events,
		"Fields": event.EditableFields,
	})
}

type eventRequest struct {
	ID          string `json:"id"`
	Field       string `json:"field"`
	Value       string `json:"value"`
	Name        string `json:"name"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Details     string `json:"details"`
	ImageURL    string `json:"imageUrl"`
}

// handleEvents handles /api/events.
// GET lists, POST creates (blank unless fields are given), PATCH changes one
// field, DELETE removes by id. Forms post with action=update or action=delete.
func handleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deps := eventDeps()

	if r.Method == http.MethodGet {
		events, err := orchestrators.ExecuteListEvents(ctx, deps)
		if err != nil {
			internalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, events)
		return
	}

	var req eventRequest
	action := r.Method
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
		req = eventRequest{
			ID:    r.FormValue("id"),
			Field: r.PostFormValue("field"),
			Value: r.PostFormValue("value"),
		}
		switch r.PostFormValue("action") {
		case "update":
			action = http.MethodPatch
		case "delete":
			action = http.MethodDelete
		}
	}

	var result any
	var err error
	status := http.StatusOK
	switch action {
	case http.MethodPost:
		result, err = orchestrators.ExecuteCreateEvent(ctx, orchestrators.CreateEventInput{
			Name:        req.Name,
			Date:        req.Date,
			Description: req.Description,
			Details:     req.Details,
			ImageURL:    req.ImageURL,
		}, deps)
		status = http.StatusCreated
	case http.MethodPatch:
		result, err = orchestrators.ExecuteUpdateEventField(ctx, orchestrators.UpdateEventFieldInput{
			ID: req.ID, Field: req.Field, Value: req.Value,
		}, deps)
	case http.MethodDelete:
		err = orchestrators.ExecuteDeleteEvent(ctx, req.ID, deps)
		result = map[string]string{"status": "deleted"}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err != nil {
		eventError(w, err)
		return
	}

	if isJSONRequest(r) {
		writeJSON(w, status, result)
		return
	}
	http.Redirect(w, r, "/events/manage", http.StatusSeeOther)
}
