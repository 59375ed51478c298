package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"outreach/internal/application/projections"
	"outreach/internal/domain/contact"
)

// contactRequest is the body of every /api/contacts call. Form posts carry
// the same keys as form values.
type contactRequest struct {
	Set    string         `json:"set"`
	ID     string         `json:"id"`
	Fields contact.Fields `json:"fields"`
	Patch  contact.Patch  `json:"patch"`
}

func contactFormFields(r *http.Request) contact.Fields {
	return contact.Fields{
		Name:         r.PostFormValue(contact.FieldName),
		WhoContacts:  r.PostFormValue(contact.FieldWhoContacts),
		ContactNotes: r.PostFormValue(contact.FieldContactNotes),
		TextOrDM:     r.PostFormValue(contact.FieldTextOrDM),
		GeneralNotes: r.PostFormValue(contact.FieldGeneralNotes),
		Events:       r.PostFormValue(contact.FieldEvents),
		Phone:        r.PostFormValue(contact.FieldPhone),
		Social:       r.PostFormValue(contact.FieldSocial),
	}
}

// contactFormPatch patches only the fields present in the form.
func contactFormPatch(r *http.Request) contact.Patch {
	field := func(key string) *string {
		if _, ok := r.PostForm[key]; !ok {
			return nil
		}
		v := r.PostForm.Get(key)
		return &v
	}
	return contact.Patch{
		Name:         field(contact.FieldName),
		WhoContacts:  field(contact.FieldWhoContacts),
		ContactNotes: field(contact.FieldContactNotes),
		TextOrDM:     field(contact.FieldTextOrDM),
		GeneralNotes: field(contact.FieldGeneralNotes),
		Events:       field(contact.FieldEvents),
		Phone:        field(contact.FieldPhone),
		Social:       field(contact.FieldSocial),
	}
}

// decodeContactRequest reads a JSON body or form post.
func decodeContactRequest(r *http.Request) (contactRequest, error) {
	var req contactRequest
	if isJSONRequest(r) {
		err := strictDecode(r, &req)
		return req, err
	}
	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.Set = r.PostFormValue("set")
	req.ID = r.PostFormValue("id")
	req.Fields = contactFormFields(r)
	req.Patch = contactFormPatch(r)
	return req, nil
}

// contactAction runs one repository operation for a POST and answers with
// the resulting contact (JSON) or a redirect back to the page (form).
func contactAction(w http.ResponseWriter, r *http.Request, run func(ctx context.Context, req contactRequest, set contact.Set) (contact.Contact, error)) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	req, err := decodeContactRequest(r)
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	set, err := contact.ParseSet(req.Set)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	c, err := run(r.Context(), req, set)
	switch {
	case errors.Is(err, contact.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, contact.ErrInvalidSet):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		internalError(w, err)
		return
	}

	if isJSONRequest(r) {
		writeJSON(w, http.StatusOK, c)
		return
	}
	redirectBack(w, r, "/contacts")
}

// handleContacts renders GET /contacts as a page or, for API clients, as JSON rows.
func handleContacts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	query := projections.ParseContactViewQuery(r.URL.Query())
	deps := projections.GetContactViewDeps{
		Contacts:   stores.Contacts,
		References: stores.Contactors,
	}
	if stores.Replayer != nil {
		deps.Sync = stores.Replayer
	}
	view, err := projections.QueryGetContactView(r.Context(), query, deps)
	if err != nil {
		internalError(w, err)
		return
	}

	if !isHTMLRequest(r) {
		writeJSON(w, http.StatusOK, map[string]any{
			"set":  view.Query.Set,
			"rows": view.Rows,
			"sync": view.Sync,
		})
		return
	}
	renderTemplate(w, r, "contacts.html", view)
}

// handleContactCreate handles POST /api/contacts
func handleContactCreate(w http.ResponseWriter, r *http.Request) {
	contactAction(w, r, func(ctx context.Context, req contactRequest, set contact.Set) (contact.Contact, error) {
		return stores.Contacts.Create(ctx, set, req.Fields)
	})
}

// handleContactUpdate handles POST /api/contacts/update
func handleContactUpdate(w http.ResponseWriter, r *http.Request) {
	contactAction(w, r, func(ctx context.Context, req contactRequest, set contact.Set) (contact.Contact, error) {
		return stores.Contacts.Update(ctx, set, req.ID, req.Patch)
	})
}

// handleContactDelete handles POST /api/contacts/delete. Unknown ids succeed.
func handleContactDelete(w http.ResponseWriter, r *http.Request) {
	contactAction(w, r, func(ctx context.Context, req contactRequest, set contact.Set) (contact.Contact, error) {
		return contact.Contact{ID: req.ID, Set: set}, stores.Contacts.Delete(ctx, set, req.ID)
	})
}

// handleContactToggle handles POST /api/contacts/toggle
func handleContactToggle(w http.ResponseWriter, r *http.Request) {
	contactAction(w, r, func(ctx context.Context, req contactRequest, set contact.Set) (contact.Contact, error) {
		return stores.Contacts.ToggleContacted(ctx, set, req.ID)
	})
}

// handleContactIncrement handles POST /api/contacts/increment
func handleContactIncrement(w http.ResponseWriter, r *http.Request) {
	contactAction(w, r, func(ctx context.Context, req contactRequest, set contact.Set) (contact.Contact, error) {
		return stores.Contacts.IncrementNoResponse(ctx, set, req.ID)
	})
}

// handleContactDecrement handles POST /api/contacts/decrement
func handleContactDecrement(w http.ResponseWriter, r *http.Request) {
	contactAction(w, r, func(ctx context.Context, req contactRequest, set contact.Set) (contact.Contact, error) {
		return stores.Contacts.DecrementNoResponse(ctx, set, req.ID)
	})
}

// handleContactMove handles POST /api/contacts/move. set names the source set.
func handleContactMove(w http.ResponseWriter, r *http.Request) {
	contactAction(w, r, func(ctx context.Context, req contactRequest, set contact.Set) (contact.Contact, error) {
		return stores.Contacts.Move(ctx, set, req.ID)
	})
}

// handleContactReset handles POST /api/contacts/reset, clearing every contacted flag.
func handleContactReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isJSONRequest(r) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
	}
	n := stores.Contacts.ResetAllContacted(r.Context())
	if isJSONRequest(r) {
		writeJSON(w, http.StatusOK, map[string]int{"reset": n})
		return
	}
	redirectBack(w, r, "/contacts")
}

// handleContactReload handles POST /api/contacts/reload, replacing memory with
// the stored contacts and reference names.
func handleContactReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isJSONRequest(r) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
	}
	ctx := r.Context()
	err := errors.Join(stores.Contacts.LoadAll(ctx), stores.Contactors.Load(ctx))
	if err != nil {
		slog.Error("contact_event", "event", "reload_failed", "error", err)
	}
	if isJSONRequest(r) {
		if err != nil {
			http.Error(w, "document store unavailable", http.StatusServiceUnavailable)
			return
		}
		active, inactive := stores.Contacts.Counts()
		writeJSON(w, http.StatusOK, map[string]int{"active": active, "inactive": inactive})
		return
	}
	redirectBack(w, r, "/contacts")
}
