package web

import (
	"errors"
	"net/http"

	"outreach/internal/domain/contactor"
)

type contactorRequest struct {
	Name string `json:"name"`
}

// handleContactors handles the reference name list.
// GET lists names, POST adds one (blank is ignored), DELETE removes every
// occurrence. Forms post with action=remove to delete.
func handleContactors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]any{
			"names":         stores.Contactors.Names(),
			"filterOptions": stores.Contactors.FilterOptions(),
		})
		return
	}
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req contactorRequest
	remove := r.Method == http.MethodDelete
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
		req.Name = r.FormValue("name")
		remove = remove || r.PostFormValue("action") == "remove"
	}

	result := map[string]any{}
	if remove {
		result["removed"] = stores.Contactors.RemoveName(ctx, req.Name)
	} else {
		added, err := stores.Contactors.AddName(ctx, req.Name)
		if errors.Is(err, contactor.ErrNameTooLong) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err != nil {
			internalError(w, err)
			return
		}
		result["added"] = added
	}

	if isJSONRequest(r) {
		result["names"] = stores.Contactors.Names()
		writeJSON(w, http.StatusOK, result)
		return
	}
	redirectBack(w, r, "/contacts")
}
