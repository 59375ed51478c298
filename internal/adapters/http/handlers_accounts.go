package web

import (
	"errors"
	"net/http"

	"outreach/internal/adapters/http/middleware"
	accountStore "outreach/internal/adapters/storage/account"
	"outreach/internal/application/orchestrators"
	"outreach/internal/domain/account"
)

// handleAccountPassword renders and processes the change-password form
// (GET|POST /account/password).
// PRE: User is authenticated
// POST: On success the stored hash is replaced; on failure the form shows the error
func handleAccountPassword(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodGet:
		renderTemplate(w, r, "account_password.html", map[string]any{"Error": "", "Saved": false})

	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		err := orchestrators.ExecuteChangePassword(r.Context(), orchestrators.ChangePasswordInput{
			AccountID:       sess.AccountID,
			CurrentPassword: r.FormValue("current_password"),
			NewPassword:     r.FormValue("new_password"),
		}, orchestrators.ChangePasswordDeps{AccountStore: stores.AccountStore})

		switch {
		case err == nil:
			renderTemplate(w, r, "account_password.html", map[string]any{"Error": "", "Saved": true})
		case errors.Is(err, orchestrators.ErrPasswordFieldsRequired),
			errors.Is(err, orchestrators.ErrCurrentPasswordWrong),
			errors.Is(err, orchestrators.ErrNewPasswordSame),
			errors.Is(err, account.ErrPasswordTooShort):
			renderTemplateStatus(w, r, http.StatusBadRequest, "account_password.html", map[string]any{
				"Error": err.Error(), "Saved": false,
			})
		default:
			internalError(w, err)
		}

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type accountRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type accountSummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// handleAccounts lists and creates staff logins: GET|POST /api/accounts (admin)
func handleAccounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		accts, err := stores.AccountStore.List(r.Context(), accountStore.ListFilter{Limit: 200})
		if err != nil {
			internalError(w, err)
			return
		}
		out := make([]accountSummary, 0, len(accts))
		for _, a := range accts {
			out = append(out, accountSummary{ID: a.ID, Email: a.Email, Role: a.Role})
		}
		writeJSON(w, http.StatusOK, out)

	case http.MethodPost:
		var req accountRequest
		if err := strictDecode(r, &req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Role == "" {
			req.Role = account.RoleStaff
		}
		id, err := orchestrators.ExecuteCreateAccount(r.Context(), orchestrators.CreateAccountInput{
			Email: req.Email, Password: req.Password, Role: req.Role,
		}, orchestrators.CreateAccountDeps{AccountStore: stores.AccountStore})
		switch {
		case errors.Is(err, orchestrators.ErrEmailAlreadyExists):
			http.Error(w, err.Error(), http.StatusConflict)
			return
		case errors.Is(err, account.ErrEmptyEmail), errors.Is(err, account.ErrInvalidEmail),
			errors.Is(err, account.ErrInvalidRole), errors.Is(err, account.ErrEmptyPassword),
			errors.Is(err, account.ErrPasswordTooShort), errors.Is(err, account.ErrEmailTooLong):
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		case err != nil:
			internalError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, accountSummary{ID: id, Email: req.Email, Role: req.Role})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
