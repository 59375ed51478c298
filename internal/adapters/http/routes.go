package web

import (
	"net/http"

	"outreach/internal/adapters/http/middleware"
	"outreach/internal/domain/account"
)

// registerRoutes mounts every handler on mux and returns the paths, used
// as metric labels.
func registerRoutes(mux *http.ServeMux) []string {
	var paths []string
	handle := func(path string, h http.Handler) {
		mux.Handle(path, h)
		paths = append(paths, path)
	}
	staff := func(h http.HandlerFunc) http.Handler { return middleware.RequireAuth(h) }
	admin := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireRole(account.RoleAdmin)(h)
	}

	handle("/healthz", http.HandlerFunc(handleHealthz))
	handle("/login", http.HandlerFunc(handleLogin))
	handle("/logout", http.HandlerFunc(handleLogout))
	handle("/account/password", staff(handleAccountPassword))
	handle("/api/accounts", admin(handleAccounts))

	handle("/contacts", staff(handleContacts))
	handle("/api/contacts", staff(handleContactCreate))
	handle("/api/contacts/update", staff(handleContactUpdate))
	handle("/api/contacts/delete", staff(handleContactDelete))
	handle("/api/contacts/toggle", staff(handleContactToggle))
	handle("/api/contacts/increment", staff(handleContactIncrement))
	handle("/api/contacts/decrement", staff(handleContactDecrement))
	handle("/api/contacts/move", staff(handleContactMove))
	handle("/api/contacts/reset", staff(handleContactReset))
	handle("/api/contacts/reload", staff(handleContactReload))
	handle("/api/contactors", staff(handleContactors))

	handle("/events/manage", staff(handleEventsManage))
	handle("/api/events", staff(handleEvents))

	handle("/api/sync/status", staff(handleSyncStatus))
	handle("/api/sync/retry", admin(handleSyncRetry))
	handle("/api/sync/abandon", admin(handleSyncAbandon))

	handle("/", http.HandlerFunc(handleHome))
	return paths
}
