package web

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"outreach/internal/adapters/http/middleware"
	accountStore "outreach/internal/adapters/storage/account"
	"outreach/internal/adapters/storage/docstore"
	"outreach/internal/application/contactors"
	"outreach/internal/application/contacts"
	"outreach/internal/application/writes"
)

// Stores holds the application state the handlers serve.
type Stores struct {
	AccountStore accountStore.Store
	Documents    docstore.Store
	Contacts     *contacts.Repository
	Contactors   *contactors.Manager
	Writer       *writes.Writer
	Replayer     *writes.Replayer
}

// Options configures NewMux.
type Options struct {
	Production     bool
	CSRFKey        []byte   // 32 bytes
	TrustedOrigins []string // hosts allowed to post forms besides the request host
	RateLimit      int      // requests per minute per IP
	SlowRequest    time.Duration
	Registry       *prometheus.Registry // served on /metrics; nil disables metrics
}

// Global stores instance (set by NewMux)
var stores *Stores

// Global session store instance
var sessions *middleware.SessionStore

// NewMux wires HTTP handlers for the app.
// PRE: s has every field set, opts.CSRFKey is 32 bytes
func NewMux(s *Stores, opts Options) http.Handler {
	stores = s
	sessions = middleware.NewSessionStore()
	middleware.SecureCookies = opts.Production

	mux := http.NewServeMux()
	routes := registerRoutes(mux)

	var httpMetrics *middleware.HTTPMetrics
	if opts.Registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
		httpMetrics = middleware.NewHTTPMetrics(opts.Registry, routes)
	}

	rate := opts.RateLimit
	if rate <= 0 {
		rate = 120
	}
	limiter := middleware.NewRateLimiter(rate, time.Minute)

	// Outermost first: Timing -> RateLimit -> Auth -> CSRF -> SecurityHeaders -> Mux
	return middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(opts.CSRFKey, opts.Production, opts.TrustedOrigins),
		middleware.Auth(sessions),
		middleware.RateLimit(limiter),
		middleware.Timing(opts.SlowRequest, httpMetrics),
	)
}
