package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	_ "modernc.org/sqlite"

	emailPkg "outreach/internal/adapters/email"
	web "outreach/internal/adapters/http"
	"outreach/internal/adapters/storage"
	accountStore "outreach/internal/adapters/storage/account"
	"outreach/internal/adapters/storage/docstore"
	outboxStore "outreach/internal/adapters/storage/outbox"
	"outreach/internal/application/contactors"
	"outreach/internal/application/contacts"
	"outreach/internal/application/orchestrators"
	"outreach/internal/application/writes"
	"outreach/internal/config"
	"outreach/internal/domain/outbox"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	setupLogging(cfg)

	ctx := context.Background()

	db, err := sql.Open("sqlite", storage.SQLiteDSN(cfg.DBPath))
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}
	if err := storage.InitDB(db); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	queryMetrics := storage.NewQueryMetrics(reg)
	timedDB := storage.NewTimedDB(db, queryMetrics, cfg.SlowQuery)

	docs, closeDocs, err := docstore.Open(ctx, docstore.Options{
		Driver:    cfg.DocstoreDriver,
		DSN:       cfg.DocstoreDSN,
		Database:  cfg.MongoDatabase,
		AppDB:     timedDB,
		Metrics:   queryMetrics,
		SlowQuery: cfg.SlowQuery,
	})
	if err != nil {
		log.Fatalf("failed to open document store: %v", err)
	}
	defer closeDocs(context.Background())

	writer := writes.NewWriter(docs, outboxStore.NewSQLiteStore(timedDB),
		writes.WithMetrics(writes.NewMetrics(reg)),
		writes.WithMaxAttempts(cfg.RetryMaxAttempts),
	)
	replayer := writes.NewReplayer(writer)
	replayer.SetBackoff(cfg.RetryInterval, 30*time.Minute)

	contactRepo := contacts.NewRepository(writer, writer, contacts.Options{
		PersistContactedReset: cfg.PersistContactedReset,
	})
	names := contactors.NewManager(writer, writer)

	// A rejected write leaves memory ahead of the store. Reload from the
	// writer, which keeps queued writes applied, so only the rejected
	// change is reverted, and tell the operator what was lost.
	writer.SetFailureHandler(writes.Chain(
		func(ctx context.Context, _ []outbox.Entry) {
			if err := errors.Join(contactRepo.LoadAll(ctx), names.Load(ctx)); err != nil {
				slog.Error("write_event", "event", "reload_after_failure_failed", "error", err)
			}
		},
		writes.EmailOperator(newSender(cfg), cfg.OperatorEmail),
	))

	acctStore := accountStore.NewSQLiteStore(timedDB)
	if cfg.AdminPassword != "" {
		seedDeps := orchestrators.CreateAccountDeps{AccountStore: acctStore}
		if err := orchestrators.ExecuteSeedAdmin(ctx, seedDeps, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			log.Fatalf("failed to seed admin: %v", err)
		}
	} else {
		slog.Warn("startup", "event", "admin_seed_skipped", "reason", "OUTREACH_ADMIN_PASSWORD not set")
	}

	if cfg.MigrateLegacy {
		res, err := orchestrators.ExecuteMigrateLegacyContacts(ctx, orchestrators.MigrateLegacyDeps{Store: docs})
		if err != nil {
			log.Fatalf("failed to migrate legacy contacts: %v", err)
		}
		slog.Info("startup", "event", "legacy_migrated", "copied", res.Copied, "skipped", res.Skipped)
	}

	// Replay anything left from the last run before loading, so memory
	// starts from the most complete stored state.
	if _, err := replayer.ProcessPending(ctx); err != nil {
		slog.Warn("startup", "event", "initial_replay_failed", "error", err)
	}
	if err := contactRepo.LoadAll(ctx); err != nil {
		slog.Error("startup", "event", "contacts_unavailable", "error", err)
	}
	if err := names.Load(ctx); err != nil {
		slog.Error("startup", "event", "contactors_unavailable", "error", err)
	}

	stopCh := make(chan struct{})
	writes.StartBackgroundWorker(replayer, cfg.RetryInterval, stopCh)

	handler := web.NewMux(&web.Stores{
		AccountStore: acctStore,
		Documents:    docs,
		Contacts:     contactRepo,
		Contactors:   names,
		Writer:       writer,
		Replayer:     replayer,
	}, web.Options{
		Production: cfg.IsProduction(),
		CSRFKey:    csrfKey(cfg),
		RateLimit:  cfg.RateLimit,
		Registry:   reg,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		slog.Info("startup", "event", "listening", "version", version, "addr", cfg.Addr,
			"env", cfg.Env, "docstore", cfg.DocstoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	slog.Info("shutdown", "event", "stopping")
	close(stopCh)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "event", "http_shutdown_failed", "error", err)
	}
}

func setupLogging(cfg config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var h slog.Handler
	if cfg.IsProduction() {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h))
}

// newSender returns the Resend sender when a key is configured, otherwise
// a sender that only logs.
func newSender(cfg config.Config) emailPkg.Sender {
	if cfg.ResendKey != "" {
		return emailPkg.NewResendSender(cfg.ResendKey, cfg.ResendFrom)
	}
	if cfg.IsProduction() {
		slog.Warn("startup", "event", "email_disabled", "reason", "OUTREACH_RESEND_KEY not set")
	}
	return emailPkg.NewLogSender()
}

// csrfKey derives the 32-byte key from the configured secret, or
// generates one per process when none is set.
func csrfKey(cfg config.Config) []byte {
	if secret := strings.TrimSpace(cfg.CSRFKey); secret != "" {
		sum := sha256.Sum256([]byte(secret))
		return sum[:]
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		log.Fatalf("generate csrf key: %v", err)
	}
	return key
}
