package docstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"outreach/internal/adapters/storage"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Driver    string
	DSN       string                // postgres DSN or mongo URI
	Database  string                // mongo database name
	AppDB     storage.SQLDB         // sqlite: documents share the application database
	Metrics   *storage.QueryMetrics // postgres: query metrics, may be nil
	SlowQuery time.Duration
}

// CloseFunc releases a backend's resources.
type CloseFunc func(ctx context.Context) error

func noClose(context.Context) error { return nil }

// Open returns the configured backend with its schema in place.
// PRE: opts.AppDB is set for sqlite, opts.DSN for postgres and mongo
// POST: Returns a ready store and the function that releases it
func Open(ctx context.Context, opts Options) (Store, CloseFunc, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		if opts.AppDB == nil {
			return nil, nil, fmt.Errorf("sqlite docstore needs the application database")
		}
		s := NewSQLStore(opts.AppDB, SQLite)
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, nil, err
		}
		return s, noClose, nil

	case DriverPostgres:
		db, err := sql.Open("pgx", opts.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		s := NewSQLStore(storage.NewTimedDB(db, opts.Metrics, opts.SlowQuery), Postgres)
		if err := s.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return s, func(context.Context) error { return db.Close() }, nil

	case DriverMongo:
		database := opts.Database
		if database == "" {
			database = "outreach"
		}
		s, err := ConnectMongo(ctx, opts.DSN, database)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case DriverMemory:
		return NewMemoryStore(), noClose, nil
	}
	return nil, nil, fmt.Errorf("unknown docstore driver %q", opts.Driver)
}
