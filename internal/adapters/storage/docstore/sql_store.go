package docstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"outreach/internal/adapters/storage"
)

// Dialect holds the SQL a backend needs. Statements take arguments in the
// order documented next to each field.
type Dialect struct {
	Name   string
	Schema []string
	Upsert string // collection, id, data
	Patch  string // data, collection, id
	Get    string // collection, id
	Query  string // collection, field, value
	List   string // collection
	Delete string // collection, id

	// QueryArg converts an equality value to the form the Query statement compares.
	QueryArg func(v any) any
}

// SQLite stores documents as JSON text and merges with json_patch.
// rowid keeps insertion order across upserts.
var SQLite = Dialect{
	Name: "sqlite",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			data TEXT NOT NULL,
			PRIMARY KEY (collection, id)
		)`,
	},
	Upsert: `INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET data = json_patch(documents.data, excluded.data)`,
	Patch:  `UPDATE documents SET data = json_patch(data, ?) WHERE collection = ? AND id = ?`,
	Get:    `SELECT id, data FROM documents WHERE collection = ? AND id = ?`,
	Query:  `SELECT id, data FROM documents WHERE collection = ? AND json_extract(data, '$.' || ?) = ? ORDER BY rowid`,
	List:   `SELECT id, data FROM documents WHERE collection = ? ORDER BY rowid`,
	Delete: `DELETE FROM documents WHERE collection = ? AND id = ?`,
	QueryArg: func(v any) any {
		// json_extract yields 1/0 for JSON booleans.
		if b, ok := v.(bool); ok {
			if b {
				return 1
			}
			return 0
		}
		return v
	},
}

// Postgres stores documents as JSONB and merges with ||.
var Postgres = Dialect{
	Name: "postgres",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS documents (
			seq BIGSERIAL,
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			data JSONB NOT NULL,
			PRIMARY KEY (collection, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_seq ON documents (collection, seq)`,
	},
	Upsert: `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET data = documents.data || EXCLUDED.data`,
	Patch:  `UPDATE documents SET data = data || $1::jsonb WHERE collection = $2 AND id = $3`,
	Get:    `SELECT id, data FROM documents WHERE collection = $1 AND id = $2`,
	Query:  `SELECT id, data FROM documents WHERE collection = $1 AND data->>$2 = $3 ORDER BY seq`,
	List:   `SELECT id, data FROM documents WHERE collection = $1 ORDER BY seq`,
	Delete: `DELETE FROM documents WHERE collection = $1 AND id = $2`,
	QueryArg: func(v any) any {
		// ->> yields text.
		return fmt.Sprint(v)
	},
}

// Ensure SQLStore implements Store interface.
var _ Store = (*SQLStore)(nil)

// SQLStore implements Store on a relational database.
type SQLStore struct {
	db      storage.SQLDB
	dialect Dialect
}

// NewSQLStore creates a document store over db.
// PRE: EnsureSchema has been called once for the database
func NewSQLStore(db storage.SQLDB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// EnsureSchema creates the documents table.
// POST: documents table exists
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.Schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure %s documents schema: %w", s.dialect.Name, err)
		}
	}
	return nil
}

// Set writes fields into the document, creating it when absent.
func (s *SQLStore) Set(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := validateTarget(collection, id); err != nil {
		return err
	}
	if err := validateFields(fields); err != nil {
		return err
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.Upsert, collection, id, string(data)); err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

// Add creates a document under a generated id.
func (s *SQLStore) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

// Get returns one document.
func (s *SQLStore) Get(ctx context.Context, collection, id string) (Doc, error) {
	if err := validateTarget(collection, id); err != nil {
		return Doc{}, err
	}
	docs, err := s.list(ctx, s.dialect.Get, collection, id)
	if err != nil {
		return Doc{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	if len(docs) == 0 {
		return Doc{}, ErrNotFound
	}
	return docs[0], nil
}

// Query returns documents whose field equals value.
func (s *SQLStore) Query(ctx context.Context, collection, field string, value any) ([]Doc, error) {
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}
	if err := ValidateField(field); err != nil {
		return nil, err
	}
	docs, err := s.list(ctx, s.dialect.Query, collection, field, s.dialect.QueryArg(value))
	if err != nil {
		return nil, fmt.Errorf("query %s.%s: %w", collection, field, err)
	}
	return docs, nil
}

// UpdateFields merges fields into an existing document.
func (s *SQLStore) UpdateFields(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := validateTarget(collection, id); err != nil {
		return err
	}
	if err := validateFields(fields); err != nil {
		return err
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	res, err := s.db.ExecContext(ctx, s.dialect.Patch, string(data), collection, id)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a document.
func (s *SQLStore) Delete(ctx context.Context, collection, id string) error {
	if err := validateTarget(collection, id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.Delete, collection, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// ListAll returns every document in insertion order.
func (s *SQLStore) ListAll(ctx context.Context, collection string) ([]Doc, error) {
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}
	docs, err := s.list(ctx, s.dialect.List, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return docs, nil
}

func (s *SQLStore) list(ctx context.Context, query string, args ...any) ([]Doc, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Doc
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		data := make(map[string]any)
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", id, err)
		}
		docs = append(docs, Doc{ID: id, Data: data})
	}
	return docs, rows.Err()
}
