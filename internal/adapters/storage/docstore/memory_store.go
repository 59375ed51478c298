package docstore

import (
	"context"
	"reflect"
	"sync"

	"github.com/google/uuid"
)

// Ensure MemoryStore implements Store interface.
var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps documents in process memory. Used by tests and local
// development. Failures can be injected to simulate an unreachable backend.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]*memCollection
	writeErr    error
	readErr     error
	writes      int
}

type memCollection struct {
	order []string
	docs  map[string]map[string]any
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memCollection)}
}

// FailWrites makes every write return err until called with nil.
func (s *MemoryStore) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// FailReads makes every read return err until called with nil.
func (s *MemoryStore) FailReads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

// Writes returns the number of write calls attempted, failed ones included.
func (s *MemoryStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *MemoryStore) coll(name string) *memCollection {
	c, ok := s.collections[name]
	if !ok {
		c = &memCollection{docs: make(map[string]map[string]any)}
		s.collections[name] = c
	}
	return c
}

func (s *MemoryStore) beginWrite() error {
	s.writes++
	return s.writeErr
}

// Set writes fields into the document, creating it when absent.
func (s *MemoryStore) Set(_ context.Context, collection, id string, fields map[string]any) error {
	if err := validateTarget(collection, id); err != nil {
		return err
	}
	if err := validateFields(fields); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.beginWrite(); err != nil {
		return err
	}
	c := s.coll(collection)
	doc, ok := c.docs[id]
	if !ok {
		doc = make(map[string]any)
		c.docs[id] = doc
		c.order = append(c.order, id)
	}
	for k, v := range fields {
		doc[k] = v
	}
	return nil
}

// Add creates a document under a generated id.
func (s *MemoryStore) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

// Get returns one document.
func (s *MemoryStore) Get(_ context.Context, collection, id string) (Doc, error) {
	if err := validateTarget(collection, id); err != nil {
		return Doc{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return Doc{}, s.readErr
	}
	doc, ok := s.coll(collection).docs[id]
	if !ok {
		return Doc{}, ErrNotFound
	}
	return Doc{ID: id, Data: copyFields(doc)}, nil
}

// Query returns documents whose field equals value.
func (s *MemoryStore) Query(_ context.Context, collection, field string, value any) ([]Doc, error) {
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}
	if err := ValidateField(field); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	c := s.coll(collection)
	var docs []Doc
	for _, id := range c.order {
		if v, ok := c.docs[id][field]; ok && reflect.DeepEqual(v, value) {
			docs = append(docs, Doc{ID: id, Data: copyFields(c.docs[id])})
		}
	}
	return docs, nil
}

// UpdateFields merges fields into an existing document.
func (s *MemoryStore) UpdateFields(_ context.Context, collection, id string, fields map[string]any) error {
	if err := validateTarget(collection, id); err != nil {
		return err
	}
	if err := validateFields(fields); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.beginWrite(); err != nil {
		return err
	}
	doc, ok := s.coll(collection).docs[id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range fields {
		doc[k] = v
	}
	return nil
}

// Delete removes a document.
func (s *MemoryStore) Delete(_ context.Context, collection, id string) error {
	if err := validateTarget(collection, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.beginWrite(); err != nil {
		return err
	}
	c := s.coll(collection)
	if _, ok := c.docs[id]; !ok {
		return nil
	}
	delete(c.docs, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// ListAll returns every document in insertion order.
func (s *MemoryStore) ListAll(_ context.Context, collection string) ([]Doc, error) {
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	c := s.coll(collection)
	docs := make([]Doc, 0, len(c.order))
	for _, id := range c.order {
		docs = append(docs, Doc{ID: id, Data: copyFields(c.docs[id])})
	}
	return docs, nil
}
