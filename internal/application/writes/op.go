// Package writes applies document store writes optimistically. A write
// that cannot be applied is kept in the outbox and replayed in order.
package writes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"outreach/internal/adapters/storage/docstore"
)

// Write kinds.
const (
	KindSet         = "set"
	KindUpdate      = "update"
	KindDelete      = "delete"
	KindDeleteWhere = "delete_where"
)

// Op is one remote write. DeleteWhere ops remove every document whose
// Field equals Value and have no DocumentID of their own.
type Op struct {
	Kind       string         `json:"kind"`
	Collection string         `json:"collection"`
	DocumentID string         `json:"documentId,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
	Field      string         `json:"field,omitempty"`
	Value      string         `json:"value,omitempty"`
}

// Set builds an op that writes fields into a document, creating it.
func Set(collection, id string, fields map[string]any) Op {
	return Op{Kind: KindSet, Collection: collection, DocumentID: id, Fields: fields}
}

// Update builds an op that merges fields into an existing document.
func Update(collection, id string, fields map[string]any) Op {
	return Op{Kind: KindUpdate, Collection: collection, DocumentID: id, Fields: fields}
}

// Delete builds an op that removes one document.
func Delete(collection, id string) Op {
	return Op{Kind: KindDelete, Collection: collection, DocumentID: id}
}

// DeleteWhere builds an op that removes every document whose field equals value.
func DeleteWhere(collection, field, value string) Op {
	return Op{Kind: KindDeleteWhere, Collection: collection, Field: field, Value: value}
}

// CollectionTarget is the target of ops that may touch any document in
// their collection.
const CollectionTarget = "*"

// Target is the ordering key for the op: writes with the same target
// reach the store in the order they were issued. A DeleteWhere is ordered
// against every write in its collection.
func (o Op) Target() string {
	if o.Kind == KindDeleteWhere {
		return CollectionTarget
	}
	return o.DocumentID
}

// Apply performs the op against store.
func (o Op) Apply(ctx context.Context, store docstore.Store) error {
	switch o.Kind {
	case KindSet:
		return store.Set(ctx, o.Collection, o.DocumentID, o.Fields)
	case KindUpdate:
		return store.UpdateFields(ctx, o.Collection, o.DocumentID, o.Fields)
	case KindDelete:
		return store.Delete(ctx, o.Collection, o.DocumentID)
	case KindDeleteWhere:
		docs, err := store.Query(ctx, o.Collection, o.Field, o.Value)
		if err != nil {
			return err
		}
		for _, d := range docs {
			if err := store.Delete(ctx, o.Collection, d.ID); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownKind, o.Kind)
}

// overlay applies ops to an in-memory copy of docs the way the store
// would. Updates of absent documents are dropped; new documents go last.
func overlay(docs []docstore.Doc, ops []Op) []docstore.Doc {
	out := make([]docstore.Doc, 0, len(docs))
	for _, d := range docs {
		out = append(out, docstore.Doc{ID: d.ID, Data: maps.Clone(d.Data)})
	}
	find := func(id string) int {
		return slices.IndexFunc(out, func(d docstore.Doc) bool { return d.ID == id })
	}
	for _, op := range ops {
		switch op.Kind {
		case KindSet:
			i := find(op.DocumentID)
			if i < 0 {
				out = append(out, docstore.Doc{ID: op.DocumentID, Data: map[string]any{}})
				i = len(out) - 1
			}
			merge(&out[i], op.Fields)
		case KindUpdate:
			if i := find(op.DocumentID); i >= 0 {
				merge(&out[i], op.Fields)
			}
		case KindDelete:
			if i := find(op.DocumentID); i >= 0 {
				out = slices.Delete(out, i, i+1)
			}
		case KindDeleteWhere:
			out = slices.DeleteFunc(out, func(d docstore.Doc) bool {
				v, ok := d.Data[op.Field].(string)
				return ok && v == op.Value
			})
		}
	}
	return out
}

func merge(d *docstore.Doc, fields map[string]any) {
	if d.Data == nil {
		d.Data = make(map[string]any, len(fields))
	}
	maps.Copy(d.Data, fields)
}

// ErrUnknownKind is returned for an op kind this package does not know.
var ErrUnknownKind = errors.New("unknown write kind")

// isPermanent reports whether replaying the op can never succeed.
func isPermanent(err error) bool {
	return errors.Is(err, docstore.ErrNotFound) ||
		errors.Is(err, docstore.ErrInvalidField) ||
		errors.Is(err, docstore.ErrInvalidCollection) ||
		errors.Is(err, docstore.ErrEmptyID) ||
		errors.Is(err, ErrUnknownKind)
}

func encodeOp(o Op) (string, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return "", fmt.Errorf("encode write: %w", err)
	}
	return string(b), nil
}

func decodeOp(payload string) (Op, error) {
	var o Op
	if err := json.Unmarshal([]byte(payload), &o); err != nil {
		return Op{}, fmt.Errorf("decode write: %w", err)
	}
	return o, nil
}
