package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// createdKey orders documents by first write. It is never returned to callers.
const createdKey = "_created"

// Ensure MongoStore implements Store interface.
var _ Store = (*MongoStore)(nil)

// MongoStore implements Store on MongoDB. Each collection maps to a
// MongoDB collection and the document id is stored as _id.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	now    func() time.Time
}

// ConnectMongo opens a client and verifies the server answers.
// POST: Returns a store bound to database, or an error
func ConnectMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoStore{client: client, db: client.Database(database), now: time.Now}, nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Set writes fields into the document, creating it when absent.
func (s *MongoStore) Set(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := validateTarget(collection, id); err != nil {
		return err
	}
	if err := validateFields(fields); err != nil {
		return err
	}
	update := bson.M{"$setOnInsert": bson.M{createdKey: s.now().UnixNano()}}
	if len(fields) > 0 {
		update["$set"] = bson.M(copyFields(fields))
	}
	_, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

// Add creates a document under a generated id.
func (s *MongoStore) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

// Get returns one document.
func (s *MongoStore) Get(ctx context.Context, collection, id string) (Doc, error) {
	if err := validateTarget(collection, id); err != nil {
		return Doc{}, err
	}
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Doc{}, ErrNotFound
	}
	if err != nil {
		return Doc{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return fromBSON(raw), nil
}

// Query returns documents whose field equals value.
func (s *MongoStore) Query(ctx context.Context, collection, field string, value any) ([]Doc, error) {
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}
	if err := ValidateField(field); err != nil {
		return nil, err
	}
	docs, err := s.find(ctx, collection, bson.M{field: value})
	if err != nil {
		return nil, fmt.Errorf("query %s.%s: %w", collection, field, err)
	}
	return docs, nil
}

// UpdateFields merges fields into an existing document.
func (s *MongoStore) UpdateFields(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := validateTarget(collection, id); err != nil {
		return err
	}
	if err := validateFields(fields); err != nil {
		return err
	}
	if len(fields) == 0 {
		_, err := s.Get(ctx, collection, id)
		return err
	}
	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M(copyFields(fields))})
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a document.
func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	if err := validateTarget(collection, id); err != nil {
		return err
	}
	if _, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// ListAll returns every document in insertion order.
func (s *MongoStore) ListAll(ctx context.Context, collection string) ([]Doc, error) {
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}
	docs, err := s.find(ctx, collection, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return docs, nil
}

func (s *MongoStore) find(ctx context.Context, collection string, filter bson.M) ([]Doc, error) {
	opts := options.Find().SetSort(bson.D{{Key: createdKey, Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, err
	}
	docs := make([]Doc, 0, len(raw))
	for _, r := range raw {
		docs = append(docs, fromBSON(r))
	}
	return docs, nil
}

func fromBSON(raw bson.M) Doc {
	id, _ := raw["_id"].(string)
	data := make(map[string]any, len(raw))
	for k, v := range raw {
		if k == "_id" || k == createdKey {
			continue
		}
		data[k] = v
	}
	return Doc{ID: id, Data: data}
}
