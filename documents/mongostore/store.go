package mongostore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jrsteele09/vocaprep/documents"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var _ documents.Store = (*Store)(nil)

// Store maps collections onto MongoDB collections and document ids onto _id
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect opens a client for uri and pings it before returning
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("[mongostore Connect] connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("[mongostore Connect] ping: %w", err)
	}
	return New(client, database), nil
}

func New(client *mongo.Client, database string) *Store {
	return &Store{
		client: client,
		db:     client.Database(database),
	}
}

func (s *Store) Get(ctx context.Context, collection, id string) (documents.Fields, error) {
	raw, err := s.db.Collection(collection).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, documents.ErrNotFound
	}
	if err != nil {
		return nil, documents.NewStoreError("get", collection, id, err)
	}

	// Relaxed extended JSON keeps strings, numbers, arrays and sub-documents as plain JSON
	ext, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil, documents.NewStoreError("get", collection, id, err)
	}
	fields, err := documents.Unmarshal(ext)
	if err != nil {
		return nil, documents.NewStoreError("get", collection, id, err)
	}
	delete(fields, "_id")
	return fields, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, fields documents.Fields) error {
	normalized, err := documents.Normalize(fields)
	if err != nil {
		return documents.NewStoreError("set", collection, id, err)
	}

	doc := bson.M{}
	for k, v := range normalized {
		doc[k] = v
	}
	doc["_id"] = id

	_, err = s.db.Collection(collection).ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		doc,
		options.Replace().SetUpsert(true),
	)
	return documents.NewStoreError("set", collection, id, err)
}

func (s *Store) CollectionExists(ctx context.Context, collection string) (bool, error) {
	count, err := s.db.Collection(collection).CountDocuments(ctx, bson.D{}, options.Count().SetLimit(1))
	if err != nil {
		return false, documents.NewStoreError("exists", collection, "", err)
	}
	return count > 0, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}
