package redisstore

import (
	"context"
	"errors"

	"github.com/jrsteele09/vocaprep/documents"
	"github.com/redis/go-redis/v9"
)

var _ documents.Store = (*Store)(nil)

// Store is a Redis-backed document store. Each document is one JSON string key; a set per
// collection tracks its ids so existence checks do not need SCAN.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// New creates a Store. prefix namespaces every key written.
func New(client redis.UniversalClient, prefix string) *Store {
	return &Store{
		redis:  client,
		prefix: prefix,
	}
}

func (s *Store) docKey(collection, id string) string {
	return s.prefix + ":doc:" + collection + ":" + id
}

func (s *Store) collectionKey(collection string) string {
	return s.prefix + ":col:" + collection
}

func (s *Store) Get(ctx context.Context, collection, id string) (documents.Fields, error) {
	raw, err := s.redis.Get(ctx, s.docKey(collection, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, documents.ErrNotFound
	}
	if err != nil {
		return nil, documents.NewStoreError("get", collection, id, err)
	}
	fields, err := documents.Unmarshal(raw)
	return fields, documents.NewStoreError("get", collection, id, err)
}

func (s *Store) Set(ctx context.Context, collection, id string, fields documents.Fields) error {
	raw, err := documents.Marshal(fields)
	if err != nil {
		return documents.NewStoreError("set", collection, id, err)
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.docKey(collection, id), raw, 0)
		pipe.SAdd(ctx, s.collectionKey(collection), id)
		return nil
	})
	return documents.NewStoreError("set", collection, id, err)
}

func (s *Store) CollectionExists(ctx context.Context, collection string) (bool, error) {
	count, err := s.redis.SCard(ctx, s.collectionKey(collection)).Result()
	if err != nil {
		return false, documents.NewStoreError("exists", collection, "", err)
	}
	return count > 0, nil
}

// Ping reports whether Redis is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}
