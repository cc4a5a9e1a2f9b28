package memory

import (
	"context"
	"sync"

	"github.com/jrsteele09/vocaprep/documents"
)

var _ documents.Store = (*Store)(nil)

// Store keeps documents in process memory. Documents are held as encoded JSON so callers never
// share maps with the store.
type Store struct {
	collections map[string]map[string][]byte // collection -> id -> json
	lock        sync.RWMutex
}

func New() *Store {
	return &Store{
		collections: make(map[string]map[string][]byte),
	}
}

func (s *Store) Get(_ context.Context, collection, id string) (documents.Fields, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	raw, ok := s.collections[collection][id]
	if !ok {
		return nil, documents.ErrNotFound
	}
	fields, err := documents.Unmarshal(raw)
	return fields, documents.NewStoreError("get", collection, id, err)
}

func (s *Store) Set(_ context.Context, collection, id string, fields documents.Fields) error {
	raw, err := documents.Marshal(fields)
	if err != nil {
		return documents.NewStoreError("set", collection, id, err)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.collections[collection]; !ok {
		s.collections[collection] = make(map[string][]byte)
	}
	s.collections[collection][id] = raw
	return nil
}

func (s *Store) CollectionExists(_ context.Context, collection string) (bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.collections[collection]) > 0, nil
}

// Len returns the number of documents in a collection
func (s *Store) Len(collection string) int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.collections[collection])
}
