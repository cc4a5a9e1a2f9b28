// Package documents is a thin client over a key/document database. Documents are addressed by
// collection and id and are read or written whole; there are no transactions or batches.
package documents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/vocaprep/internal/errors"
)

// ErrNotFound is returned by Get when the document is absent
var ErrNotFound = apperrors.ErrNotFound

// Fields is the content of one document
type Fields map[string]any

// Store is implemented by every document backend
type Store interface {
	// Get returns the document fields, or ErrNotFound when the document does not exist
	Get(ctx context.Context, collection, id string) (Fields, error)

	// Set creates or fully replaces a document
	Set(ctx context.Context, collection, id string, fields Fields) error

	// CollectionExists reports whether the collection holds at least one document
	CollectionExists(ctx context.Context, collection string) (bool, error)
}

// NewID generates an identifier for a document whose id is not chosen by the caller
func NewID() string {
	return uuid.New().String()
}

// StoreError reports a failed document operation
type StoreError struct {
	Op         string
	Collection string
	ID         string
	Err        error
}

func (e *StoreError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("documents %s %s: %v", e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("documents %s %s/%s: %v", e.Op, e.Collection, e.ID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError wraps err, leaving nil and ErrNotFound untouched
func NewStoreError(op, collection, id string, err error) error {
	if err == nil || apperrors.Is(err, ErrNotFound) {
		return err
	}
	return &StoreError{Op: op, Collection: collection, ID: id, Err: err}
}

// IsNotFound reports whether err means the document does not exist
func IsNotFound(err error) bool {
	return apperrors.Is(err, ErrNotFound)
}

// Normalize converts fields to plain JSON value types (string, float64, bool, []any,
// map[string]any) so every backend hands back the same shapes, whatever the caller stored.
func Normalize(fields Fields) (Fields, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("[documents Normalize] marshal: %w", err)
	}
	return Unmarshal(raw)
}

// Marshal encodes fields as JSON
func Marshal(fields Fields) ([]byte, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("[documents Marshal] %w", err)
	}
	return raw, nil
}

// Unmarshal decodes a JSON object into Fields
func Unmarshal(raw []byte) (Fields, error) {
	fields := Fields{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("[documents Unmarshal] %w", err)
	}
	return fields, nil
}

// Decode copies fields into the struct pointed to by v using its json tags
func Decode(fields Fields, v any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("[documents Decode] marshal: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("[documents Decode] unmarshal: %w", err)
	}
	return nil
}

// Encode converts a struct into Fields using its json tags
func Encode(v any) (Fields, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("[documents Encode] marshal: %w", err)
	}
	return Unmarshal(raw)
}

// String returns a string field, or "" when it is missing or not a string
func (f Fields) String(key string) string {
	s, _ := f[key].(string)
	return s
}

// GetString returns a string field and whether it was present as a string
func (f Fields) GetString(key string) (string, bool) {
	s, ok := f[key].(string)
	return s, ok
}
