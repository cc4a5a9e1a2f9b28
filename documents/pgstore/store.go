// Package pgstore keeps documents as JSONB rows in PostgreSQL, one table keyed by
// (collection, id). Schema changes are applied with goose from embedded migrations.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jrsteele09/vocaprep/documents"
	"github.com/jrsteele09/vocaprep/documents/pgstore/migrations"
	apperrors "github.com/jrsteele09/vocaprep/internal/errors"
	"github.com/pressly/goose/v3"
)

var _ documents.Store = (*Store)(nil)

// DBTX is the subset of *sql.DB used by the store
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db DBTX
}

func New(db DBTX) *Store {
	return &Store{db: db}
}

// Open connects with the pgx driver and brings the schema up to date
func Open(ctx context.Context, dsn string) (*Store, *sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("[pgstore Open] db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("[pgstore Open] ping: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("[pgstore Open] migration error: %w", err)
	}
	return New(db), db, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

func (s *Store) Get(ctx context.Context, collection, id string) (documents.Fields, error) {
	query :=
		`SELECT fields FROM documents
		 WHERE collection = $1 AND id = $2
		 `

	var raw []byte
	err := s.db.QueryRowContext(ctx, query, collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, documents.ErrNotFound
	}
	if err != nil {
		return nil, documents.NewStoreError("get", collection, id, apperrors.Wrapf(err, "db error"))
	}

	fields, err := documents.Unmarshal(raw)
	return fields, documents.NewStoreError("get", collection, id, err)
}

func (s *Store) Set(ctx context.Context, collection, id string, fields documents.Fields) error {
	raw, err := documents.Marshal(fields)
	if err != nil {
		return documents.NewStoreError("set", collection, id, err)
	}

	query :=
		`INSERT INTO documents (collection, id, fields, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (collection, id) DO UPDATE
		 SET fields = EXCLUDED.fields, updated_at = EXCLUDED.updated_at
		 `

	if _, err := s.db.ExecContext(ctx, query, collection, id, raw); err != nil {
		return documents.NewStoreError("set", collection, id, apperrors.Wrapf(err, "db error"))
	}
	return nil
}

func (s *Store) CollectionExists(ctx context.Context, collection string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM documents WHERE collection = $1)`

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, collection).Scan(&exists); err != nil {
		return false, documents.NewStoreError("exists", collection, "", apperrors.Wrapf(err, "db error"))
	}
	return exists, nil
}
