package local

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/vocaprep/documents"
)

const (
	accountsCollection = "identity_accounts"
	emailsCollection   = "identity_emails"
)

// storedAccount is the provider-owned credential record
type storedAccount struct {
	UID          string `json:"uid"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
	Disabled     bool   `json:"disabled,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// accountRepo persists credentials in a document store: one document per account keyed by
// uid plus an email index document pointing at the uid.
type accountRepo struct {
	store documents.Store
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *accountRepo) create(ctx context.Context, account *storedAccount, now time.Time) error {
	account.CreatedAt = now.UTC().Format(time.RFC3339)
	if err := r.put(ctx, account); err != nil {
		return err
	}
	if err := r.store.Set(ctx, emailsCollection, account.Email, documents.Fields{"uid": account.UID}); err != nil {
		return fmt.Errorf("[local accountRepo create] email index: %w", err)
	}
	return nil
}

func (r *accountRepo) put(ctx context.Context, account *storedAccount) error {
	fields, err := documents.Encode(account)
	if err != nil {
		return fmt.Errorf("[local accountRepo put] %w", err)
	}
	if err := r.store.Set(ctx, accountsCollection, account.UID, fields); err != nil {
		return fmt.Errorf("[local accountRepo put] %w", err)
	}
	return nil
}

func (r *accountRepo) getByID(ctx context.Context, uid string) (*storedAccount, error) {
	fields, err := r.store.Get(ctx, accountsCollection, uid)
	if err != nil {
		return nil, err
	}
	account := &storedAccount{}
	if err := documents.Decode(fields, account); err != nil {
		return nil, fmt.Errorf("[local accountRepo getByID] %w", err)
	}
	return account, nil
}

func (r *accountRepo) getByEmail(ctx context.Context, email string) (*storedAccount, error) {
	index, err := r.store.Get(ctx, emailsCollection, email)
	if err != nil {
		return nil, err
	}
	uid, ok := index.GetString("uid")
	if !ok || uid == "" {
		return nil, documents.ErrNotFound
	}
	return r.getByID(ctx, uid)
}
