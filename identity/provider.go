// Package identity defines the client side of an identity provider: the service that owns
// email/password credentials, issues short-lived ID tokens and mints session credentials.
package identity

import (
	"context"
	"time"
)

// Bounds on the lifetime of a session credential
const (
	MinSessionDuration = 5 * time.Minute
	MaxSessionDuration = 14 * 24 * time.Hour
)

// Account is the provider's half of a user account
type Account struct {
	UID      string `json:"uid"`
	Email    string `json:"email"`
	Disabled bool   `json:"disabled,omitempty"`
}

// Claims are the verified contents of an ID token or a session credential
type Claims struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email,omitempty"`
	TokenID   string    `json:"jti,omitempty"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
	AuthTime  time.Time `json:"auth_time,omitempty"`
}

// Provider is implemented by identity provider clients. Every method returns a *ProviderError
// when the provider rejects the call.
type Provider interface {
	// CreateAccount registers a new email/password account
	CreateAccount(ctx context.Context, email, password string) (Account, error)

	// Authenticate checks the password and returns the account with a short-lived ID token
	Authenticate(ctx context.Context, email, password string) (Account, string, error)

	// LookupByEmail finds an account; a missing account is CodeUserNotFound
	LookupByEmail(ctx context.Context, email string) (Account, error)

	// VerifyIDToken validates an ID token issued by Authenticate
	VerifyIDToken(ctx context.Context, idToken string) (Claims, error)

	// MintSessionCredential exchanges a valid ID token for a session credential lasting ttl
	MintSessionCredential(ctx context.Context, idToken string, ttl time.Duration) (string, error)

	// VerifySessionCredential validates a session credential, optionally rejecting revoked ones
	VerifySessionCredential(ctx context.Context, credential string, checkRevoked bool) (Claims, error)

	// RevokeSessionCredential invalidates one session credential before its expiry
	RevokeSessionCredential(ctx context.Context, credential string) error
}
