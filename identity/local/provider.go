// Package local is an identity provider embedded in the process. Credentials are bcrypt hashes
// kept in a documents.Store, ID tokens and session credentials are RS256 JWTs signed with one
// key pair, and revocations and failed-login counters live in in-process caches.
package local

import (
	"context"
	"crypto"
	"errors"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/vocaprep/documents"
	"github.com/jrsteele09/vocaprep/identity"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/go-playground/validator.v9"
)

const (
	defaultIDTokenExpiry  = time.Hour
	defaultMaxFailures    = 5
	defaultFailureWindow  = 15 * time.Minute
	minPasswordLength     = 6
	recentSignInWindow    = 5 * time.Minute
	sessionIssuerSuffix   = "/session"
	revokedCleanupPeriod  = 10 * time.Minute
	failuresCleanupPeriod = time.Minute
)

var _ identity.Provider = (*Provider)(nil)

// tokenClaims is the payload of both ID tokens and session credentials
type tokenClaims struct {
	Email    string `json:"email,omitempty"`
	AuthTime int64  `json:"auth_time,omitempty"`
	jwt.RegisteredClaims
}

type Provider struct {
	accounts      *accountRepo
	keys          *KeyPair
	issuer        string
	audience      string
	idTokenExpiry time.Duration
	maxFailures   int
	failureWindow time.Duration
	verifier      *oidc.IDTokenVerifier
	validate      *validator.Validate
	revoked       *cache.Cache // jti -> expiry of the revoked credential
	failures      *cache.Cache // email -> failed attempts in the current window
	createLock    sync.Mutex
	nowTime       func() time.Time
}

// Option configures a Provider
type Option func(*Provider)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(p *Provider) {
		p.nowTime = nowFunc
	}
}

// WithKeyPair signs with an existing key instead of generating one
func WithKeyPair(keys *KeyPair) Option {
	return func(p *Provider) {
		p.keys = keys
	}
}

func WithIDTokenExpiry(expiry time.Duration) Option {
	return func(p *Provider) {
		p.idTokenExpiry = expiry
	}
}

// WithLoginThrottle rejects an email with too-many-requests after max failures within window
func WithLoginThrottle(max int, window time.Duration) Option {
	return func(p *Provider) {
		p.maxFailures = max
		p.failureWindow = window
	}
}

// New creates a provider whose accounts live in store. issuer and audience are written into
// every token and checked on verification.
func New(store documents.Store, issuer, audience string, options ...Option) (*Provider, error) {
	if store == nil {
		return nil, errors.New("[local New] document store is required")
	}
	if issuer == "" || audience == "" {
		return nil, errors.New("[local New] issuer and audience are required")
	}

	p := &Provider{
		accounts:      &accountRepo{store: store},
		issuer:        issuer,
		audience:      audience,
		idTokenExpiry: defaultIDTokenExpiry,
		maxFailures:   defaultMaxFailures,
		failureWindow: defaultFailureWindow,
		validate:      validator.New(),
		nowTime:       time.Now,
	}

	for _, opt := range options {
		opt(p)
	}

	if p.keys == nil {
		keys, err := GenerateRSAKeyPair(uuid.New().String(), 2048)
		if err != nil {
			return nil, err
		}
		p.keys = keys
	}

	p.revoked = cache.New(identity.MaxSessionDuration, revokedCleanupPeriod)
	p.failures = cache.New(p.failureWindow, failuresCleanupPeriod)
	p.verifier = oidc.NewVerifier(p.issuer, &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{p.keys.PublicKey}}, &oidc.Config{
		ClientID:             p.audience,
		SupportedSigningAlgs: []string{oidc.RS256},
		Now:                  p.nowTime,
	})

	return p, nil
}

// JWKS returns the public key set that verifies every token the provider issues
func (p *Provider) JWKS() JWKS {
	return JWKS{Keys: []JWK{p.keys.ToJWK()}}
}

func (p *Provider) CreateAccount(ctx context.Context, email, password string) (identity.Account, error) {
	email = normalizeEmail(email)
	if err := p.checkEmail(email); err != nil {
		return identity.Account{}, err
	}
	if len(password) < minPasswordLength {
		return identity.Account{}, identity.NewError(identity.CodeWeakPassword, "password must be at least 6 characters")
	}

	p.createLock.Lock()
	defer p.createLock.Unlock()

	_, err := p.accounts.getByEmail(ctx, email)
	if err == nil {
		return identity.Account{}, identity.NewError(identity.CodeEmailAlreadyExists, "the email address is already in use by another account")
	}
	if !documents.IsNotFound(err) {
		return identity.Account{}, identity.WrapError(identity.CodeInternal, "failed to check existing account", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return identity.Account{}, identity.WrapError(identity.CodeInternal, "failed to hash password", err)
	}

	account := &storedAccount{
		UID:          uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := p.accounts.create(ctx, account, p.nowTime()); err != nil {
		return identity.Account{}, identity.WrapError(identity.CodeInternal, "failed to store account", err)
	}

	log.Info().Str("uid", account.UID).Msg("identity account created")
	return toAccount(account), nil
}

func (p *Provider) Authenticate(ctx context.Context, email, password string) (identity.Account, string, error) {
	email = normalizeEmail(email)
	if err := p.checkEmail(email); err != nil {
		return identity.Account{}, "", err
	}
	if p.throttled(email) {
		return identity.Account{}, "", identity.NewError(identity.CodeTooManyRequests, "too many unsuccessful sign-in attempts, try again later")
	}

	account, err := p.accounts.getByEmail(ctx, email)
	if documents.IsNotFound(err) {
		p.recordFailure(email)
		return identity.Account{}, "", identity.NewError(identity.CodeUserNotFound, "there is no account for this email")
	}
	if err != nil {
		return identity.Account{}, "", identity.WrapError(identity.CodeInternal, "failed to load account", err)
	}
	if account.Disabled {
		return identity.Account{}, "", identity.NewError(identity.CodeUserDisabled, "the account has been disabled")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		p.recordFailure(email)
		return identity.Account{}, "", identity.NewError(identity.CodeWrongPassword, "the password is invalid")
	}
	p.failures.Delete(email)

	now := p.nowTime()
	idToken, err := p.keys.Sign(tokenClaims{
		Email:    account.Email,
		AuthTime: now.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.issuer,
			Subject:   account.UID,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.idTokenExpiry)),
			ID:        uuid.New().String(),
		},
	})
	if err != nil {
		return identity.Account{}, "", identity.WrapError(identity.CodeInternal, "failed to issue ID token", err)
	}
	return toAccount(account), idToken, nil
}

func (p *Provider) LookupByEmail(ctx context.Context, email string) (identity.Account, error) {
	email = normalizeEmail(email)
	if err := p.checkEmail(email); err != nil {
		return identity.Account{}, err
	}
	account, err := p.accounts.getByEmail(ctx, email)
	if documents.IsNotFound(err) {
		return identity.Account{}, identity.NewError(identity.CodeUserNotFound, "there is no account for this email")
	}
	if err != nil {
		return identity.Account{}, identity.WrapError(identity.CodeInternal, "failed to load account", err)
	}
	return toAccount(account), nil
}

func (p *Provider) VerifyIDToken(ctx context.Context, idToken string) (identity.Claims, error) {
	token, err := p.verifier.Verify(ctx, idToken)
	if err != nil {
		return identity.Claims{}, identity.WrapError(identity.CodeInvalidIDToken, "ID token could not be verified", err)
	}

	var extra struct {
		Email    string `json:"email"`
		AuthTime int64  `json:"auth_time"`
		TokenID  string `json:"jti"`
	}
	if err := token.Claims(&extra); err != nil {
		return identity.Claims{}, identity.WrapError(identity.CodeInvalidIDToken, "ID token claims are malformed", err)
	}

	return identity.Claims{
		UID:       token.Subject,
		Email:     extra.Email,
		TokenID:   extra.TokenID,
		IssuedAt:  token.IssuedAt,
		ExpiresAt: token.Expiry,
		AuthTime:  time.Unix(extra.AuthTime, 0),
	}, nil
}

func (p *Provider) MintSessionCredential(ctx context.Context, idToken string, ttl time.Duration) (string, error) {
	if ttl < identity.MinSessionDuration || ttl > identity.MaxSessionDuration {
		return "", identity.NewError(identity.CodeInvalidSessionMaxAge, "session duration must be between 5 minutes and 2 weeks")
	}

	claims, err := p.VerifyIDToken(ctx, idToken)
	if err != nil {
		return "", err
	}

	now := p.nowTime()
	if now.Sub(claims.AuthTime) > recentSignInWindow {
		return "", identity.NewError(identity.CodeInvalidIDToken, "recent sign-in required to create a session")
	}

	account, err := p.accounts.getByID(ctx, claims.UID)
	if documents.IsNotFound(err) {
		return "", identity.NewError(identity.CodeUserNotFound, "the account no longer exists")
	}
	if err != nil {
		return "", identity.WrapError(identity.CodeInternal, "failed to load account", err)
	}
	if account.Disabled {
		return "", identity.NewError(identity.CodeUserDisabled, "the account has been disabled")
	}

	credential, err := p.keys.Sign(tokenClaims{
		Email:    account.Email,
		AuthTime: claims.AuthTime.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.sessionIssuer(),
			Subject:   account.UID,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
		},
	})
	if err != nil {
		return "", identity.WrapError(identity.CodeInternal, "failed to sign session credential", err)
	}
	return credential, nil
}

func (p *Provider) VerifySessionCredential(ctx context.Context, credential string, checkRevoked bool) (identity.Claims, error) {
	claims, err := p.parseSessionCredential(credential)
	if err != nil {
		return identity.Claims{}, err
	}
	if !checkRevoked {
		return claims, nil
	}

	if _, revoked := p.revoked.Get(claims.TokenID); revoked {
		return identity.Claims{}, identity.NewError(identity.CodeSessionRevoked, "the session cookie has been revoked")
	}

	account, err := p.accounts.getByID(ctx, claims.UID)
	if documents.IsNotFound(err) {
		return identity.Claims{}, identity.NewError(identity.CodeInvalidSession, "the session account no longer exists")
	}
	if err != nil {
		return identity.Claims{}, identity.WrapError(identity.CodeInternal, "failed to load account", err)
	}
	if account.Disabled {
		return identity.Claims{}, identity.NewError(identity.CodeUserDisabled, "the account has been disabled")
	}
	return claims, nil
}

func (p *Provider) RevokeSessionCredential(_ context.Context, credential string) error {
	claims, err := p.parseSessionCredential(credential)
	if identity.HasCode(err, identity.CodeSessionExpired) {
		return nil
	}
	if err != nil {
		return err
	}

	remaining := claims.ExpiresAt.Sub(p.nowTime())
	if remaining <= 0 {
		return nil
	}
	p.revoked.Set(claims.TokenID, claims.ExpiresAt, remaining)
	return nil
}

// SetDisabled blocks or unblocks sign-in and invalidates sessions checked with checkRevoked
func (p *Provider) SetDisabled(ctx context.Context, uid string, disabled bool) error {
	account, err := p.accounts.getByID(ctx, uid)
	if documents.IsNotFound(err) {
		return identity.NewError(identity.CodeUserNotFound, "there is no account for this uid")
	}
	if err != nil {
		return identity.WrapError(identity.CodeInternal, "failed to load account", err)
	}
	account.Disabled = disabled
	if err := p.accounts.put(ctx, account); err != nil {
		return identity.WrapError(identity.CodeInternal, "failed to store account", err)
	}
	return nil
}

func (p *Provider) sessionIssuer() string {
	return p.issuer + sessionIssuerSuffix
}

func (p *Provider) parseSessionCredential(credential string) (identity.Claims, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(credential, claims, p.keys.GetVerificationKey,
		jwt.WithValidMethods([]string{RS256}),
		jwt.WithIssuer(p.sessionIssuer()),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.nowTime),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return identity.Claims{}, identity.WrapError(identity.CodeSessionExpired, "the session cookie has expired", err)
	}
	if err != nil || !token.Valid {
		return identity.Claims{}, identity.WrapError(identity.CodeInvalidSession, "the session cookie is invalid", err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return identity.Claims{}, identity.NewError(identity.CodeInvalidSession, "the session cookie is missing required claims")
	}

	result := identity.Claims{
		UID:      claims.Subject,
		Email:    claims.Email,
		TokenID:  claims.ID,
		AuthTime: time.Unix(claims.AuthTime, 0),
	}
	if claims.IssuedAt != nil {
		result.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}
	return result, nil
}

func (p *Provider) checkEmail(email string) error {
	if err := p.validate.Var(email, "required,email"); err != nil {
		return identity.NewError(identity.CodeInvalidEmail, "the email address is badly formatted")
	}
	return nil
}

func (p *Provider) throttled(email string) bool {
	if p.maxFailures <= 0 {
		return false
	}
	count, found := p.failures.Get(email)
	return found && count.(int) >= p.maxFailures
}

func (p *Provider) recordFailure(email string) {
	if err := p.failures.Add(email, 1, p.failureWindow); err != nil {
		_, _ = p.failures.IncrementInt(email, 1)
	}
}

func toAccount(account *storedAccount) identity.Account {
	return identity.Account{
		UID:      account.UID,
		Email:    account.Email,
		Disabled: account.Disabled,
	}
}
