// Package remote talks to an identity service over HTTP. Calls are authorised with an OAuth2
// client-credentials token; ID tokens are verified locally against the service's published JWKS.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/vocaprep/identity"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	jwksPath          = "/.well-known/jwks.json"
	maxErrorBodyBytes = 64 * 1024
	defaultTimeout    = 10 * time.Second
)

var _ identity.Provider = (*Client)(nil)

// Config locates the identity service and the credentials used to call it
type Config struct {
	BaseURL      string
	Issuer       string // expected iss of ID tokens
	Audience     string // expected aud of ID tokens
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

type Client struct {
	baseURL  string
	http     *http.Client
	verifier *oidc.IDTokenVerifier
}

type Option func(*Client)

// WithHTTPClient replaces the client-credentials transport
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.http = httpClient
	}
}

// New creates a client. ctx is retained for token and key fetches made during the client's
// lifetime.
func New(ctx context.Context, cfg Config, options ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("[remote New] base URL is required")
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, fmt.Errorf("[remote New] issuer and audience are required")
	}

	c := &Client{baseURL: strings.TrimRight(cfg.BaseURL, "/")}
	for _, opt := range options {
		opt(c)
	}

	if c.http == nil {
		if cfg.ClientID == "" || cfg.TokenURL == "" {
			return nil, fmt.Errorf("[remote New] client id and token URL are required")
		}
		credentials := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		c.http = credentials.Client(ctx)
		c.http.Timeout = defaultTimeout
	}

	keySet := oidc.NewRemoteKeySet(ctx, c.baseURL+jwksPath)
	c.verifier = oidc.NewVerifier(cfg.Issuer, keySet, &oidc.Config{
		ClientID:             cfg.Audience,
		SupportedSigningAlgs: []string{oidc.RS256},
	})

	return c, nil
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInResponse struct {
	Account identity.Account `json:"account"`
	IDToken string           `json:"idToken"`
}

type sessionRequest struct {
	IDToken   string `json:"idToken"`
	ExpiresIn int64  `json:"expiresIn"` // seconds
}

type sessionResponse struct {
	SessionCredential string `json:"sessionCredential"`
}

type verifySessionRequest struct {
	SessionCredential string `json:"sessionCredential"`
	CheckRevoked      bool   `json:"checkRevoked,omitempty"`
}

func (c *Client) CreateAccount(ctx context.Context, email, password string) (identity.Account, error) {
	var account identity.Account
	err := c.do(ctx, http.MethodPost, "/v1/accounts", credentialsRequest{Email: email, Password: password}, &account)
	return account, err
}

func (c *Client) Authenticate(ctx context.Context, email, password string) (identity.Account, string, error) {
	var resp signInResponse
	if err := c.do(ctx, http.MethodPost, "/v1/accounts/signin", credentialsRequest{Email: email, Password: password}, &resp); err != nil {
		return identity.Account{}, "", err
	}
	return resp.Account, resp.IDToken, nil
}

func (c *Client) LookupByEmail(ctx context.Context, email string) (identity.Account, error) {
	var account identity.Account
	path := "/v1/accounts/lookup?" + url.Values{"email": {email}}.Encode()
	err := c.do(ctx, http.MethodGet, path, nil, &account)
	return account, err
}

func (c *Client) VerifyIDToken(ctx context.Context, idToken string) (identity.Claims, error) {
	token, err := c.verifier.Verify(ctx, idToken)
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

func (c *Client) MintSessionCredential(ctx context.Context, idToken string, ttl time.Duration) (string, error) {
	var resp sessionResponse
	req := sessionRequest{IDToken: idToken, ExpiresIn: int64(ttl / time.Second)}
	if err := c.do(ctx, http.MethodPost, "/v1/sessions", req, &resp); err != nil {
		return "", err
	}
	return resp.SessionCredential, nil
}

func (c *Client) VerifySessionCredential(ctx context.Context, credential string, checkRevoked bool) (identity.Claims, error) {
	var claims identity.Claims
	req := verifySessionRequest{SessionCredential: credential, CheckRevoked: checkRevoked}
	err := c.do(ctx, http.MethodPost, "/v1/sessions/verify", req, &claims)
	return claims, err
}

func (c *Client) RevokeSessionCredential(ctx context.Context, credential string) error {
	return c.do(ctx, http.MethodPost, "/v1/sessions/revoke", verifySessionRequest{SessionCredential: credential}, nil)
}

// do sends body as JSON and decodes a 2xx response into out. Error responses carry a
// {"code", "message"} body which becomes a *identity.ProviderError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return identity.WrapError(identity.CodeInternal, "failed to encode request", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return identity.WrapError(identity.CodeInternal, "failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return identity.WrapError(identity.CodeProviderUnavailable, "identity service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return identity.WrapError(identity.CodeInternal, "malformed identity service response", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	providerErr := &identity.ProviderError{}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err := json.Unmarshal(raw, providerErr); err == nil && providerErr.Code != "" {
		return providerErr
	}

	cause := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	if resp.StatusCode >= http.StatusInternalServerError {
		return identity.WrapError(identity.CodeProviderUnavailable, "identity service failed", cause)
	}
	return identity.WrapError(identity.CodeInternal, "unexpected identity service response", cause)
}
