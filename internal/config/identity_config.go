package config

import "time"

const (
	IdentityBackendLocal  = "local"
	IdentityBackendRemote = "remote"
)

type IdentityConfig interface {
	GetIdentityBackend() string
	GetIdentityIssuer() string
	GetIdentityAudience() string
	GetIdentityPrivateKeyPEM() string
	GetIDTokenExpiry() time.Duration
	GetMaxFailedLogins() int
	GetFailedLoginWindow() time.Duration

	// Remote identity service
	GetRemoteIdentityURL() string
	GetRemoteIdentityClientID() string
	GetRemoteIdentityClientSecret() string
	GetRemoteIdentityTokenURL() string
}

type Identity struct{}

var _ IdentityConfig = Identity{}

func (Identity) GetIdentityBackend() string {
	return GetEnv("IDENTITY_BACKEND", IdentityBackendLocal)
}

func (Identity) GetIdentityIssuer() string {
	return GetEnv("IDENTITY_ISSUER", EnvVars{}.GetBaseURL())
}

// GetIdentityAudience is the project identifier placed in the aud claim of every token
func (Identity) GetIdentityAudience() string {
	return GetEnv("PROJECT_ID", "vocaprep")
}

// GetIdentityPrivateKeyPEM returns a PKCS1 RSA key. Empty means a key is generated at start-up,
// which invalidates every session on restart.
func (Identity) GetIdentityPrivateKeyPEM() string {
	return GetEnv("IDENTITY_PRIVATE_KEY_PEM", "")
}

func (Identity) GetIDTokenExpiry() time.Duration {
	return GetEnvDuration("ID_TOKEN_EXPIRY", time.Hour)
}

func (Identity) GetMaxFailedLogins() int {
	return GetEnvInt("MAX_FAILED_LOGINS", 5)
}

func (Identity) GetFailedLoginWindow() time.Duration {
	return GetEnvDuration("FAILED_LOGIN_WINDOW", 15*time.Minute)
}

func (Identity) GetRemoteIdentityURL() string {
	return GetEnv("REMOTE_IDENTITY_URL", "")
}

func (Identity) GetRemoteIdentityClientID() string {
	return GetEnv("REMOTE_IDENTITY_CLIENT_ID", "")
}

func (Identity) GetRemoteIdentityClientSecret() string {
	return GetEnv("REMOTE_IDENTITY_CLIENT_SECRET", "")
}

func (Identity) GetRemoteIdentityTokenURL() string {
	return GetEnv("REMOTE_IDENTITY_TOKEN_URL", "")
}
