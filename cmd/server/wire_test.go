package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/vocaprep/identity/local"
	"github.com/jrsteele09/vocaprep/internal/config"
	"github.com/stretchr/testify/require"
)

func TestWire_MemoryAndLocalProvider(t *testing.T) {
	t.Setenv("ENV", "TEST")
	t.Setenv("DOCUMENT_STORE", config.StoreMemory)
	t.Setenv("IDENTITY_BACKEND", config.IdentityBackendLocal)

	app, closeApp, err := wire(context.Background(), config.New())
	require.NoError(t, err)
	defer closeApp()

	w := httptest.NewRecorder()
	app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestWire_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("ENV", "TEST")
	t.Setenv("DOCUMENT_STORE", config.StoreRedis)
	t.Setenv("REDIS_ADDR", mr.Addr())

	app, closeApp, err := wire(context.Background(), config.New())
	require.NoError(t, err)
	defer closeApp()

	w := httptest.NewRecorder()
	app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)

	mr.SetError("ERR server unavailable")
	w = httptest.NewRecorder()
	app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestWire_UnknownBackends(t *testing.T) {
	t.Setenv("ENV", "TEST")

	t.Setenv("DOCUMENT_STORE", "cassandra")
	_, _, err := wire(context.Background(), config.New())
	require.Error(t, err)

	t.Setenv("DOCUMENT_STORE", config.StoreMemory)
	t.Setenv("IDENTITY_BACKEND", "ldap")
	_, _, err = wire(context.Background(), config.New())
	require.Error(t, err)
}

func TestWire_SessionTTLOutOfRange(t *testing.T) {
	t.Setenv("ENV", "TEST")
	t.Setenv("DOCUMENT_STORE", config.StoreMemory)
	t.Setenv("IDENTITY_BACKEND", config.IdentityBackendLocal)

	for _, ttl := range []string{"720h", "1m", "0s"} {
		t.Setenv("SESSION_TTL", ttl)
		_, _, err := wire(context.Background(), config.New())
		require.Error(t, err, ttl)
	}

	t.Setenv("SESSION_TTL", "336h")
	_, closeApp, err := wire(context.Background(), config.New())
	require.NoError(t, err)
	closeApp()
}

func TestLoadKeys_FromEscapedPEM(t *testing.T) {
	keys, err := local.GenerateRSAKeyPair("k", 2048)
	require.NoError(t, err)

	escaped := ""
	for _, r := range keys.ExportPrivateKeyPEM() {
		if r == '\n' {
			escaped += `\n`
			continue
		}
		escaped += string(r)
	}
	t.Setenv("IDENTITY_PRIVATE_KEY_PEM", escaped)

	loaded, err := loadKeys(config.New())
	require.NoError(t, err)
	require.Equal(t, keys.PublicKey.N, loaded.PublicKey.N)
}
