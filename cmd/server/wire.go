package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/vocaprep/accounts"
	"github.com/jrsteele09/vocaprep/documents"
	"github.com/jrsteele09/vocaprep/documents/memory"
	"github.com/jrsteele09/vocaprep/documents/mongostore"
	"github.com/jrsteele09/vocaprep/documents/pgstore"
	"github.com/jrsteele09/vocaprep/documents/redisstore"
	"github.com/jrsteele09/vocaprep/identity"
	"github.com/jrsteele09/vocaprep/identity/local"
	"github.com/jrsteele09/vocaprep/identity/remote"
	"github.com/jrsteele09/vocaprep/internal/config"
	"github.com/jrsteele09/vocaprep/interviews"
	"github.com/jrsteele09/vocaprep/server"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func setupLogger(c config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.GetLogLevel()))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stderr
	if c.GetEnv() == config.EnvDev {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Str("app", c.GetAppName()).Logger()
}

// wire builds the document store, the identity provider and the HTTP handler. The returned
// func releases the store's connections.
func wire(ctx context.Context, c config.Config) (http.Handler, func(), error) {
	var serverOptions []server.Option

	store, closeStore, check, err := openStore(ctx, c)
	if err != nil {
		return nil, nil, err
	}
	if check != nil {
		serverOptions = append(serverOptions, server.WithHealthCheck("store", check))
	}

	provider, keys, err := newProvider(c, store)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	if keys != nil {
		serverOptions = append(serverOptions, server.WithKeySource(keys))
	}

	accountsService, err := accounts.NewService(provider, store, accounts.WithSessionTTL(c.GetSessionTTL()))
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	interviewsService, err := interviews.NewService(store)
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	app, err := server.New(c, accountsService, interviewsService, serverOptions...)
	if err != nil {
		closeStore()
		return nil, nil, fmt.Errorf("[wire] failed to create server: %w", err)
	}
	return app, closeStore, nil
}

func openStore(ctx context.Context, c config.Config) (documents.Store, func(), server.HealthCheck, error) {
	backend := c.GetDocumentStore()
	log.Info().Str("backend", backend).Msg("opening document store")

	switch backend {
	case config.StoreMemory:
		if c.IsProduction() {
			log.Warn().Msg("in-memory document store loses every account on restart")
		}
		return memory.New(), func() {}, nil, nil

	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     c.GetRedisAddr(),
			Password: c.GetRedisPassword(),
		})
		store := redisstore.New(client, c.GetRedisPrefix())
		if err := store.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, nil, fmt.Errorf("[openStore] redis: %w", err)
		}
		return store, func() { _ = client.Close() }, store.Ping, nil

	case config.StoreMongo:
		store, err := mongostore.Connect(ctx, c.GetMongoURI(), c.GetMongoDatabase())
		if err != nil {
			return nil, nil, nil, err
		}
		closeFn := func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = store.Close(closeCtx)
		}
		return store, closeFn, store.Ping, nil

	case config.StorePostgres:
		store, db, err := pgstore.Open(ctx, c.GetDatabaseDSN())
		if err != nil {
			return nil, nil, nil, err
		}
		return store, func() { _ = db.Close() }, db.PingContext, nil
	}

	return nil, nil, nil, fmt.Errorf("[openStore] unknown document store %q", backend)
}

// newProvider returns the configured identity provider and, for the embedded provider, the
// key source served as JWKS
func newProvider(c config.Config, store documents.Store) (identity.Provider, server.KeySource, error) {
	switch c.GetIdentityBackend() {
	case config.IdentityBackendLocal:
		keys, err := loadKeys(c)
		if err != nil {
			return nil, nil, err
		}
		provider, err := local.New(store, c.GetIdentityIssuer(), c.GetIdentityAudience(),
			local.WithKeyPair(keys),
			local.WithIDTokenExpiry(c.GetIDTokenExpiry()),
			local.WithLoginThrottle(c.GetMaxFailedLogins(), c.GetFailedLoginWindow()),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("[newProvider] local: %w", err)
		}
		return provider, provider, nil

	case config.IdentityBackendRemote:
		// token and key fetches outlive start-up, so they are not bound to the start-up deadline
		client, err := remote.New(context.Background(), remote.Config{
			BaseURL:      c.GetRemoteIdentityURL(),
			Issuer:       c.GetIdentityIssuer(),
			Audience:     c.GetIdentityAudience(),
			ClientID:     c.GetRemoteIdentityClientID(),
			ClientSecret: c.GetRemoteIdentityClientSecret(),
			TokenURL:     c.GetRemoteIdentityTokenURL(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("[newProvider] remote: %w", err)
		}
		return client, nil, nil
	}

	return nil, nil, fmt.Errorf("[newProvider] unknown identity backend %q", c.GetIdentityBackend())
}

func loadKeys(c config.Config) (*local.KeyPair, error) {
	if pem := c.GetIdentityPrivateKeyPEM(); pem != "" {
		// single-line env values carry escaped newlines
		return local.LoadKeyPairFromPEM("vocaprep-1", strings.ReplaceAll(pem, `\n`, "\n"))
	}
	log.Warn().Msg("IDENTITY_PRIVATE_KEY_PEM not set, generating a key; sessions end on restart")
	return local.GenerateRSAKeyPair(uuid.New().String(), 2048)
}
