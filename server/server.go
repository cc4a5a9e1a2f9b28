package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/vocaprep/accounts"
	"github.com/jrsteele09/vocaprep/identity/local"
	"github.com/jrsteele09/vocaprep/internal/config"
	"github.com/jrsteele09/vocaprep/interviews"
	"github.com/jrsteele09/vocaprep/session"
	"github.com/rs/zerolog/log"
)

// KeySource publishes the public keys of an embedded identity provider
type KeySource interface {
	JWKS() local.JWKS
}

// HealthCheck reports whether a dependency is usable
type HealthCheck func(ctx context.Context) error

type Server struct {
	env          string // Environment (e.g., "DEV", "PROD")
	mux          *http.ServeMux
	routes       []string
	config       config.Config
	accounts     *accounts.Service
	interviews   *interviews.Service
	keys         KeySource
	healthChecks map[string]HealthCheck
}

type Option func(*Server)

// WithKeySource serves the provider's JWKS at /.well-known/jwks.json
func WithKeySource(keys KeySource) Option {
	return func(s *Server) {
		s.keys = keys
	}
}

// WithHealthCheck adds a named dependency check to /healthz
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) {
		s.healthChecks[name] = check
	}
}

func New(config config.Config, accountsService *accounts.Service, interviewsService *interviews.Service, options ...Option) (*Server, error) {
	if accountsService == nil || interviewsService == nil {
		return nil, errors.New("[Server New] accounts and interviews services are required")
	}

	s := &Server{
		mux:          http.NewServeMux(),
		config:       config,
		accounts:     accountsService,
		interviews:   interviewsService,
		healthChecks: make(map[string]HealthCheck),
	}
	s.env = config.GetEnv()

	for _, opt := range options {
		opt(s)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// jar binds the session cookie to this request
func (s *Server) jar(w http.ResponseWriter, r *http.Request) *session.CookieJar {
	return session.NewCookieJar(w, r, s.config.GetSecureCookies())
}

func (s *Server) logRoutes() {
	if s.env != config.EnvDev {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", colourMethod(method), path)
}

func colourMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}
