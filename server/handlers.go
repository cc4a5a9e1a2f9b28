package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jrsteele09/vocaprep/accounts"
	"github.com/jrsteele09/vocaprep/documents"
	"github.com/jrsteele09/vocaprep/interviews"
	"github.com/rs/zerolog/log"
)

const (
	maxBodyBytes  = 1 << 20
	healthTimeout = 2 * time.Second
)

var (
	internalErrorResult = accounts.Result{Success: false, Message: "Something went wrong. Please try again."}
	badRequestResult    = accounts.Result{Success: false, Message: "Invalid request body.", Code: accounts.CodeValidation}
	notFoundResult      = accounts.Result{Success: false, Message: "Interview not found.", Code: accounts.CodeNotFound}
)

// RegisterHandler creates the provider account and the profile
func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var params accounts.RegisterParams
		if !decodeJSON(w, r, &params) {
			return
		}
		res := s.accounts.Register(r.Context(), params)
		writeResult(w, res, http.StatusCreated)
	}
}

// LoginHandler authenticates with email and password and sets the session cookie
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var params accounts.LoginParams
		if !decodeJSON(w, r, &params) {
			return
		}
		res := s.accounts.Login(r.Context(), s.jar(w, r), params)
		writeResult(w, res, http.StatusOK)
	}
}

// SessionHandler exchanges an ID token obtained from the identity provider for a session cookie
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var params accounts.SignInParams
		if !decodeJSON(w, r, &params) {
			return
		}
		res := s.accounts.SignIn(r.Context(), s.jar(w, r), params)
		writeResult(w, res, http.StatusOK)
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := s.accounts.SignOut(r.Context(), s.jar(w, r))
		writeResult(w, res, http.StatusOK)
	}
}

// CurrentUserHandler writes the signed-in user, or null for an anonymous caller
func (s *Server) CurrentUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, s.accounts.GetCurrentUser(r.Context(), s.jar(w, r)))
	}
}

// CreateInterviewHandler stores an interview for the signed-in user
func (s *Server) CreateInterviewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := CurrentUser(r.Context())

		var params interviews.CreateParams
		if !decodeJSON(w, r, &params) {
			return
		}
		params.UserID = user.ID

		res := s.interviews.Create(r.Context(), params)
		switch {
		case res.Success:
			writeJSON(w, http.StatusCreated, res)
		case res.Code == interviews.CodeValidation:
			writeJSON(w, http.StatusBadRequest, res)
		default:
			writeJSON(w, http.StatusInternalServerError, res)
		}
	}
}

// GetInterviewHandler returns one of the signed-in user's interviews
func (s *Server) GetInterviewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := CurrentUser(r.Context())

		interview, err := s.interviews.Get(r.Context(), r.PathValue("id"))
		if documents.IsNotFound(err) {
			writeJSON(w, http.StatusNotFound, notFoundResult)
			return
		}
		if err != nil {
			log.Err(err).Str("id", r.PathValue("id")).Msg("failed to load interview")
			writeJSON(w, http.StatusInternalServerError, internalErrorResult)
			return
		}
		// other users' interviews are reported as missing
		if interview.UserID != user.ID {
			writeJSON(w, http.StatusNotFound, notFoundResult)
			return
		}
		writeJSON(w, http.StatusOK, interview)
	}
}

// JWKSHandler returns the JSON Web Key Set used to validate ID tokens and session credentials
func (s *Server) JWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600") // Cache for 1 hour
		writeJSON(w, http.StatusOK, s.keys.JWKS())
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		status := http.StatusOK
		checks := make(map[string]string, len(s.healthChecks))
		for name, check := range s.healthChecks {
			if err := check(ctx); err != nil {
				log.Warn().Err(err).Str("check", name).Msg("health check failed")
				checks[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}

		state := "ok"
		if status != http.StatusOK {
			state = "unavailable"
		}
		writeJSON(w, status, map[string]any{"status": state, "checks": checks})
	}
}

// writeResult maps a failed Result to an HTTP status; successes use okStatus
func writeResult(w http.ResponseWriter, res accounts.Result, okStatus int) {
	if res.Success {
		writeJSON(w, okStatus, res)
		return
	}
	writeJSON(w, resultStatus(res.Code), res)
}

func resultStatus(code string) int {
	switch code {
	case accounts.CodeValidation:
		return http.StatusBadRequest
	case accounts.CodeConflict, accounts.CodeInconsistency:
		return http.StatusConflict
	case accounts.CodeNotFound:
		return http.StatusNotFound
	case accounts.CodeProvider:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, badRequestResult)
			return false
		}
		writeJSON(w, http.StatusBadRequest, badRequestResult)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("failed to write response")
	}
}
