// Package accounts joins the identity provider, the users collection and the session cookie
// into sign-up, sign-in and current-user resolution.
//
// Entry points never return errors. Failures are logged and reported as a Result with a short
// message; GetCurrentUser reports every failure as an anonymous caller.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/vocaprep/documents"
	"github.com/jrsteele09/vocaprep/identity"
	apperrors "github.com/jrsteele09/vocaprep/internal/errors"
	"github.com/jrsteele09/vocaprep/session"
	"github.com/rs/zerolog/log"
)

// DefaultSessionTTL is the lifetime of a session cookie; it is not renewed on use
const DefaultSessionTTL = 7 * 24 * time.Hour

type Service struct {
	provider   identity.Provider
	store      documents.Store
	sessionTTL time.Duration
}

type Option func(*Service)

func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.sessionTTL = ttl
	}
}

func NewService(provider identity.Provider, store documents.Store, options ...Option) (*Service, error) {
	if provider == nil {
		return nil, errors.New("[accounts NewService] identity provider is required")
	}
	if store == nil {
		return nil, errors.New("[accounts NewService] document store is required")
	}

	s := &Service{
		provider:   provider,
		store:      store,
		sessionTTL: DefaultSessionTTL,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.sessionTTL < identity.MinSessionDuration || s.sessionTTL > identity.MaxSessionDuration {
		return nil, fmt.Errorf("[accounts NewService] session TTL %s is outside [%s, %s]",
			s.sessionTTL, identity.MinSessionDuration, identity.MaxSessionDuration)
	}
	return s, nil
}

// SignUp writes the profile for an account the provider has already created. An existing
// profile is never overwritten.
func (s *Service) SignUp(ctx context.Context, params SignUpParams) Result {
	if res, ok := s.checkParams("SignUp", params); !ok {
		return res
	}

	_, err := s.store.Get(ctx, UsersCollection, params.UID)
	if err == nil {
		return failure(CodeConflict, msgUserExists)
	}
	if !documents.IsNotFound(err) {
		log.Error().Err(err).Str("uid", params.UID).Msg("sign-up: failed to read profile")
		return failure(CodeStore, msgCreateFailed)
	}

	if err := s.writeProfile(ctx, params.UID, params.Username, params.Email); err != nil {
		log.Error().Err(err).Str("uid", params.UID).Msg("sign-up: failed to write profile")
		return failure(CodeStore, msgCreateFailed)
	}

	log.Info().Str("uid", params.UID).Msg("sign-up: profile created")
	return success(msgAccountCreated)
}

// SignIn exchanges an ID token for a session cookie. The token must belong to the account
// registered for params.Email. An account without a profile still gets its cookie but the
// result carries CodeInconsistency.
func (s *Service) SignIn(ctx context.Context, jar session.Jar, params SignInParams) Result {
	if res, ok := s.checkParams("SignIn", params); !ok {
		return res
	}

	account, err := s.provider.LookupByEmail(ctx, params.Email)
	if identity.IsNotFound(err) {
		return failure(CodeNotFound, msgUserDoesNotExist)
	}
	if err != nil {
		log.Error().Err(err).Str("code", identity.ErrorCode(err)).Msg("sign-in: account lookup failed")
		return failure(CodeProvider, providerMessage(err, msgSignInFailed))
	}

	claims, err := s.provider.VerifyIDToken(ctx, params.IDToken)
	if err != nil {
		log.Warn().Err(err).Str("uid", account.UID).Msg("sign-in: ID token rejected")
		return failure(CodeProvider, msgSignInFailed)
	}
	if claims.UID != account.UID {
		log.Warn().Str("uid", account.UID).Str("token_uid", claims.UID).Msg("sign-in: ID token belongs to another account")
		return failure(CodeProvider, msgSignInFailed)
	}

	_, err = s.store.Get(ctx, UsersCollection, account.UID)
	profileMissing := documents.IsNotFound(err)
	if err != nil && !profileMissing {
		log.Error().Err(err).Str("uid", account.UID).Msg("sign-in: failed to read profile")
		return failure(CodeStore, msgSignInFailed)
	}

	credential, err := s.provider.MintSessionCredential(ctx, params.IDToken, s.sessionTTL)
	if err != nil {
		log.Error().Err(err).Str("uid", account.UID).Msg("sign-in: failed to mint session credential")
		return failure(CodeProvider, providerMessage(err, msgSignInFailed))
	}

	jar.Issue(credential, s.sessionTTL)

	// the session stays valid; a re-link through Register makes it resolve to a user
	if profileMissing {
		inconsistency := &InconsistencyError{UID: account.UID, Detail: "provider account without profile document"}
		log.Warn().Err(inconsistency).Str("uid", account.UID).Msg("sign-in: profile missing")
		return failure(CodeInconsistency, msgProfileMissing)
	}

	log.Info().Str("uid", account.UID).Msg("sign-in: session issued")
	return success(msgSignedIn)
}

// GetCurrentUser resolves the session cookie to a user, or nil for an anonymous caller
func (s *Service) GetCurrentUser(ctx context.Context, jar session.Jar) *AppUser {
	credential, ok := jar.Read()
	if !ok {
		return nil
	}

	claims, err := s.provider.VerifySessionCredential(ctx, credential, true)
	if err != nil {
		switch identity.ErrorCode(err) {
		case identity.CodeSessionExpired, identity.CodeSessionRevoked, identity.CodeInvalidSession, identity.CodeUserDisabled:
			log.Debug().Err(err).Msg("current user: session rejected")
		default:
			log.Warn().Err(err).Msg("current user: session verification failed")
		}
		return nil
	}

	fields, err := s.store.Get(ctx, UsersCollection, claims.UID)
	if documents.IsNotFound(err) {
		inconsistency := &InconsistencyError{UID: claims.UID, Detail: "valid session but no profile document"}
		log.Warn().Err(inconsistency).Str("uid", claims.UID).Msg("current user: profile missing")
		return nil
	}
	if err != nil {
		log.Error().Err(err).Str("uid", claims.UID).Msg("current user: failed to read profile")
		return nil
	}

	return &AppUser{ID: claims.UID, Username: fields.String("username"), Email: fields.String("email")}
}

func (s *Service) IsAuthenticated(ctx context.Context, jar session.Jar) bool {
	return s.GetCurrentUser(ctx, jar) != nil
}

// Register creates the provider account and then the profile. An email that already has a
// provider account but no profile is re-linked when the password proves ownership.
func (s *Service) Register(ctx context.Context, params RegisterParams) Result {
	if res, ok := s.checkParams("Register", params); !ok {
		return res
	}

	account, err := s.provider.CreateAccount(ctx, params.Email, params.Password)
	if identity.HasCode(err, identity.CodeEmailAlreadyExists) {
		return s.relink(ctx, params)
	}
	if err != nil {
		log.Warn().Err(err).Str("code", identity.ErrorCode(err)).Msg("register: provider rejected account")
		return failure(CodeProvider, providerMessage(err, msgCreateFailed))
	}

	return s.SignUp(ctx, SignUpParams{
		UID:      account.UID,
		Username: params.Username,
		Email:    account.Email,
		Password: params.Password,
	})
}

func (s *Service) relink(ctx context.Context, params RegisterParams) Result {
	account, _, err := s.provider.Authenticate(ctx, params.Email, params.Password)
	if err != nil {
		log.Debug().Err(err).Msg("register: email in use and password does not match")
		return failure(CodeConflict, msgEmailInUse)
	}

	_, err = s.store.Get(ctx, UsersCollection, account.UID)
	if err == nil {
		return failure(CodeConflict, msgEmailInUse)
	}
	if !documents.IsNotFound(err) {
		log.Error().Err(err).Str("uid", account.UID).Msg("register: failed to read profile")
		return failure(CodeStore, msgCreateFailed)
	}

	inconsistency := &InconsistencyError{UID: account.UID, Detail: "provider account without profile document"}
	log.Warn().Err(inconsistency).Str("uid", account.UID).Msg("register: re-linking profile")

	if err := s.writeProfile(ctx, account.UID, params.Username, account.Email); err != nil {
		log.Error().Err(err).Str("uid", account.UID).Msg("register: failed to write profile")
		return failure(CodeStore, msgCreateFailed)
	}
	return success(msgAccountRestored)
}

// Login authenticates with the provider and signs in with the fresh ID token
func (s *Service) Login(ctx context.Context, jar session.Jar, params LoginParams) Result {
	if res, ok := s.checkParams("Login", params); !ok {
		return res
	}

	_, idToken, err := s.provider.Authenticate(ctx, params.Email, params.Password)
	if identity.IsNotFound(err) {
		return failure(CodeNotFound, msgUserDoesNotExist)
	}
	if err != nil {
		log.Debug().Err(err).Str("code", identity.ErrorCode(err)).Msg("login: authentication failed")
		return failure(CodeProvider, providerMessage(err, msgSignInFailed))
	}

	return s.SignIn(ctx, jar, SignInParams{Email: params.Email, IDToken: idToken})
}

// SignOut revokes the current credential when there is one and always clears the cookie
func (s *Service) SignOut(ctx context.Context, jar session.Jar) Result {
	if credential, ok := jar.Read(); ok {
		if err := s.provider.RevokeSessionCredential(ctx, credential); err != nil {
			log.Debug().Err(err).Msg("sign-out: credential not revoked")
		}
	}
	jar.Clear()
	return success(msgSignedOut)
}

func (s *Service) writeProfile(ctx context.Context, uid, username, email string) error {
	err := s.store.Set(ctx, UsersCollection, uid, documents.Fields{
		"username": username,
		"email":    email,
	})
	if err != nil {
		return fmt.Errorf("[accounts writeProfile] %w", err)
	}
	return nil
}

func (s *Service) checkParams(op string, params any) (Result, bool) {
	err := validateParams(params)
	if err == nil {
		return Result{}, true
	}
	var validationErr *ValidationError
	if apperrors.As(err, &validationErr) {
		log.Debug().Str("op", op).Str("field", validationErr.Field).Msg("invalid input")
		return failure(CodeValidation, validationErr.Message), false
	}
	return failure(CodeValidation, err.Error()), false
}
