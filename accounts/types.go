package accounts

import "fmt"

// Result codes describe why an operation failed
const (
	CodeValidation    = "validation"
	CodeProvider      = "provider"
	CodeStore         = "store"
	CodeInconsistency = "inconsistency"
	CodeConflict      = "conflict"
	CodeNotFound      = "not-found"
)

// UsersCollection holds one profile document per provider uid
const UsersCollection = "users"

// Result is returned by every orchestrator entry point. Message is always set.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func success(message string) Result {
	return Result{Success: true, Message: message}
}

func failure(code, message string) Result {
	return Result{Success: false, Message: message, Code: code}
}

// AppUser is the signed-in user: the profile document plus the provider uid
type AppUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type SignUpParams struct {
	UID      string `json:"uid" validate:"required"`
	Username string `json:"username" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// SignInParams carries an ID token from a just-completed Authenticate call
type SignInParams struct {
	Email   string `json:"email" validate:"required,email"`
	IDToken string `json:"idToken" validate:"required"`
}

type RegisterParams struct {
	Username string `json:"username" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginParams struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ValidationError is malformed input caught before any external call
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// InconsistencyError is a provider account without a profile document, or the reverse
type InconsistencyError struct {
	UID    string
	Detail string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("account %s is inconsistent: %s", e.UID, e.Detail)
}
