package accounts

import "github.com/jrsteele09/vocaprep/identity"

const (
	msgUserExists       = "User already exists. Please sign in instead."
	msgAccountCreated   = "Account created successfully. Please sign in."
	msgAccountRestored  = "Account restored. Please sign in."
	msgCreateFailed     = "Failed to create an account."
	msgEmailInUse       = "This email is already in use."
	msgUserDoesNotExist = "User does not exist. Create an account instead."
	msgSignedIn         = "Signed in successfully."
	msgSignInFailed     = "Failed to sign in to your account."
	msgSignedOut        = "Signed out successfully."
	msgProfileMissing   = "Your account profile is missing. Register again with the same email and password to restore it."
)

// providerMessage maps a provider rejection to a short message safe to show the user
func providerMessage(err error, fallback string) string {
	switch identity.ErrorCode(err) {
	case identity.CodeEmailAlreadyExists:
		return msgEmailInUse
	case identity.CodeUserNotFound:
		return msgUserDoesNotExist
	case identity.CodeWrongPassword:
		return "Invalid email or password."
	case identity.CodeInvalidEmail:
		return "Invalid email address."
	case identity.CodeWeakPassword:
		return "Password must be at least 6 characters."
	case identity.CodeUserDisabled:
		return "This account has been disabled."
	case identity.CodeTooManyRequests:
		return "Too many attempts. Please try again later."
	default:
		return fallback
	}
}
