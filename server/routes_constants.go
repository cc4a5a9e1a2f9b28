package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth API
	RouteAuthRegister = "/api/auth/register"
	RouteAuthLogin    = "/api/auth/login"
	RouteAuthSession  = "/api/auth/session"
	RouteAuthLogout   = "/api/auth/logout"
	RouteAuthMe       = "/api/auth/me"

	// Interviews API
	RouteInterviews    = "/api/interviews"
	RouteInterviewByID = "/api/interviews/{id}"

	// Preflight for every API route
	RouteAPIPrefix = "/api/"

	RouteWellKnownJWKS = "/.well-known/jwks.json"
	RouteHealth        = "/healthz"
)
