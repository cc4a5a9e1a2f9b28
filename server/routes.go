package server

import "net/http"

func (s *Server) initRoutes() {
	// Auth
	s.RegisterRouteHandler("POST "+RouteAuthRegister, ChainMiddleware(s.RegisterHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthSession, ChainMiddleware(s.SessionHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAuthMe, ChainMiddleware(s.CurrentUserHandler(), s.APIMiddleware()...))

	// Interviews (require a signed-in user)
	s.RegisterRouteHandler("POST "+RouteInterviews, ChainMiddleware(s.CreateInterviewHandler(), s.APIMiddleware(s.RequireUser())...))
	s.RegisterRouteHandler("GET "+RouteInterviewByID, ChainMiddleware(s.GetInterviewHandler(), s.APIMiddleware(s.RequireUser())...))

	s.RegisterRouteHandler("OPTIONS "+RouteAPIPrefix, ChainMiddleware(preflightHandler, s.APIMiddleware()...))

	if s.keys != nil {
		s.RegisterRouteHandler("GET "+RouteWellKnownJWKS, ChainMiddleware(s.JWKSHandler(), s.APIMiddleware()...))
	}
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
}

// preflightHandler is only reached when CorsMiddleware lets an OPTIONS request through
func preflightHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
