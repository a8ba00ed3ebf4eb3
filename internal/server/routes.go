package server

import (
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ezeehealth/clinicportal-go/internal/api"
)

// acmeChallengePrefix is where HTTP-01 challenge responses are served.
const acmeChallengePrefix = "/.well-known/acme-challenge/"

func isACMEChallengePath(path string) bool {
	return strings.HasPrefix(path, acmeChallengePrefix)
}

// setupRoutes creates the chi router with all route groups mounted.
func (s *Server) setupRoutes() chi.Router {
	r := chi.NewRouter()

	// Global middleware stack (order matters for correct logging)
	// RequestID must come first so GetReqID works in the request logger.
	// loggingMiddleware wraps the response writer and Recoverer writes
	// through the wrapper, so the access log captures panic statuses.
	r.Use(middleware.RequestID)
	r.Use(s.requestLoggerMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		// Health endpoint (public, never rate limited)
		r.Get("/healthz", api.HealthHandler)

		// The activation and upload surfaces are unauthenticated by
		// design, so they get the per-client rate limit.
		r.Group(func(r chi.Router) {
			if s.limiter != nil {
				r.Use(s.limiter.Middleware(s.trustedProxies.GetClientIPString))
			}
			r.Mount("/auth", s.onboardingHandler.Routes())
			r.Mount("/document-upload", s.uploadHandler.Routes())
		})
	})

	return r
}
