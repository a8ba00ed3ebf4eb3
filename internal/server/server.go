// Package server provides HTTP server wiring and lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ezeehealth/clinicportal-go/internal/cache"
	"github.com/ezeehealth/clinicportal-go/internal/config"
	"github.com/ezeehealth/clinicportal-go/internal/identity"
	"github.com/ezeehealth/clinicportal-go/internal/onboarding"
	"github.com/ezeehealth/clinicportal-go/internal/otp"
	"github.com/ezeehealth/clinicportal-go/internal/ratelimit"
	"github.com/ezeehealth/clinicportal-go/internal/storage"
	"github.com/ezeehealth/clinicportal-go/internal/store"
	"github.com/ezeehealth/clinicportal-go/internal/upload"
)

var (
	ErrMissingDep = errors.New("missing required dependency")
)

// RepoProvider is the accessor surface concrete store drivers expose on
// top of store.Driver. main wires repos out of it.
type RepoProvider interface {
	store.Driver
	Invitations() onboarding.InvitationRepo
	Accounts() onboarding.AccountRepo
	UploadLinks() upload.LinkRepo
	Documents() upload.DocumentRepo
}

// Deps holds all server dependencies.
type Deps struct {
	// Required: persistence repos
	Invitations onboarding.InvitationRepo
	Accounts    onboarding.AccountRepo
	UploadLinks upload.LinkRepo
	Documents   upload.DocumentRepo

	// Required: document blob storage
	Blobs storage.BlobStore

	// Required: cache backend for OTP challenges and rate limiting
	Cache cache.CacheWithCounter

	// Required: password hashing
	UserAuth *identity.UserAuth

	// Required: OTP delivery
	Sender otp.Sender
}

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg               *config.Config
	httpServer        *http.Server
	logger            *slog.Logger
	trustedProxies    *TrustedProxies
	limiter           *ratelimit.Limiter
	onboardingHandler *onboarding.Handler
	uploadHandler     *upload.Handler
}

// New creates a new Server with the given configuration.
// Returns an error if required dependencies are missing.
func New(cfg *config.Config, logger *slog.Logger, deps *Deps) (*Server, error) {
	// Fail fast: validate required dependencies
	if err := validateDeps(deps); err != nil {
		return nil, err
	}

	policy := identity.PasswordPolicy{MinLength: cfg.Auth.PasswordMinLength}
	if policy.MinLength <= 0 {
		policy = identity.DefaultPasswordPolicy()
	}

	challenges := otp.NewChallenges(
		deps.Cache,
		deps.Sender,
		time.Duration(cfg.OTP.ExpirySeconds)*time.Second,
		cfg.OTP.MaxAttempts,
	)

	onboardingEngine := onboarding.NewEngine(
		deps.Invitations,
		deps.Accounts,
		deps.UserAuth,
		policy,
		challenges,
	)
	uploadEngine := upload.NewEngine(deps.UploadLinks, deps.Documents, deps.Blobs)

	// Trusted proxy handling for X-Forwarded-* header processing
	trustedProxies := NewTrustedProxies(cfg.Server.TrustedProxies)

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(deps.Cache, &ratelimit.Config{
			RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
			Window:            time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
			KeyPrefix:         "ratelimit:",
		})
	}

	s := &Server{
		cfg:               cfg,
		logger:            logger,
		trustedProxies:    trustedProxies,
		limiter:           limiter,
		onboardingHandler: onboarding.NewHandler(onboardingEngine),
		uploadHandler:     upload.NewHandler(uploadEngine),
	}

	router := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the configured router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server. It blocks until the server is shut down.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting server",
		"addr", s.cfg.ListenAddr,
		"external_origin", s.cfg.ExternalOrigin,
		"tls_mode", s.cfg.TLS.Mode,
	)

	switch s.cfg.TLS.Mode {
	case "off":
		return s.httpServer.ListenAndServe()

	case "static", "selfsigned":
		tlsManager := NewTLSManager(&s.cfg.TLS, s.logger)
		hostname := extractHostname(s.cfg.ExternalOrigin)
		tlsConfig, err := tlsManager.GetTLSConfig(hostname)
		if err != nil {
			return fmt.Errorf("failed to configure TLS: %w", err)
		}
		if tlsConfig == nil {
			return fmt.Errorf("TLS config is nil for mode %s", s.cfg.TLS.Mode)
		}

		s.httpServer.TLSConfig = tlsConfig
		s.logger.Info("starting server with TLS", "mode", s.cfg.TLS.Mode)

		// Certs live in TLSConfig.Certificates, so the file arguments stay empty
		return s.httpServer.ListenAndServeTLS("", "")

	case "acme":
		return s.startACME(ctx)

	default:
		return fmt.Errorf("%w: %s", ErrInvalidTLSMode, s.cfg.TLS.Mode)
	}
}

// startACME obtains a certificate via ACME and serves HTTPS. A plain
// HTTP listener answers HTTP-01 challenges and redirects everything
// else to the HTTPS origin.
func (s *Server) startACME(ctx context.Context) error {
	acmeCfg := s.cfg.TLS.ACME
	if acmeCfg.Domain == "" {
		acmeCfg.Domain = extractHostname(s.cfg.ExternalOrigin)
	}

	manager := NewACMEManager(&acmeCfg, s.logger, nil)

	httpAddr := fmt.Sprintf(":%d", s.cfg.TLS.HTTPPort)
	challengeSrv := &http.Server{
		Addr:         httpAddr,
		Handler:      s.challengeOrRedirect(manager),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := challengeSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("acme challenge listener", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		challengeSrv.Shutdown(shutdownCtx)
	}()

	if err := manager.Init(ctx); err != nil {
		return fmt.Errorf("acme initialization: %w", err)
	}

	s.httpServer.TLSConfig = manager.GetTLSConfig()
	s.logger.Info("starting server with ACME TLS", "domain", acmeCfg.Domain)
	return s.httpServer.ListenAndServeTLS("", "")
}

// challengeOrRedirect serves ACME HTTP-01 responses and redirects any
// other plain-HTTP request to the external origin.
func (s *Server) challengeOrRedirect(manager *ACMEManager) http.Handler {
	challenge := manager.ChallengeHandler()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isACMEChallengePath(r.URL.Path) {
			challenge.ServeHTTP(w, r)
			return
		}
		http.Redirect(w, r, s.cfg.ExternalOrigin+r.URL.RequestURI(), http.StatusMovedPermanently)
	})
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.httpServer.Shutdown(ctx)
}

// extractHostname extracts just the hostname from an external origin URL.
// TLS certificate generation needs the hostname without scheme or port.
func extractHostname(externalOrigin string) string {
	host := externalOrigin
	if idx := len("https://"); len(host) > idx && host[:idx] == "https://" {
		host = host[idx:]
	} else if idx := len("http://"); len(host) > idx && host[:idx] == "http://" {
		host = host[idx:]
	}
	if len(host) > 0 && host[len(host)-1] == '/' {
		host = host[:len(host)-1]
	}
	// Remove port if present
	for i := len(host) - 1; i >= 0; i-- {
		if host[i] == ':' {
			return host[:i]
		}
		if host[i] == ']' {
			// IPv6 address like [::1]:8080
			break
		}
	}
	return host
}

// validateDeps checks that all required dependencies are provided.
func validateDeps(deps *Deps) error {
	if deps == nil {
		return errors.New("deps is nil")
	}
	if deps.Invitations == nil {
		return fmt.Errorf("%w: Invitations", ErrMissingDep)
	}
	if deps.Accounts == nil {
		return fmt.Errorf("%w: Accounts", ErrMissingDep)
	}
	if deps.UploadLinks == nil {
		return fmt.Errorf("%w: UploadLinks", ErrMissingDep)
	}
	if deps.Documents == nil {
		return fmt.Errorf("%w: Documents", ErrMissingDep)
	}
	if deps.Blobs == nil {
		return fmt.Errorf("%w: Blobs", ErrMissingDep)
	}
	if deps.Cache == nil {
		return fmt.Errorf("%w: Cache", ErrMissingDep)
	}
	if deps.UserAuth == nil {
		return fmt.Errorf("%w: UserAuth", ErrMissingDep)
	}
	if deps.Sender == nil {
		return fmt.Errorf("%w: Sender", ErrMissingDep)
	}
	return nil
}
