// Package main is the entrypoint for the clinicportal-go server.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ezeehealth/clinicportal-go/internal/cache"
	"github.com/ezeehealth/clinicportal-go/internal/config"
	"github.com/ezeehealth/clinicportal-go/internal/httpclient"
	"github.com/ezeehealth/clinicportal-go/internal/identity"
	"github.com/ezeehealth/clinicportal-go/internal/otp"
	"github.com/ezeehealth/clinicportal-go/internal/server"
	"github.com/ezeehealth/clinicportal-go/internal/storage"
	"github.com/ezeehealth/clinicportal-go/internal/store"

	// Register cache and store drivers
	_ "github.com/ezeehealth/clinicportal-go/internal/cache/loader"
	_ "github.com/ezeehealth/clinicportal-go/internal/store/loader"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	modeFlag := flag.String("mode", "", "Operating mode: prod or dev (overrides config)")
	listenAddr := flag.String("listen", "", "Listen address (overrides config)")
	externalOrigin := flag.String("external-origin", "", "External origin (overrides config)")
	tlsMode := flag.String("tls-mode", "", "TLS mode: off, static, selfsigned, or acme (overrides config)")
	ssrfMode := flag.String("ssrf-mode", "", "SSRF protection mode: strict or off (overrides config)")
	storeDriver := flag.String("store-driver", "", "Store driver: sqlite or memory (overrides config)")
	dataDir := flag.String("data-dir", "", "Data directory for the sqlite store (overrides config)")
	cacheDriver := flag.String("cache-driver", "", "Cache driver: memory or valkey (overrides config)")
	otpProvider := flag.String("otp-provider", "", "OTP provider: msg91 or log (overrides config)")
	loggingLevel := flag.String("logging-level", "", "Log level: debug, info, warn, error (overrides config)")
	flag.Parse()

	// Bootstrap logger for config loading errors (uses default level)
	bootstrapLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Load config with precedence: mode preset -> TOML file -> CLI flags
	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: *configPath,
		ModeFlag:   *modeFlag,
		FlagOverrides: config.FlagOverrides{
			ListenAddr:     listenAddr,
			ExternalOrigin: externalOrigin,
			TLSMode:        tlsMode,
			SSRFMode:       ssrfMode,
			StoreDriver:    storeDriver,
			DataDir:        dataDir,
			CacheDriver:    cacheDriver,
			OTPProvider:    otpProvider,
			LogLevel:       loggingLevel,
		},
		Logger: bootstrapLogger,
	})
	if err != nil {
		bootstrapLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Create logger with configured level
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Log effective config with secrets redacted
	logger.Info("effective configuration", "config", cfg.Redacted())

	// Open the persistence store
	driver, err := store.New(&store.DriverConfig{
		Driver:  cfg.Store.Driver,
		DataDir: cfg.Store.DataDir,
	})
	if err != nil {
		logger.Error("failed to create store", "error", err)
		os.Exit(1)
	}
	if err := driver.Init(context.Background()); err != nil {
		logger.Error("failed to initialize store", "driver", driver.Name(), "error", err)
		os.Exit(1)
	}
	defer driver.Close()

	repos, ok := driver.(server.RepoProvider)
	if !ok {
		logger.Error("store driver does not provide repositories", "driver", driver.Name())
		os.Exit(1)
	}
	logger.Info("store ready", "driver", driver.Name())

	// Document blob storage on disk
	blobs, err := storage.NewDiskStore(cfg.Storage.DocumentsDir)
	if err != nil {
		logger.Error("failed to open document storage", "dir", cfg.Storage.DocumentsDir, "error", err)
		os.Exit(1)
	}

	// Create cache (defaults to in-memory if not configured)
	// Passes driver-specific config from the [cache.drivers.<driver>] section
	cacheName := cfg.Cache.Driver
	if cacheName == "" {
		cacheName = "memory"
	}
	var cacheConfig map[string]any
	if raw, ok := cfg.Cache.Drivers[cacheName]; ok {
		if m, ok := raw.(map[string]any); ok {
			cacheConfig = m
		}
	}
	cacheInstance, err := cache.New(cacheName, cacheConfig)
	if err != nil {
		logger.Error("failed to create cache", "error", err)
		os.Exit(1)
	}
	defer cacheInstance.Close()

	// OTP delivery
	var sender otp.Sender
	switch cfg.OTP.Provider {
	case "msg91":
		if cfg.OTP.AuthKey == "" || cfg.OTP.TemplateID == "" {
			logger.Warn("msg91 provider selected without auth_key or template_id; sends will fail")
		}
		httpClient := httpclient.New(&cfg.OutboundHTTP)
		sender = otp.NewMSG91Sender(httpClient, otp.MSG91Options{
			AuthKey:     cfg.OTP.AuthKey,
			TemplateID:  cfg.OTP.TemplateID,
			CountryCode: cfg.OTP.CountryCode,
		})
	default:
		sender = otp.NewLogSender(logger)
	}

	userAuth := identity.NewUserAuth(cfg.Auth.BcryptCost)

	deps := &server.Deps{
		Invitations: repos.Invitations(),
		Accounts:    repos.Accounts(),
		UploadLinks: repos.UploadLinks(),
		Documents:   repos.Documents(),
		Blobs:       blobs,
		Cache:       cacheInstance,
		UserAuth:    userAuth,
		Sender:      sender,
	}

	// Create and start server
	srv, err := server.New(cfg, logger, deps)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("server started, press Ctrl+C to stop")

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("shutdown signal received")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
