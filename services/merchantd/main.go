package merchantd

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dltpays/observability/logging"
	"dltpays/observability/otel"
)

// version is stamped by the release build via -ldflags.
var version = "dev"

// Main is the merchantd entrypoint.
func Main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config/merchantd.yaml", "path to the merchantd config file")
	flag.Parse()

	env := os.Getenv("DLTPAYS_ENV")
	if env == "" {
		env = "development"
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		logging.Setup("merchantd", env, logging.Options{}).Error("load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup("merchantd", env, logging.Options{
		FilePath:   cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		shutdown, err := otel.Init(ctx, otel.Config{
			ServiceName: "merchantd",
			Version:     version,
			Environment: env,
			Endpoint:    endpoint,
			Insecure:    os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true",
			Headers:     otel.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
			Traces:      true,
			Metrics:     true,
		})
		if err != nil {
			logger.Error("init telemetry", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown", "error", err)
			}
		}()
	}

	store, err := OpenSettingsStore(cfg.Database)
	if err != nil {
		logger.Error("open settings store", "error", err)
		os.Exit(1)
	}

	commerce := NewHTTPCommerceClient(cfg.Commerce)
	svc := NewService(store, commerce, cfg.Poll, cfg.AdminURL, logger)

	auth, err := NewAuthenticator(cfg.Auth.JWTSecret)
	if err != nil {
		logger.Error("init authenticator", "error", err)
		os.Exit(1)
	}

	server := NewServer(svc, auth, cfg.RateLimit, logger)
	defer server.Close()
	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Xaman handshake waits may poll for several minutes.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("merchantd listening", "addr", cfg.ListenAddress, "testnet", cfg.Testnet)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("http server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	logger.Info("merchantd stopped")
}
