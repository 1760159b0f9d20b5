// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package server wires the accounts API together and runs it.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/go-accounts/internal/activator"
	"codeberg.org/oliverandrich/go-accounts/internal/config"
	"codeberg.org/oliverandrich/go-accounts/internal/database"
	"codeberg.org/oliverandrich/go-accounts/internal/handlers"
	"codeberg.org/oliverandrich/go-accounts/internal/i18n"
	"codeberg.org/oliverandrich/go-accounts/internal/repository"
	authsvc "codeberg.org/oliverandrich/go-accounts/internal/services/auth"
	"codeberg.org/oliverandrich/go-accounts/internal/services/email"
	"codeberg.org/oliverandrich/go-accounts/internal/services/session"
	"codeberg.org/oliverandrich/go-accounts/internal/signing"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
)

// Deps are the collaborators the API is built from.
type Deps struct {
	Config      *config.Config
	Repo        *repository.Repository
	Signer      activator.TokenSigner
	Mailer      activator.Mailer
	Logger      *slog.Logger
	AuthOptions []authsvc.Option
}

// New builds the echo instance serving the API.
func New(d Deps) (*echo.Echo, error) {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	svc, err := newAuthService(d.Config, d.Repo, d.Signer, d.Mailer, d.AuthOptions...)
	if err != nil {
		return nil, err
	}

	sessions, err := session.NewManager(&d.Config.Session, secureCookies(d.Config))
	if err != nil {
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handlers.ErrorHandler

	setupMiddleware(e, d.Config, d.Logger, sessions, d.Repo)
	setupRoutes(e, handlers.New(d.Repo), handlers.NewAuth(svc, sessions))

	return e, nil
}

func newAuthService(cfg *config.Config, repo *repository.Repository, signer activator.TokenSigner, mailer activator.Mailer, opts ...authsvc.Option) (*authsvc.Service, error) {
	renderer, err := i18n.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to init i18n: %w", err)
	}
	svc, err := authsvc.NewService(repo, signer, renderer, mailer, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth service: %w", err)
	}
	return svc, nil
}

// NewSigner creates the signer for activation and recovery keys. Without a
// configured key a random one is used and outstanding keys die with the
// process.
func NewSigner(cfg *config.SigningConfig) (*signing.Signer, error) {
	var hashKey []byte
	if cfg.Key == "" {
		slog.Warn("signing_key_missing", "hint", "activation links stop working on restart")
		hashKey = signing.GenerateKey()
	} else {
		key, err := signing.ParseKey(cfg.Key, "signing key")
		if err != nil {
			return nil, err
		}
		hashKey = key
	}

	var blockKey []byte
	if cfg.BlockKey != "" {
		key, err := signing.ParseKey(cfg.BlockKey, "signing block key")
		if err != nil {
			return nil, err
		}
		blockKey = key
	}

	return signing.New(hashKey, blockKey)
}

func secureCookies(cfg *config.Config) bool {
	return cfg.UseTLS() || strings.HasPrefix(cfg.Server.BaseURL, "https://")
}

// openDatabase loads and validates the configuration and opens the
// database. The caller closes the database.
func openDatabase(cmd *cli.Command) (*config.Config, *slog.Logger, *repository.Repository, error) {
	cfg := config.NewFromCLI(cmd)
	logger := SetupLogger(cfg.Log.Level, cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return cfg, logger, repository.New(db), nil
}

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, repo, err := openDatabase(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := repo.DB().Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"registration_open", cfg.Registration.Open,
		"mail_backend", cfg.Mail.Backend,
	)

	tlsConfig, err := loadTLSConfig(cfg)
	if err != nil {
		return fmt.Errorf("TLS setup failed: %w", err)
	}

	signer, err := NewSigner(&cfg.Signing)
	if err != nil {
		return err
	}
	mailer, err := email.NewSender(&cfg.Mail)
	if err != nil {
		return fmt.Errorf("failed to create mail sender: %w", err)
	}

	e, err := New(Deps{
		Config: cfg,
		Repo:   repo,
		Signer: signer,
		Mailer: mailer,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	if n, countErr := repo.CountUsers(ctx); countErr == nil {
		slog.Info("database ready", "users", n)
	}

	return startWithGracefulShutdown(ctx, e, cfg, tlsConfig)
}

func startWithGracefulShutdown(ctx context.Context, e *echo.Echo, cfg *config.Config, tlsConfig *tls.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("server running", "url", cfg.Server.BaseURL)
		if err := e.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
