package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/pixelclasses/chat-server/internal/auth"
	"github.com/pixelclasses/chat-server/internal/chat"
	"github.com/pixelclasses/chat-server/internal/config"
	"github.com/pixelclasses/chat-server/internal/notify"
	"github.com/pixelclasses/chat-server/internal/store"
	"github.com/pixelclasses/chat-server/internal/store/sqlite"
	transporthttp "github.com/pixelclasses/chat-server/internal/transport/http"
)

// App wires together the store, chat core, notification workers, and transport.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	notifier        *notify.Notifier
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret must be configured")
	}

	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}
	authService := auth.NewService(st, jwtConfig)

	hub := chat.NewHub(logger)
	inbox := chat.NewInboxAggregator(st)
	debounce := chat.NewDebouncer(cfg.EmailDebounceWindow)
	notifier := notify.New(st, &notify.LogMailer{Log: logger}, cfg.EmailQueueSize, cfg.EmailWorkers, logger)
	svc := chat.NewService(st, hub, inbox, debounce, notifier, logger)

	server := transporthttp.NewServer(svc, hub, authService, st, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		notifier:        notifier,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the notification workers and the HTTP server, blocking until
// context cancellation or a fatal server error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.notifier.Run(ctx)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
