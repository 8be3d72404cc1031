package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/avolkov/linechat-server/internal/chat"
	"github.com/avolkov/linechat-server/internal/config"
	"github.com/avolkov/linechat-server/internal/store"
	"github.com/avolkov/linechat-server/internal/store/file"
	"github.com/avolkov/linechat-server/internal/store/sqlite"
	"github.com/avolkov/linechat-server/internal/transport/tcp"
)

// App wires together core and transport layers.
type App struct {
	server          *tcp.Server
	store           store.Store
	shutdownTimeout time.Duration
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := OpenStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("backend", cfg.Store.Backend).Msg("credential store initialized")

	history := chat.NewHistory(cfg.HistoryLimit)
	registry := chat.NewRegistry(history, logger)
	router := chat.NewRouter(registry, logger)
	server := tcp.NewServer(cfg.Addr, registry, history, router, st, logger)

	return &App{
		server:          server,
		store:           st,
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             logger,
	}, nil
}

// OpenStore opens the credential store the configuration selects.
func OpenStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "", "file":
		return file.New(cfg.Store.UsersFile)
	case "sqlite":
		return sqlite.New(cfg.Store.DatabasePath)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// Run starts the TCP server and blocks until context cancellation or a
// fatal listener error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		serverErr <- a.server.ListenAndServe(ctx)
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes the credential store and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
