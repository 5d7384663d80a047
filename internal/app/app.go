package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Will-23-K/chatsphere/internal/auth"
	"github.com/Will-23-K/chatsphere/internal/config"
	"github.com/Will-23-K/chatsphere/internal/core"
	"github.com/Will-23-K/chatsphere/internal/files"
	"github.com/Will-23-K/chatsphere/internal/store"
	"github.com/Will-23-K/chatsphere/internal/store/sqlite"
	transporthttp "github.com/Will-23-K/chatsphere/internal/transport/http"
)

// App wires together core, storage and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
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

	fileService, err := files.NewService(cfg.UploadDir, "/uploads", cfg.MaxUploadBytes)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("init file store: %w", err)
	}

	svc := core.NewService(st, logger, core.Options{
		HistoryLimit: cfg.HistoryLimit,
		MultiRoom:    cfg.MultiRoom,
	})

	if err := seedDefaultRooms(context.Background(), st, cfg.DefaultRooms, logger); err != nil {
		st.Close()
		return nil, fmt.Errorf("seed rooms: %w", err)
	}

	server := transporthttp.NewServer(svc, authService, fileService, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

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

// seedDefaultRooms creates the pre-configured rooms missing from the store.
func seedDefaultRooms(ctx context.Context, st store.Store, rooms []config.DefaultRoom, logger *zerolog.Logger) error {
	for _, r := range rooms {
		name, err := core.NormalizeRoomName(r.Name)
		if err != nil {
			return fmt.Errorf("default room %q: %w", r.Name, err)
		}

		if _, err := st.GetRoomByName(ctx, name); err == nil {
			continue
		}

		_, err = st.CreateRoom(ctx, &store.Room{
			Name:        name,
			Description: r.Description,
			CreatedBy:   core.SystemUser,
			IsDefault:   true,
		})
		if err != nil {
			return fmt.Errorf("create default room %q: %w", name, err)
		}
		logger.Info().Str("room", name).Msg("created default room")
	}
	return nil
}
