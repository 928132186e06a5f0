package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/codeclash/codeclash-server/internal/auth"
	"github.com/codeclash/codeclash-server/internal/config"
	"github.com/codeclash/codeclash-server/internal/core"
	"github.com/codeclash/codeclash-server/internal/matchmaking"
	"github.com/codeclash/codeclash-server/internal/problems"
	"github.com/codeclash/codeclash-server/internal/store"
	"github.com/codeclash/codeclash-server/internal/store/sqlite"
	transporthttp "github.com/codeclash/codeclash-server/internal/transport/http"
)

// App wires together the store, room hub, matchmaking queue and HTTP transport.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	queue           *matchmaking.Queue
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with the provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	catalog, err := problems.FromFile(cfg.ProblemsPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			_ = st.Close()
			return nil, fmt.Errorf("load problems: %w", err)
		}
		catalog = problems.Builtin()
		logger.Warn().Str("path", cfg.ProblemsPath).Msg("problem catalog not found, using builtin set")
	} else {
		logger.Info().Str("path", cfg.ProblemsPath).Int("count", catalog.Len()).Msg("problem catalog loaded")
	}

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      24 * time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)

	hub := core.NewHub(logger, roomConfig(cfg), st, catalog)
	queue := matchmaking.New(logger, hub, catalog, queueOptions(cfg))
	server := transporthttp.NewServer(hub, authService, st, queue, *cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		queue:           queue,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.hub.Run(ctx)
	go a.queue.Run(ctx)

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

func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}

func roomConfig(cfg *config.Config) core.RoomConfig {
	rc := core.DefaultRoomConfig()
	if cfg.Rooms.PairCapacity > 0 {
		rc.PairCapacity = cfg.Rooms.PairCapacity
	}
	if cfg.Rooms.ChatLogCap > 0 {
		rc.ChatLogCap = cfg.Rooms.ChatLogCap
	}
	if cfg.Rooms.GraceWindow > 0 {
		rc.GraceWindow = cfg.Rooms.GraceWindow
	}
	if cfg.Rooms.IdleTTL > 0 {
		rc.IdleTTL = cfg.Rooms.IdleTTL
	}
	return rc
}

func queueOptions(cfg *config.Config) matchmaking.Options {
	opts := matchmaking.DefaultOptions()
	if cfg.Match.Tick > 0 {
		opts.Tick = cfg.Match.Tick
	}
	if cfg.Match.BaseBand > 0 {
		opts.BaseBand = cfg.Match.BaseBand
	}
	if cfg.Match.WidenStep > 0 {
		opts.WidenStep = cfg.Match.WidenStep
	}
	if cfg.Match.WidenInterval > 0 {
		opts.WidenInterval = cfg.Match.WidenInterval
	}
	if cfg.Match.EntryTTL > 0 {
		opts.EntryTTL = cfg.Match.EntryTTL
	}
	return opts
}
