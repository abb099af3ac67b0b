// Package factory wires the storage backend, services, workers and HTTP
// router into one application.
package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/mcoot/fairway/internal/api"
	"github.com/mcoot/fairway/internal/api/sse"
	"github.com/mcoot/fairway/internal/archive"
	"github.com/mcoot/fairway/internal/config"
	"github.com/mcoot/fairway/internal/dependencies/clock"
	"github.com/mcoot/fairway/internal/dependencies/random"
	"github.com/mcoot/fairway/internal/events"
	"github.com/mcoot/fairway/internal/services/auth"
	"github.com/mcoot/fairway/internal/services/completion"
	"github.com/mcoot/fairway/internal/services/invite"
	"github.com/mcoot/fairway/internal/services/match"
	"github.com/mcoot/fairway/internal/services/points"
	"github.com/mcoot/fairway/internal/services/scoring"
	"github.com/mcoot/fairway/internal/services/user"
	"github.com/mcoot/fairway/internal/storage"
	"github.com/mcoot/fairway/internal/storage/memory"
	"github.com/mcoot/fairway/internal/storage/postgres"
	redisstorage "github.com/mcoot/fairway/internal/storage/redis"
	"github.com/mcoot/fairway/internal/workers"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Backend

	// External dependencies
	Clock    clock.Clock
	Random   random.Random
	Archiver completion.Archiver

	// Services
	AuthService     *auth.Service
	UserService     *user.Service
	ScoringService  *scoring.Service
	Reconciler      *completion.Reconciler
	MatchController *match.Controller
	InviteService   *invite.Service
	PointsProcessor *points.Processor
	PointsService   *points.Service

	// Real-time delivery
	HubManager *sse.HubManager
	Publisher  events.Publisher

	// Background workers
	AwardWorker *workers.AwardWorker
	Sweeper     *workers.Sweeper

	cfg    config.Config
	logger *slog.Logger
}

// New creates the application described by cfg. The caller owns the
// returned App and must Close it.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	clk := clock.New()
	store, err := openStorage(cfg, clk)
	if err != nil {
		return nil, err
	}

	var archiver completion.Archiver = archive.NopArchiver{}
	if cfg.Archive.Enabled() {
		s3Archiver, err := archive.NewS3Archiver(ctx, cfg.Archive, logger)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		archiver = s3Archiver
	}

	app, err := newWithDependencies(dependencies{
		store:    store,
		archiver: archiver,
		clock:    clk,
		random:   random.New(),
	}, cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return app, nil
}

func openStorage(cfg config.Config, clk clock.Clock) (storage.Backend, error) {
	switch cfg.Storage {
	case "", config.StorageMemory:
		return memory.New(memory.WithClock(clk)), nil
	case config.StorageRedis:
		store, err := redisstorage.New(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to open redis storage: %w", err)
		}
		return store, nil
	case config.StoragePostgres:
		store, err := postgres.New(cfg.Postgres, postgres.WithClock(clk))
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres storage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("invalid storage %q: must be memory, redis or postgres", cfg.Storage)
	}
}

// dependencies are the swappable inputs of an App
type dependencies struct {
	store    storage.Backend
	archiver completion.Archiver
	clock    clock.Clock
	random   random.Random
	// extra receive every event alongside the SSE broadcaster
	extra []events.Publisher
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(deps dependencies, cfg config.Config, logger *slog.Logger) (*App, error) {
	hubManager := sse.NewHubManager(logger)
	publisher := append(events.Multi{sse.NewBroadcaster(hubManager, logger)}, deps.extra...)

	authService := auth.New(deps.clock, cfg.Auth)
	userService := user.New(deps.store, deps.clock, logger)
	scoringService := scoring.New(deps.store, cfg.Rules, deps.clock, publisher, logger)
	reconciler := completion.NewReconciler(deps.store, cfg.Rules, deps.archiver, deps.clock, deps.random, logger)
	matchController := match.NewController(deps.store, reconciler, deps.clock, deps.random, publisher, logger)
	inviteService := invite.New(deps.store, deps.clock, publisher, cfg.Invite, logger)
	processor := points.NewProcessor(deps.store, deps.clock, deps.random, publisher, cfg.Points, logger)
	pointsService := points.NewService(deps.store)

	awardWorker := workers.NewAwardWorker(deps.store, processor, cfg.Workers, logger)
	sweeper, err := workers.NewSweeper(deps.store, processor, deps.clock, cfg.Workers, logger)
	if err != nil {
		return nil, err
	}

	return &App{
		Storage:         deps.store,
		Clock:           deps.clock,
		Random:          deps.random,
		Archiver:        deps.archiver,
		AuthService:     authService,
		UserService:     userService,
		ScoringService:  scoringService,
		Reconciler:      reconciler,
		MatchController: matchController,
		InviteService:   inviteService,
		PointsProcessor: processor,
		PointsService:   pointsService,
		HubManager:      hubManager,
		Publisher:       publisher,
		AwardWorker:     awardWorker,
		Sweeper:         sweeper,
		cfg:             cfg,
		logger:          logger,
	}, nil
}

// Router returns the HTTP handler for the API
func (a *App) Router() http.Handler {
	return api.NewRouter(api.RouterConfig{
		Logger:          a.logger,
		Verifier:        a.AuthService,
		MatchController: a.MatchController,
		ScoringService:  a.ScoringService,
		InviteService:   a.InviteService,
		Reconciler:      a.Reconciler,
		PointsService:   a.PointsService,
		UserService:     a.UserService,
		HubManager:      a.HubManager,
		HealthCheck:     a.Storage.Ping,
	})
}

// StartWorkers launches the award worker and schedules the sweep. They run
// until ctx is cancelled or Close is called.
func (a *App) StartWorkers(ctx context.Context) error {
	a.AwardWorker.Start(ctx)
	return a.Sweeper.Start(ctx)
}

// Close stops the workers, disconnects event streams and closes storage
func (a *App) Close() error {
	a.AwardWorker.Stop()
	err := a.Sweeper.Stop()
	a.HubManager.CloseAll()
	return errors.Join(err, a.Storage.Close())
}
