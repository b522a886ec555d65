package scoreboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	scoreboardservice "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/application"
	"github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/infrastructure/competition"
	scoreboardhandlers "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/infrastructure/handlers"
	"github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/infrastructure/ratelimit"
	scoreboarddb "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/infrastructure/repositories"
	"github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/infrastructure/repositories/migrations"
	"github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/infrastructure/sources/csvarchive"
	"github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/infrastructure/sources/httpsource"
	"github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/infrastructure/sources/jsonarchive"
	"github.com/matthewzring/CyberScores-sub000/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
	"go.opentelemetry.io/otel/trace"
)

const shutdownTimeout = 10 * time.Second

// Module represents the scoreboard module.
type Module struct {
	Source   *scoreboardservice.FallbackSource
	Handlers *scoreboardhandlers.ScoreboardHandlers
	Store    scoreboarddb.Store
	Rules    *competition.Rules

	pubSub     *gochannel.GoChannel
	server     *http.Server
	closers    []io.Closer
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	mu         sync.Mutex
}

// Deps bundles the cross-cutting services the module is built with.
type Deps struct {
	Logger   *slog.Logger
	Tracer   trace.Tracer
	Registry *prometheus.Registry
	// Now anchors relative dates in the round schedule. Defaults to time.Now.
	Now func() time.Time
}

// NewScoreboardModule creates and initializes a new scoreboard module.
func NewScoreboardModule(ctx context.Context, cfg *config.Config, deps Deps) (*Module, error) {
	logger := deps.Logger
	if deps.Now == nil {
		deps.Now = time.Now
	}

	logger.InfoContext(ctx, "scoreboard.NewScoreboardModule initializing")

	m := &Module{logger: logger, Rules: competition.NewRules()}

	// 1. Archive store
	if cfg.NeedsArchiveStore() {
		store, closer, err := OpenArchiveStore(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		m.Store = store
		if closer != nil {
			m.closers = append(m.closers, closer)
		}
	}

	// 2. Competition data
	env, err := LoadEnvironment(cfg, deps.Now())
	if err != nil {
		m.closeResources()
		return nil, err
	}

	// 3. Metrics and events
	var (
		registerer prometheus.Registerer
		gatherer   prometheus.Gatherer
	)
	if deps.Registry != nil {
		registerer, gatherer = deps.Registry, deps.Registry
	}
	metrics := scoreboardservice.NewPrometheusMetrics(registerer, cfg.Observability.MetricsNamespace)
	m.pubSub = gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, watermill.NewSlogLogger(logger))

	// 4. Backends, in priority order
	factories, err := BuildFactories(cfg, env, m.Store, logger)
	if err != nil {
		m.closeResources()
		return nil, err
	}

	source, err := scoreboardservice.NewFallbackSource(factories, fallbackOptions(cfg), logger, deps.Tracer, metrics, m.pubSub)
	if err != nil {
		m.closeResources()
		return nil, fmt.Errorf("failed to create fallback source: %w", err)
	}
	m.Source = source

	// 5. Status API
	m.Handlers = scoreboardhandlers.NewScoreboardHandlers(source, m.Rules, gatherer, logger, deps.Tracer)
	m.server = &http.Server{
		Addr: cfg.HTTP.Address,
		Handler: m.Handlers.Routes(scoreboardhandlers.Options{
			AllowedOrigins:    cfg.HTTP.AllowedOrigins,
			RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
			Burst:             cfg.HTTP.Burst,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return m, nil
}

// Environment holds the competition data shared by every backend.
type Environment struct {
	Rounds     *competition.ScheduleRoundInferrer
	Categories *competition.MapCategoryProvider
}

// LoadEnvironment reads the round schedule and category map. now anchors relative dates.
func LoadEnvironment(cfg *config.Config, now time.Time) (Environment, error) {
	var env Environment

	entries := make([]competition.ScheduleEntry, len(cfg.Competition.Schedule))
	for i, e := range cfg.Competition.Schedule {
		entries[i] = competition.ScheduleEntry{Round: e.Round, Start: e.Start, End: e.End}
	}
	windows, err := competition.BuildSchedule(entries, now)
	if err != nil {
		return env, fmt.Errorf("invalid round schedule: %w", err)
	}
	env.Rounds, err = competition.NewScheduleRoundInferrer(windows)
	if err != nil {
		return env, fmt.Errorf("invalid round schedule: %w", err)
	}

	env.Categories = competition.NewMapCategoryProvider(nil)
	if cfg.Competition.CategoryMap != "" {
		env.Categories, err = competition.LoadCategoryMap(cfg.Competition.CategoryMap)
		if err != nil {
			return env, fmt.Errorf("failed to load category map: %w", err)
		}
	}
	return env, nil
}

// BuildFactories turns the configured sources into backend factories.
// store may be nil when no JSON archive source is configured.
func BuildFactories(cfg *config.Config, env Environment, store scoreboarddb.Store, logger *slog.Logger) ([]scoreboardservice.BackendFactory, error) {
	factories := make([]scoreboardservice.BackendFactory, 0, len(cfg.Sources))
	for i, src := range cfg.Sources {
		switch src.Type {
		case config.SourceHTTP:
			live, err := httpsource.New(src.URL, httpsource.Options{
				RateLimiter: ratelimit.NewTimerRateLimiter(src.RequestInterval, src.Burst),
				Rounds:      env.Rounds,
				Categories:  env.Categories,
				Logger:      logger,
			})
			if err != nil {
				return nil, fmt.Errorf("source %d: %w", i, err)
			}
			factories = append(factories, func(context.Context) (scoreboardservice.Source, error) {
				return live, nil
			})

		case config.SourceJSONArchive:
			if store == nil {
				return nil, fmt.Errorf("source %d: json source requires an archive store", i)
			}
			key := src.ArchiveKey
			factories = append(factories, func(ctx context.Context) (scoreboardservice.Source, error) {
				archive, err := jsonarchive.New(ctx, store, key, logger)
				if err != nil {
					return nil, err
				}
				return archive, nil
			})

		case config.SourceCSVArchive:
			paths := src.Paths
			factories = append(factories, func(ctx context.Context) (scoreboardservice.Source, error) {
				exports, err := csvarchive.Open(ctx, paths, csvarchive.Options{
					Categories: env.Categories,
					Logger:     logger,
				})
				if err != nil {
					return nil, err
				}
				return exports, nil
			})

		default:
			return nil, fmt.Errorf("source %d: unknown type %q", i, src.Type)
		}
	}
	return factories, nil
}

func fallbackOptions(cfg *config.Config) scoreboardservice.FallbackOptions {
	opts := scoreboardservice.FallbackOptions{
		BackendLifespan: cfg.Cache.BackendLifespan,
		CacheOptions: scoreboardservice.CacheOptions{
			MaxCachedTeamDetails:          cfg.Cache.MaxTeamDetails,
			MaxTeamLifespan:               cfg.Cache.TeamLifespan,
			MaxCompleteScoreboardLifespan: cfg.Cache.ScoreboardLifespan,
		},
	}
	if archiveLifespan := cfg.Cache.ArchiveTeamLifespan; archiveLifespan > 0 {
		opts.ConfigureCache = func(_ int, backend scoreboardservice.Source, cache *scoreboardservice.CacheOptions) {
			if !backend.Metadata().IsDynamic {
				cache.MaxTeamLifespan = archiveLifespan
			}
		}
	}
	return opts
}

// OpenArchiveStore connects to the configured archive store. The returned
// closer is nil for stores that hold no connection.
func OpenArchiveStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (scoreboarddb.Store, io.Closer, error) {
	switch cfg.Archive.Store {
	case config.StoreRedis:
		client, err := scoreboarddb.OpenRedis(ctx, cfg.Redis.URL, logger)
		if err != nil {
			return nil, nil, err
		}
		return scoreboarddb.NewRedisStore(client, cfg.Redis.Prefix, cfg.Archive.TTL), client, nil

	case config.StorePostgres:
		db, err := scoreboarddb.OpenPostgres(ctx, cfg.Postgres.DSN, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := runMigrations(ctx, db, logger); err != nil {
			db.Close()
			return nil, nil, err
		}
		return &scoreboarddb.BunStore{DB: db}, db, nil

	case config.StoreFile, "":
		return &scoreboarddb.FileStore{Dir: cfg.Archive.Dir}, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown archive store %q", cfg.Archive.Store)
}

func runMigrations(ctx context.Context, db *bun.DB, logger *slog.Logger) error {
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if !group.IsZero() {
		logger.InfoContext(ctx, "Archive schema migrated", "group", group.String())
	}
	return nil
}

// Run starts the scoreboard module and blocks until ctx ends or the status
// server fails.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	m.logger.InfoContext(ctx, "Starting scoreboard module")

	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancelFunc = cancel
	m.mu.Unlock()
	defer cancel()

	if wg != nil {
		defer wg.Done()
	}

	changes, err := m.pubSub.Subscribe(ctx, scoreboardservice.BackendChangedTopic)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to subscribe to backend changes", "error", err)
	} else {
		go m.logBackendChanges(ctx, changes)
	}

	go func() {
		err := m.Source.ResolveBackend(ctx, scoreboardservice.FullSearch)
		if err != nil && ctx.Err() == nil && !errors.Is(err, scoreboardservice.ErrSourceClosed) {
			m.logger.WarnContext(ctx, "Initial backend resolution failed", "error", err)
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		m.logger.InfoContext(ctx, "Status server listening", "address", m.server.Addr)
		serveErr <- m.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			m.logger.ErrorContext(ctx, "Status server failed", "error", err)
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := m.server.Shutdown(shutdownCtx); err != nil {
		m.logger.Warn("Status server shutdown failed", "error", err)
	}
	m.logger.Info("Scoreboard module goroutine stopped")
}

func (m *Module) logBackendChanges(ctx context.Context, changes <-chan *message.Message) {
	for msg := range changes {
		var payload scoreboardservice.BackendChangedPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			m.logger.WarnContext(ctx, "Malformed backend change event", "message_id", msg.UUID, "error", err)
			msg.Ack()
			continue
		}
		m.logger.InfoContext(ctx, "Scoreboard backend changed",
			"resolution_id", payload.ResolutionID,
			"previous_index", payload.PreviousIndex,
			"index", payload.Index,
			"kind", payload.Kind,
			"round", payload.Round,
		)
		msg.Ack()
	}
}

// Handler exposes the status API without starting a listener.
func (m *Module) Handler() http.Handler {
	return m.server.Handler
}

// Close shuts down the scoreboard module.
func (m *Module) Close() error {
	m.logger.Info("Stopping scoreboard module")

	m.mu.Lock()
	if m.cancelFunc != nil {
		m.cancelFunc()
	}
	m.mu.Unlock()

	var errs []error
	if m.Source != nil {
		if err := m.Source.Close(); err != nil {
			m.logger.Error("Error closing fallback source", "error", err)
			errs = append(errs, fmt.Errorf("error closing fallback source: %w", err))
		}
	}
	if m.pubSub != nil {
		if err := m.pubSub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing event bus: %w", err))
		}
	}
	if err := m.closeResources(); err != nil {
		errs = append(errs, err)
	}

	m.logger.Info("Scoreboard module stopped")
	return errors.Join(errs...)
}

func (m *Module) closeResources() error {
	var errs []error
	for _, c := range m.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.closers = nil
	return errors.Join(errs...)
}
