// Package app wires configuration, storage, the timeline and the session service together.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/scenario-simulator/internal/circuitbreaker"
	"github.com/scenario-simulator/internal/config"
	"github.com/scenario-simulator/internal/logging"
	"github.com/scenario-simulator/internal/retry"
	"github.com/scenario-simulator/internal/service"
	"github.com/scenario-simulator/internal/storage"
	"github.com/scenario-simulator/internal/timeline"
	"github.com/shopspring/decimal"
)

// App holds the long-lived components of a running simulator
type App struct {
	Config     *config.Config
	Definition *config.ScenarioDefinition
	Timeline   *timeline.Timeline
	Sessions   *service.SessionService

	logger  *logging.Logger
	closers []func() error
}

// Options adjusts what New starts
type Options struct {
	// SkipArchive leaves ClickHouse untouched even when enabled in the config
	SkipArchive bool
}

// New loads the scenario definition, builds (or restores) the timeline and
// creates the session service. The caller must Close the returned App.
func New(ctx context.Context, cfg *config.Config, opts Options, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	def, err := config.LoadScenarioDefinition(cfg.Scenario.DefinitionPath)
	if err != nil {
		return nil, err
	}
	def.ApplyTo(cfg)

	a := &App{Config: cfg, Definition: def, logger: logger.WithComponent("app")}

	tl, err := a.loadTimeline(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Timeline = tl

	capital, err := decimal.NewFromString(cfg.Simulation.InitialCapital)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("invalid initial capital %q: %w", cfg.Simulation.InitialCapital, err)
	}

	sessionOpts := service.SessionOptions{
		DefaultCapital: capital,
		MaxSessions:    cfg.Simulation.MaxSessions,
		ExportDir:      cfg.Simulation.ExportDir,
	}
	if cfg.Database.ClickHouse.Enabled && !opts.SkipArchive {
		archive, err := a.openArchive(ctx)
		if err != nil {
			// runs are still exported without the archive
			a.logger.WithError(err).Warn("ClickHouse unavailable, runs will not be archived")
		} else {
			sessionOpts.Archive = archive
		}
	}

	a.Sessions = service.NewSessionService(tl, sessionOpts, logger)

	a.logger.WithFields(map[string]interface{}{
		"scenario":   cfg.Scenario.Name,
		"source":     cfg.Scenario.Source,
		"days":       tl.Len(),
		"funds":      len(tl.FundCodes()),
		"first_date": tl.First().String(),
		"last_date":  tl.Last().String(),
	}).Info("Scenario loaded")

	return a, nil
}

// BuilderConfig derives the timeline builder configuration from a scenario definition
func BuilderConfig(def *config.ScenarioDefinition) timeline.BuilderConfig {
	cfg := timeline.DefaultBuilderConfig()
	if def == nil {
		return cfg
	}
	if def.DomesticIndex != "" {
		cfg.DomesticIndex = def.DomesticIndex
	}
	if def.ForeignIndex != "" {
		cfg.ForeignIndex = def.ForeignIndex
	}
	if len(def.IndexRules) > 0 {
		rules := make([]timeline.IndexNameRule, 0, len(def.IndexRules))
		for _, r := range def.IndexRules {
			rules = append(rules, timeline.IndexNameRule{Contains: r.Contains, Key: r.Key})
		}
		cfg.IndexRules = rules
	}
	if def.PlaceholderDescription != "" {
		cfg.PlaceholderScene = def.PlaceholderDescription
	}
	return cfg
}

// TimelineFingerprint lists the inputs a built timeline depends on besides the
// scenario name, so a changed source or builder setting misses the cache
func TimelineFingerprint(cfg *config.Config, builderCfg timeline.BuilderConfig) ([]string, error) {
	rules, err := json.Marshal(builderCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode builder config: %w", err)
	}

	parts := []string{cfg.Scenario.Source}
	switch cfg.Scenario.Source {
	case config.SourcePostgres:
		pg := cfg.Database.Postgres
		parts = append(parts, pg.Host, pg.Port, pg.Database)
	default:
		path := cfg.Scenario.SQLitePath
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		parts = append(parts, path)
	}
	parts = append(parts, cfg.Scenario.NewsPath, cfg.Scenario.DescriptionPath, string(rules))
	return parts, nil
}

// OpenSource opens the configured series source with connection retries
func OpenSource(ctx context.Context, cfg *config.Config) (timeline.SeriesSource, func() error, error) {
	files := storage.SideFiles{NewsPath: cfg.Scenario.NewsPath, DescriptionPath: cfg.Scenario.DescriptionPath}

	switch cfg.Scenario.Source {
	case config.SourceSQLite:
		src, err := storage.OpenSQLiteSeriesSource(cfg.Scenario.SQLitePath, cfg.Scenario.Name, files)
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil

	case config.SourcePostgres:
		db, err := retry.Connect(ctx, retry.ConnectRetryConfig(), func() (*storage.PostgresDB, error) {
			return storage.NewPostgresDB(&cfg.Database.Postgres)
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		closeDB := func() error {
			db.Close()
			return nil
		}
		return storage.NewPostgresSeriesSource(db, cfg.Scenario.Name, files), closeDB, nil

	default:
		return nil, nil, fmt.Errorf("unknown scenario source %q", cfg.Scenario.Source)
	}
}

// loadTimeline restores the timeline from Redis when caching is enabled, building it otherwise
func (a *App) loadTimeline(ctx context.Context) (*timeline.Timeline, error) {
	cfg := a.Config

	source, closeSource, err := OpenSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeSource)

	builderCfg := BuilderConfig(a.Definition)
	builder := timeline.NewBuilder(source, builderCfg, a.logger)

	var cache timeline.Cache
	key := cfg.Scenario.Name
	if cfg.Cache.Enabled {
		redisCache, err := storage.NewRedisCache(&cfg.Database.Redis)
		if err != nil {
			a.logger.WithError(err).Warn("Redis unavailable, timeline cache disabled")
		} else {
			a.closers = append(a.closers, redisCache.Close)
			tc := storage.NewTimelineCache(redisCache, cfg.Cache.KeyPrefix, cfg.Cache.TTL)
			fingerprint, err := TimelineFingerprint(cfg, builderCfg)
			if err != nil {
				return nil, err
			}
			cache, key = tc, tc.Key(cfg.Scenario.Name, fingerprint...)
		}
	}

	return timeline.LoadOrBuild(ctx, cache, key, builder, a.logger)
}

func (a *App) openArchive(ctx context.Context) (service.RunArchiver, error) {
	db, err := retry.Connect(ctx, retry.ConnectRetryConfig(), func() (*storage.ClickHouseDB, error) {
		return storage.NewClickHouseDB(&a.Config.Database.ClickHouse)
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)

	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("run_archive"), a.logger)
	return service.NewBreakerArchive(storage.NewRunArchive(db), breaker), nil
}

// Close releases every opened connection, newest first
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}
