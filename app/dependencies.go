package app

import (
	"context"
	"fmt"
	"time"

	"github.com/upb/ecs-app/config"
	"github.com/upb/ecs-app/internal/cache"
	"github.com/upb/ecs-app/internal/jobs"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	// ClearCacheJob empties the configured cache namespace
	ClearCacheJob = "cache.clear"

	cacheSweepInterval = time.Minute
)

// Dependencies holds the process's shared services. Everything is built
// explicitly by NewDependencies in a fixed order; nothing is initialized on
// first use.
type Dependencies struct {
	// Infrastructure
	Config config.AppConfig
	Logger *zap.Logger

	// Backends
	Cache    cache.Store
	Jobs     jobs.Queue
	Registry *jobs.Registry

	cancel context.CancelFunc
}

// NewDependencies builds the cache, the job registry and the job queue from
// cfg. Redis clients connect lazily, so no network I/O happens here. A
// cancelled ctx stops initialization between steps.
func NewDependencies(ctx context.Context, cfg config.AppConfig, logger *zap.Logger) (*Dependencies, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("dependency initialization cancelled: %w", err)
	}

	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initCache(); err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	if err := deps.initRegistry(); err != nil {
		_ = deps.Cache.Close()
		return nil, fmt.Errorf("failed to initialize job registry: %w", err)
	}

	if err := ctx.Err(); err != nil {
		_ = deps.Cache.Close()
		return nil, fmt.Errorf("dependency initialization cancelled: %w", err)
	}

	if err := deps.initJobs(); err != nil {
		_ = deps.Cache.Close()
		return nil, fmt.Errorf("failed to initialize job queue: %w", err)
	}

	logger.Info("all dependencies initialized successfully",
		zap.String("environment", cfg.Environment()))
	return deps, nil
}

func (d *Dependencies) initCache() error {
	store, err := cache.New(d.Config.Cache(), d.Logger)
	if err != nil {
		return err
	}
	d.Cache = store
	return nil
}

// initRegistry registers the built-in job handlers
func (d *Dependencies) initRegistry() error {
	d.Registry = jobs.NewRegistry()

	return d.Registry.Register(ClearCacheJob, func(ctx context.Context, job *jobs.Job) error {
		if err := d.Cache.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		d.Logger.Info("cache cleared", zap.String("jid", job.ID), zap.String("cache", d.Cache.Name()))
		return nil
	})
}

func (d *Dependencies) initJobs() error {
	queue, err := jobs.New(d.Config.JobQueue(), d.Registry, d.Logger)
	if err != nil {
		return err
	}
	d.Jobs = queue
	return nil
}

// Start launches background work: job workers and, for the memory cache,
// the expired entry sweeper. Both run until Close.
func (d *Dependencies) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if mem, ok := d.Cache.(*cache.MemoryStore); ok {
		go mem.StartCleanupWorker(ctx, cacheSweepInterval)
	}

	if err := d.Jobs.Start(ctx); err != nil {
		cancel()
		return fmt.Errorf("failed to start job queue: %w", err)
	}
	return nil
}

// Close gracefully shuts down all dependencies. The job queue is stopped
// before the cache it may still be using.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	if d.cancel != nil {
		d.cancel()
	}

	var errs error

	if d.Jobs != nil {
		if err := d.Jobs.Stop(shutdownBudget(ctx, d.Config.Server().ShutdownTimeout())); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to stop job queue: %w", err))
		} else {
			d.Logger.Info("job queue stopped")
		}
	}

	if d.Cache != nil {
		if err := d.Cache.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to close cache: %w", err))
		} else {
			d.Logger.Info("cache closed")
		}
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	return errs
}

// shutdownBudget is the time left on ctx, or fallback when ctx has no deadline
func shutdownBudget(ctx context.Context, fallback time.Duration) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left > 0 {
			return left
		}
		return 0
	}
	return fallback
}
