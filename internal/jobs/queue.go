package jobs

import (
	"errors"
	"fmt"

	"github.com/upb/ecs-app/config"
	"go.uber.org/zap"
)

// ErrUnsupportedAdapter is returned by New for an adapter it cannot build
var ErrUnsupportedAdapter = errors.New("unsupported job queue adapter")

// New builds the adapter selected by cfg. Handlers are looked up in
// registry when jobs run, so they may be registered after New returns.
func New(cfg config.JobQueueBackend, registry *Registry, logger *zap.Logger) (Queue, error) {
	var (
		queue Queue
		err   error
	)

	switch cfg.Kind() {
	case config.JobQueueInline:
		queue = NewInlineQueue(registry, cfg.Queue(), logger)
	case config.JobQueueRedis:
		queue, err = NewRedisQueue(cfg.ConnectionURL(), cfg.Queue(), cfg.Concurrency(), registry, logger)
	case config.JobQueueNone:
		queue = NullQueue{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAdapter, cfg.Kind())
	}
	if err != nil {
		return nil, err
	}

	logger.Info("job queue initialized",
		zap.String("adapter", queue.Name()),
		zap.String("backend", cfg.LogString()))
	return queue, nil
}
