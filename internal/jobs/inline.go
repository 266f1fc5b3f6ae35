package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// InlineQueue performs every job synchronously inside Enqueue
type InlineQueue struct {
	registry *Registry
	queue    string
	logger   *zap.Logger
}

// NewInlineQueue creates an InlineQueue
func NewInlineQueue(registry *Registry, queue string, logger *zap.Logger) *InlineQueue {
	return &InlineQueue{
		registry: registry,
		queue:    queue,
		logger:   logger,
	}
}

func (q *InlineQueue) Name() string { return "inline" }

// Enqueue runs the job now and returns the handler's error
func (q *InlineQueue) Enqueue(ctx context.Context, class string, args any) (*Job, error) {
	handler, ok := q.registry.Lookup(class)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClass, class)
	}

	job, err := newJob(class, q.queue, args)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if err := perform(ctx, handler, job); err != nil {
		q.logger.Error("inline job failed",
			zap.String("jid", job.ID),
			zap.String("class", job.Class),
			zap.Error(err))
		return job, err
	}

	q.logger.Debug("inline job performed",
		zap.String("jid", job.ID),
		zap.String("class", job.Class),
		zap.Duration("duration", time.Since(start)))
	return job, nil
}

func (q *InlineQueue) Start(context.Context) error { return nil }

func (q *InlineQueue) Stop(time.Duration) error { return nil }

func (q *InlineQueue) Ping(context.Context) error { return nil }
