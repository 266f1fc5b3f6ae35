package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPollTimeout = time.Second
	defaultJobTimeout  = 5 * time.Minute
	retryBackoff       = time.Second
	queuesKey          = "queues"
)

// QueueKey is the Redis list holding pending jobs for queue
func QueueKey(queue string) string {
	return "queue:" + queue
}

// DeadKey is the Redis list holding failed jobs for queue
func DeadKey(queue string) string {
	return QueueKey(queue) + ":dead"
}

// RedisQueue pushes jobs onto a Redis list and pops them with a pool of
// workers. Jobs that fail, panic or name an unknown class are moved to the
// dead list with the error attached.
type RedisQueue struct {
	client      *redis.Client
	registry    *Registry
	logger      *zap.Logger
	queue       string
	concurrency int
	pollTimeout time.Duration
	jobTimeout  time.Duration

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}

	processed atomic.Uint64
	failed    atomic.Uint64
}

// Stats is a snapshot of queue activity
type Stats struct {
	Queued    int64  `json:"queued"`
	Dead      int64  `json:"dead"`
	Processed uint64 `json:"processed"`
	Failed    uint64 `json:"failed"`
}

// NewRedisQueue parses connectionURL and creates a client. No connection is
// made until the first command.
func NewRedisQueue(connectionURL, queue string, concurrency int, registry *Registry, logger *zap.Logger) (*RedisQueue, error) {
	opts, err := redis.ParseURL(connectionURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis job queue url: %w", err)
	}
	return NewRedisQueueFromClient(redis.NewClient(opts), queue, concurrency, registry, logger), nil
}

// NewRedisQueueFromClient wraps an existing client
func NewRedisQueueFromClient(client *redis.Client, queue string, concurrency int, registry *Registry, logger *zap.Logger) *RedisQueue {
	if concurrency < 1 {
		concurrency = 1
	}
	return &RedisQueue{
		client:      client,
		registry:    registry,
		logger:      logger,
		queue:       queue,
		concurrency: concurrency,
		pollTimeout: defaultPollTimeout,
		jobTimeout:  defaultJobTimeout,
	}
}

func (q *RedisQueue) Name() string { return "redis" }

// Enqueue pushes the job and returns without waiting for it to run.
// Workers need not be running in this process.
func (q *RedisQueue) Enqueue(ctx context.Context, class string, args any) (*Job, error) {
	if _, ok := q.registry.Lookup(class); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClass, class)
	}

	job, err := newJob(class, q.queue, args)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job %s: %w", job.ID, err)
	}

	pipe := q.client.TxPipeline()
	pipe.SAdd(ctx, queuesKey, q.queue)
	pipe.LPush(ctx, QueueKey(q.queue), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to enqueue %s: %w", class, err)
	}

	q.logger.Debug("job enqueued",
		zap.String("jid", job.ID),
		zap.String("class", job.Class),
		zap.String("queue", q.queue))
	return job, nil
}

// Start launches the workers. They run until Stop is called or ctx is done.
func (q *RedisQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < q.concurrency; i++ {
		id := i
		g.Go(func() error {
			q.worker(gctx, id)
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	q.cancel = cancel
	q.done = done
	q.started = true

	q.logger.Info("started job workers",
		zap.String("queue", q.queue),
		zap.Int("concurrency", q.concurrency))
	return nil
}

// Stop signals the workers, waits up to timeout for running jobs to finish
// and closes the client.
func (q *RedisQueue) Stop(timeout time.Duration) error {
	q.mu.Lock()
	started, cancel, done := q.started, q.cancel, q.done
	q.started = false
	q.mu.Unlock()

	var stopErr error
	if started {
		q.logger.Info("stopping job workers", zap.String("queue", q.queue))
		cancel()

		select {
		case <-done:
			q.logger.Info("job workers stopped gracefully")
		case <-time.After(timeout):
			stopErr = fmt.Errorf("job workers stop timeout after %v", timeout)
		}
	}

	if err := q.client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return multierr.Append(stopErr, err)
	}
	return stopErr
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Stats reports list lengths and the counters of this process's workers
func (q *RedisQueue) Stats(ctx context.Context) (Stats, error) {
	queued, err := q.client.LLen(ctx, QueueKey(q.queue)).Result()
	if err != nil {
		return Stats{}, err
	}
	dead, err := q.client.LLen(ctx, DeadKey(q.queue)).Result()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Queued:    queued,
		Dead:      dead,
		Processed: q.processed.Load(),
		Failed:    q.failed.Load(),
	}, nil
}

func (q *RedisQueue) worker(ctx context.Context, id int) {
	q.logger.Debug("job worker started", zap.Int("worker_id", id))
	defer q.logger.Debug("job worker stopped", zap.Int("worker_id", id))

	key := QueueKey(q.queue)
	for ctx.Err() == nil {
		res, err := q.client.BRPop(ctx, q.pollTimeout, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.logger.Warn("failed to pop job", zap.Int("worker_id", id), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryBackoff):
			}
			continue
		}

		// A popped job runs to completion even when shutdown has begun
		jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), q.jobTimeout)
		q.process(jobCtx, id, res[1])
		cancel()
	}
}

func (q *RedisQueue) process(ctx context.Context, workerID int, payload string) {
	var job Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		q.failed.Add(1)
		q.logger.Error("discarding malformed job", zap.Int("worker_id", workerID), zap.Error(err))
		q.bury(ctx, []byte(payload))
		return
	}

	logger := q.logger.With(
		zap.Int("worker_id", workerID),
		zap.String("jid", job.ID),
		zap.String("class", job.Class))

	handler, ok := q.registry.Lookup(job.Class)
	if !ok {
		q.fail(ctx, logger, &job, fmt.Errorf("%w: %s", ErrUnknownClass, job.Class))
		return
	}

	start := time.Now()
	if err := perform(ctx, handler, &job); err != nil {
		q.fail(ctx, logger, &job, err)
		return
	}

	q.processed.Add(1)
	logger.Info("job performed", zap.Duration("duration", time.Since(start)))
}

func (q *RedisQueue) fail(ctx context.Context, logger *zap.Logger, job *Job, cause error) {
	q.failed.Add(1)
	logger.Error("job failed", zap.Error(cause))

	now := time.Now().UTC()
	job.ErrorMessage = cause.Error()
	job.FailedAt = &now

	payload, err := json.Marshal(job)
	if err != nil {
		logger.Error("failed to encode dead job", zap.Error(err))
		return
	}
	q.bury(ctx, payload)
}

func (q *RedisQueue) bury(ctx context.Context, payload []byte) {
	if err := q.client.LPush(ctx, DeadKey(q.queue), payload).Err(); err != nil {
		q.logger.Error("failed to move job to dead list", zap.Error(err))
	}
}
