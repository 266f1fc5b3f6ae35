package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrDisabled is returned by Enqueue when the job queue backend is none
	ErrDisabled = errors.New("job queue disabled")
	// ErrUnknownClass is returned for a class with no registered handler
	ErrUnknownClass = errors.New("unknown job class")
	// ErrAlreadyStarted is returned by Start on a running queue
	ErrAlreadyStarted = errors.New("job queue already started")
)

// Job is a unit of background work
type Job struct {
	ID           string          `json:"jid"`
	Class        string          `json:"class"`
	Queue        string          `json:"queue"`
	Args         json.RawMessage `json:"args"`
	EnqueuedAt   time.Time       `json:"enqueued_at"`
	ErrorMessage string          `json:"error_message,omitempty"`
	FailedAt     *time.Time      `json:"failed_at,omitempty"`
}

// Bind decodes the job arguments into v
func (j *Job) Bind(v any) error {
	if len(j.Args) == 0 {
		return nil
	}
	if err := json.Unmarshal(j.Args, v); err != nil {
		return fmt.Errorf("job %s (%s): invalid args: %w", j.ID, j.Class, err)
	}
	return nil
}

// Handler performs a job. Returning an error marks the job as failed.
type Handler func(ctx context.Context, job *Job) error

// Queue accepts jobs and, for asynchronous adapters, runs workers
type Queue interface {
	Name() string
	Enqueue(ctx context.Context, class string, args any) (*Job, error)
	// Start launches workers; a no-op for synchronous adapters
	Start(ctx context.Context) error
	// Stop waits up to timeout for running jobs and releases connections.
	// It is safe to call on a queue that was never started.
	Stop(timeout time.Duration) error
	Ping(ctx context.Context) error
}

func newJob(class, queue string, args any) (*Job, error) {
	if class == "" {
		return nil, fmt.Errorf("%w: empty class", ErrUnknownClass)
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode args for %s: %w", class, err)
	}

	return &Job{
		ID:         uuid.NewString(),
		Class:      class,
		Queue:      queue,
		Args:       raw,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// perform runs handler and turns a panic into an error
func perform(ctx context.Context, handler Handler, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s (%s) panicked: %v", job.ID, job.Class, r)
		}
	}()
	return handler(ctx, job)
}
