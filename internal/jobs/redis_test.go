package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestRedisQueue(t *testing.T, r *Registry, concurrency int) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	q, err := NewRedisQueue("redis://"+mr.Addr()+"/0", "default", concurrency, r, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Stop(5 * time.Second) })
	return q, mr
}

func deadJobs(t *testing.T, mr *miniredis.Miniredis) []Job {
	t.Helper()
	if !mr.Exists(DeadKey("default")) {
		return nil
	}
	raw, err := mr.List(DeadKey("default"))
	require.NoError(t, err)

	jobs := make([]Job, 0, len(raw))
	for _, payload := range raw {
		var job Job
		if err := json.Unmarshal([]byte(payload), &job); err == nil {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

func TestNewRedisQueue_InvalidURL(t *testing.T) {
	_, err := NewRedisQueue("localhost:6379", "default", 1, NewRegistry(), zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestRedisQueue_EnqueuePayload(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("reports.build", noop))
	q, mr := newTestRedisQueue(t, r, 1)

	job, err := q.Enqueue(context.Background(), "reports.build", []int{1, 2})
	require.NoError(t, err)

	items, err := mr.List("queue:default")
	require.NoError(t, err)
	require.Len(t, items, 1)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(items[0]), &payload))
	assert.Equal(t, job.ID, payload["jid"])
	assert.Equal(t, "reports.build", payload["class"])
	assert.Equal(t, "default", payload["queue"])
	assert.Equal(t, []any{1.0, 2.0}, payload["args"])
	assert.Contains(t, payload, "enqueued_at")

	members, err := mr.Members("queues")
	require.NoError(t, err)
	assert.Equal(t, []string{"default"}, members)
}

func TestRedisQueue_EnqueueUnknownClass(t *testing.T) {
	q, mr := newTestRedisQueue(t, NewRegistry(), 1)

	_, err := q.Enqueue(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, ErrUnknownClass)
	assert.False(t, mr.Exists("queue:default"))
}

func TestRedisQueue_WorkersPerformJobs(t *testing.T) {
	r := NewRegistry()
	performed := make(chan string, 10)
	require.NoError(t, r.Register("echo", func(_ context.Context, job *Job) error {
		var s string
		if err := job.Bind(&s); err != nil {
			return err
		}
		performed <- s
		return nil
	}))

	q, _ := newTestRedisQueue(t, r, 3)
	ctx := context.Background()
	require.NoError(t, q.Start(ctx))
	assert.ErrorIs(t, q.Start(ctx), ErrAlreadyStarted)

	for _, s := range []string{"a", "b", "c"} {
		_, err := q.Enqueue(ctx, "echo", s)
		require.NoError(t, err)
	}

	got := map[string]bool{}
	for i := 0; i < 3; i++ {
		select {
		case s := <-performed:
			got[s] = true
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}
	assert.Equal(t, map[string]bool{"a": true, "b": true, "c": true}, got)

	assert.Eventually(t, func() bool {
		stats, err := q.Stats(ctx)
		return err == nil && stats.Processed == 3 && stats.Queued == 0
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, q.Stop(5*time.Second))
}

func TestRedisQueue_FailedJobsGoToDeadList(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("fail", func(context.Context, *Job) error {
		return errors.New("boom")
	}))
	require.NoError(t, r.Register("panic", func(context.Context, *Job) error {
		panic("bad")
	}))

	q, mr := newTestRedisQueue(t, r, 1)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "fail", nil)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, "panic", nil)
	require.NoError(t, err)
	// Pushed by another process that knows a class this one does not
	_, err = mr.Lpush("queue:default", `{"jid":"x1","class":"elsewhere","queue":"default","args":null}`)
	require.NoError(t, err)
	_, err = mr.Lpush("queue:default", `not json`)
	require.NoError(t, err)

	require.NoError(t, q.Start(ctx))

	assert.Eventually(t, func() bool {
		stats, err := q.Stats(ctx)
		return err == nil && stats.Dead == 4
	}, 5*time.Second, 20*time.Millisecond)

	messages := map[string]string{}
	for _, job := range deadJobs(t, mr) {
		messages[job.Class] = job.ErrorMessage
		assert.NotNil(t, job.FailedAt)
	}
	assert.Equal(t, "boom", messages["fail"])
	assert.Contains(t, messages["panic"], "panicked")
	assert.Contains(t, messages["elsewhere"], ErrUnknownClass.Error())

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), stats.Failed)
	assert.Equal(t, uint64(0), stats.Processed)
}

func TestRedisQueue_StopWithoutStart(t *testing.T) {
	q, _ := newTestRedisQueue(t, NewRegistry(), 1)
	assert.NoError(t, q.Stop(time.Second))
	// Stopping twice is harmless
	assert.NoError(t, q.Stop(time.Second))
}

func TestRedisQueue_StopTimeout(t *testing.T) {
	r := NewRegistry()
	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, r.Register("slow", func(context.Context, *Job) error {
		close(started)
		<-release
		return nil
	}))
	defer close(release)

	q, _ := newTestRedisQueue(t, r, 1)
	ctx := context.Background()
	require.NoError(t, q.Start(ctx))
	_, err := q.Enqueue(ctx, "slow", nil)
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job never started")
	}

	err = q.Stop(50 * time.Millisecond)
	assert.ErrorContains(t, err, "stop timeout")
}

func TestRedisQueue_Ping(t *testing.T) {
	q, mr := newTestRedisQueue(t, NewRegistry(), 1)
	ctx := context.Background()

	assert.NoError(t, q.Ping(ctx))
	mr.Close()
	assert.Error(t, q.Ping(ctx))
}
