package jobs

import (
	"context"
	"time"
)

// NullQueue refuses every job
type NullQueue struct{}

func (NullQueue) Name() string { return "none" }

func (NullQueue) Enqueue(context.Context, string, any) (*Job, error) { return nil, ErrDisabled }

func (NullQueue) Start(context.Context) error { return nil }

func (NullQueue) Stop(time.Duration) error { return nil }

func (NullQueue) Ping(context.Context) error { return nil }
