package cache

import (
	"context"
	"time"
)

// NullStore caches nothing: every read misses and writes are discarded
type NullStore struct{}

func (NullStore) Name() string { return "none" }

func (NullStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (NullStore) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (NullStore) Delete(context.Context, string) error { return nil }

func (NullStore) Clear(context.Context) error { return nil }

func (NullStore) Ping(context.Context) error { return nil }

func (NullStore) Close() error { return nil }
