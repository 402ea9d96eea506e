// Package cache keeps rendered charts keyed by query so repeated plot requests
// skip the PNG render.
package cache

import (
	"context"
	"errors"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// ChartKey is the cache key for a series' PNG chart. name is the sanitized
// series name, which is also what the file watcher reports.
func ChartKey(name string) string {
	return "plot:" + name
}
