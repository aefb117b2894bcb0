package redisclients

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("redis key not found")

type RedisClient interface {
	// Get returns a byte slice stored under the provided key
	Get(ctx context.Context, key string) ([]byte, error)
	// Pipeliner queues commands that Exec applies as a single transaction
	Pipeliner(ctx context.Context) Pipeliner
}

type Pipeliner interface {
	Set(key string, data []byte, ttl time.Duration) Pipeliner
	Exec() error
}
