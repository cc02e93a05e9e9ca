package domain

import (
	"context"
	"time"
)

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StatusBus broadcasts per-tick status payloads to other processes.
type StatusBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}
