package services

import (
	"context"
	"time"
)

// HealthChecker is anything /health can ping
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Cache is the key/value surface of the shared Redis instance.
// Get returns "" and no error for a missing key.
type Cache interface {
	HealthChecker

	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, keys ...string) (bool, error)

	Close() error
	// WaitForConnection retries Ping until it succeeds or ctx ends
	WaitForConnection(ctx context.Context) error
}

// Locker hands out short-lived named locks owned by a caller-supplied token
type Locker interface {
	// AcquireLock returns false without error when another owner holds the lock
	AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)

	// ReleaseLock deletes the lock only if owner still holds it
	ReleaseLock(ctx context.Context, key, owner string) error
}
