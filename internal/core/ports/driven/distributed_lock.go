package driven

import (
	"context"
	"time"
)

// DistributedLock coordinates background work across service instances,
// so periodic jobs such as the file sync run on one instance at a time.
type DistributedLock interface {
	// Acquire takes the named lock for ttl.
	// Returns false if another instance holds it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release drops the lock if this instance holds it.
	// Safe to call when the lock is not held or has expired.
	Release(ctx context.Context, name string) error

	// Extend pushes the expiry of a lock held by this instance.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	// Ping checks that the lock backend is reachable.
	Ping(ctx context.Context) error
}
