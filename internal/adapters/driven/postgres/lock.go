package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*LeaseLock)(nil)

// LeaseLock implements DistributedLock with rows in worker_leases.
// A lease is taken when the row is missing, expired, or already ours.
// Expiry uses the database clock so instances need not agree on time.
type LeaseLock struct {
	db      *DB
	ownerID string
}

// NewLeaseLock creates a new PostgreSQL lease lock.
func NewLeaseLock(db *DB) *LeaseLock {
	return &LeaseLock{
		db:      db,
		ownerID: uuid.NewString(),
	}
}

// Acquire takes the named lease for ttl.
func (l *LeaseLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	query := `
		INSERT INTO worker_leases (name, owner, expires_at)
		VALUES ($1, $2, NOW() + make_interval(secs => $3))
		ON CONFLICT (name) DO UPDATE SET
			owner = EXCLUDED.owner,
			expires_at = EXCLUDED.expires_at
		WHERE worker_leases.expires_at < NOW() OR worker_leases.owner = EXCLUDED.owner
	`
	result, err := l.db.ExecContext(ctx, query, name, l.ownerID, ttl.Seconds())
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", name, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", name, err)
	}
	return n == 1, nil
}

// Release drops the lease if this instance holds it.
func (l *LeaseLock) Release(ctx context.Context, name string) error {
	_, err := l.db.ExecContext(ctx, `DELETE FROM worker_leases WHERE name = $1 AND owner = $2`, name, l.ownerID)
	if err != nil {
		return fmt.Errorf("release lease %s: %w", name, err)
	}
	return nil
}

// Extend pushes the expiry of a lease this instance holds.
func (l *LeaseLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	result, err := l.db.ExecContext(ctx,
		`UPDATE worker_leases SET expires_at = NOW() + make_interval(secs => $3) WHERE name = $1 AND owner = $2`,
		name, l.ownerID, ttl.Seconds(),
	)
	if err != nil {
		return fmt.Errorf("extend lease %s: %w", name, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("extend lease %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("lease %s not held by this instance", name)
	}
	return nil
}

// Ping checks if the PostgreSQL backend is healthy.
func (l *LeaseLock) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}
