package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
)

// Ensure NonceLedger implements the interface.
var _ driven.NonceLedger = (*NonceLedger)(nil)

// DefaultNonceRetention is how long consumed nonces are kept.
const DefaultNonceRetention = time.Hour

// NonceLedger implements driven.NonceLedger using PostgreSQL.
// The primary key on nonce makes the insert the single atomic check.
type NonceLedger struct {
	db        *DB
	retention time.Duration
}

// NewNonceLedger creates a new PostgreSQL-backed nonce ledger.
func NewNonceLedger(db *DB, retention time.Duration) *NonceLedger {
	if retention <= 0 {
		retention = DefaultNonceRetention
	}
	return &NonceLedger{
		db:        db,
		retention: retention,
	}
}

// CheckAndConsume marks the nonce as used.
func (l *NonceLedger) CheckAndConsume(ctx context.Context, nonce string) (bool, error) {
	result, err := l.db.ExecContext(ctx,
		`INSERT INTO consumed_nonces (nonce, consumed_at) VALUES ($1, NOW()) ON CONFLICT (nonce) DO NOTHING`,
		nonce,
	)
	if err != nil {
		return false, fmt.Errorf("consume nonce: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("consume nonce: %w", err)
	}
	return n == 1, nil
}

// Cleanup removes nonces older than the retention period.
func (l *NonceLedger) Cleanup(ctx context.Context) error {
	cutoff := time.Now().Add(-l.retention)
	if _, err := l.db.ExecContext(ctx, `DELETE FROM consumed_nonces WHERE consumed_at < $1`, cutoff); err != nil {
		return fmt.Errorf("cleanup nonces: %w", err)
	}
	return nil
}
