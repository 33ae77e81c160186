package sqlite

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
)

// Ensure NonceLedger implements the interface.
var _ driven.NonceLedger = (*NonceLedger)(nil)

// DefaultNonceRetention is how long consumed nonces are kept.
const DefaultNonceRetention = time.Hour

// NonceLedger implements driven.NonceLedger on the consumed_nonces table.
type NonceLedger struct {
	db        *gorm.DB
	retention time.Duration
	now       func() time.Time
}

// NewNonceLedger creates a SQLite-backed nonce ledger.
func NewNonceLedger(db *gorm.DB, retention time.Duration) *NonceLedger {
	if retention <= 0 {
		retention = DefaultNonceRetention
	}
	return &NonceLedger{
		db:        db,
		retention: retention,
		now:       time.Now,
	}
}

// CheckAndConsume inserts the nonce; a conflicting row means it was already used.
func (l *NonceLedger) CheckAndConsume(ctx context.Context, nonce string) (bool, error) {
	result := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&nonceRecord{Nonce: nonce, ConsumedAt: l.now()})
	if result.Error != nil {
		return false, fmt.Errorf("consume nonce: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// Cleanup removes nonces older than the retention period.
func (l *NonceLedger) Cleanup(ctx context.Context) error {
	cutoff := l.now().Add(-l.retention)
	if err := l.db.WithContext(ctx).Where("consumed_at < ?", cutoff).Delete(&nonceRecord{}).Error; err != nil {
		return fmt.Errorf("cleanup nonces: %w", err)
	}
	return nil
}
