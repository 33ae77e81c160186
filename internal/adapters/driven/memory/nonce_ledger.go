// Package memory holds process-local adapters for single-instance deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.NonceLedger = (*NonceLedger)(nil)

// DefaultNonceRetention is how long consumed nonces are remembered.
// It must exceed the state expiry window.
const DefaultNonceRetention = time.Hour

// NonceLedger records consumed nonces in a mutex-guarded map.
// Entries are only visible to this process.
type NonceLedger struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	retention time.Duration
	now       func() time.Time
}

// NewNonceLedger creates an in-memory nonce ledger.
func NewNonceLedger(retention time.Duration) *NonceLedger {
	if retention <= 0 {
		retention = DefaultNonceRetention
	}
	return &NonceLedger{
		seen:      make(map[string]time.Time),
		retention: retention,
		now:       time.Now,
	}
}

// CheckAndConsume marks the nonce as used.
func (l *NonceLedger) CheckAndConsume(ctx context.Context, nonce string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[nonce]; ok {
		return false, nil
	}
	l.seen[nonce] = l.now()
	return true, nil
}

// Cleanup forgets nonces consumed longer ago than the retention period.
func (l *NonceLedger) Cleanup(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.retention)
	for nonce, at := range l.seen {
		if at.Before(cutoff) {
			delete(l.seen, nonce)
		}
	}
	return nil
}

// Len returns the number of remembered nonces.
func (l *NonceLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}
