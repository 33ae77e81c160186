package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.NonceLedger = (*NonceLedger)(nil)

const noncePrefix = keyPrefix + "nonce:"

// DefaultNonceTTL is how long a consumed nonce is remembered.
const DefaultNonceTTL = time.Hour

// NonceLedger records consumed nonces with SET NX and a TTL,
// so every instance sharing the Redis server sees the same ledger.
type NonceLedger struct {
	client *redis.Client
	ttl    time.Duration
}

// NewNonceLedger creates a Redis-backed nonce ledger.
func NewNonceLedger(client *redis.Client, ttl time.Duration) *NonceLedger {
	if ttl <= 0 {
		ttl = DefaultNonceTTL
	}
	return &NonceLedger{client: client, ttl: ttl}
}

// CheckAndConsume marks the nonce as used. SET NX makes the check and the
// write one atomic step on the server.
func (l *NonceLedger) CheckAndConsume(ctx context.Context, nonce string) (bool, error) {
	ok, err := l.client.SetNX(ctx, noncePrefix+nonce, time.Now().Unix(), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("consume nonce: %w", err)
	}
	return ok, nil
}

// Cleanup is a no-op: Redis expires the keys itself.
func (l *NonceLedger) Cleanup(ctx context.Context) error {
	return nil
}
