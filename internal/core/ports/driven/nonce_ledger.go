package driven

import "context"

// NonceLedger records consumed authorization-state nonces.
type NonceLedger interface {
	// CheckAndConsume marks the nonce as used.
	// Returns false if it was already consumed. For any number of concurrent
	// calls with the same nonce exactly one returns true.
	CheckAndConsume(ctx context.Context, nonce string) (bool, error)

	// Cleanup drops old entries to bound storage.
	// Called periodically (hourly by default); the state expiry window
	// already bounds replay, so forgetting old nonces is safe.
	Cleanup(ctx context.Context) error
}
