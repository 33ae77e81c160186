package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
)

// Ensure MockNonceLedger implements NonceLedger
var _ driven.NonceLedger = (*MockNonceLedger)(nil)

// MockNonceLedger is an in-memory NonceLedger for testing.
type MockNonceLedger struct {
	mu   sync.Mutex
	seen map[string]struct{}

	// Err, when set, is returned by CheckAndConsume.
	Err error

	calls int
}

// NewMockNonceLedger creates a new MockNonceLedger
func NewMockNonceLedger() *MockNonceLedger {
	return &MockNonceLedger{seen: make(map[string]struct{})}
}

func (m *MockNonceLedger) CheckAndConsume(ctx context.Context, nonce string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.Err != nil {
		return false, m.Err
	}
	if _, ok := m.seen[nonce]; ok {
		return false, nil
	}
	m.seen[nonce] = struct{}{}
	return true, nil
}

func (m *MockNonceLedger) Cleanup(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = make(map[string]struct{})
	return nil
}

// Calls returns how many times CheckAndConsume was called.
func (m *MockNonceLedger) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
