package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
)

var _ driven.DistributedLock = (*MockDistributedLock)(nil)

// MockDistributedLock keeps leases in memory. Leases taken through
// HoldElsewhere belong to another instance and cannot be released here.
type MockDistributedLock struct {
	mu     sync.Mutex
	leases map[string]lease

	// AcquireErr, when set, is returned by Acquire.
	AcquireErr error
	// PingErr, when set, is returned by Ping.
	PingErr error
	// ExtendErr, when set, is returned by Extend.
	ExtendErr error

	acquired int
	released int
	extended int
}

type lease struct {
	ours    bool
	expires time.Time
}

// NewMockDistributedLock creates a new MockDistributedLock
func NewMockDistributedLock() *MockDistributedLock {
	return &MockDistributedLock{leases: make(map[string]lease)}
}

func (m *MockDistributedLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AcquireErr != nil {
		return false, m.AcquireErr
	}
	if l, ok := m.leases[name]; ok && time.Now().Before(l.expires) && !l.ours {
		return false, nil
	}
	m.leases[name] = lease{ours: true, expires: time.Now().Add(ttl)}
	m.acquired++
	return true, nil
}

func (m *MockDistributedLock) Release(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.leases[name]; ok && l.ours {
		delete(m.leases, name)
		m.released++
	}
	return nil
}

func (m *MockDistributedLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ExtendErr != nil {
		return m.ExtendErr
	}
	l, ok := m.leases[name]
	if !ok || !l.ours || time.Now().After(l.expires) {
		return fmt.Errorf("lease %s not held by this instance", name)
	}
	l.expires = time.Now().Add(ttl)
	m.leases[name] = l
	m.extended++
	return nil
}

func (m *MockDistributedLock) Ping(ctx context.Context) error {
	return m.PingErr
}

// HoldElsewhere marks name as held by another instance for ttl.
func (m *MockDistributedLock) HoldElsewhere(name string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leases[name] = lease{expires: time.Now().Add(ttl)}
}

// Held reports whether this instance holds name.
func (m *MockDistributedLock) Held(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leases[name]
	return ok && l.ours && time.Now().Before(l.expires)
}

// Counts returns how many leases were acquired and released.
func (m *MockDistributedLock) Counts() (acquired, released int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquired, m.released
}

// Extends returns how many times a lease was extended.
func (m *MockDistributedLock) Extends() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.extended
}
