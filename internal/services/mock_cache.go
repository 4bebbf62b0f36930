package services

import (
	"context"
	"sync"
	"time"
)

// MockCache is a mock implementation of Cache and Locker for testing
type MockCache struct {
	PingFunc        func(ctx context.Context) error
	AcquireLockFunc func(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)

	mu     sync.Mutex
	values map[string]string
	locks  map[string]string

	// Track calls for testing
	PingCalls    int
	AcquireCalls int
	ReleaseCalls int
	CloseCalls   int
}

// Ensure MockCache implements Cache and Locker interfaces
var (
	_ Cache  = (*MockCache)(nil)
	_ Locker = (*MockCache)(nil)
)

// NewMockCache creates a new mock cache
func NewMockCache() *MockCache {
	return &MockCache{
		values: make(map[string]string),
		locks:  make(map[string]string),
	}
}

func (m *MockCache) Ping(ctx context.Context) error {
	m.mu.Lock()
	m.PingCalls++
	fn := m.PingFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	return nil
}

func (m *MockCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := value.(string); ok {
		m.values[key] = s
	}
	return nil
}

func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key], nil
}

func (m *MockCache) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
		delete(m.locks, k)
	}
	return nil
}

func (m *MockCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		if _, ok := m.values[k]; ok {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockCache) AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	m.AcquireCalls++
	fn := m.AcquireLockFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, key, owner, ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.locks[key]; held {
		return false, nil
	}
	m.locks[key] = owner
	return true, nil
}

func (m *MockCache) ReleaseLock(ctx context.Context, key, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReleaseCalls++
	if m.locks[key] == owner {
		delete(m.locks, key)
	}
	return nil
}

// HoldLock marks key as held by another owner
func (m *MockCache) HoldLock(key, owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks[key] = owner
}

// LockHeld reports whether anyone holds key
func (m *MockCache) LockHeld(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.locks[key]
	return ok
}

func (m *MockCache) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalls++
	return nil
}

func (m *MockCache) WaitForConnection(ctx context.Context) error {
	return m.Ping(ctx)
}

// SetPingError sets up the mock to return an error on Ping
func (m *MockCache) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PingFunc = func(ctx context.Context) error {
		return err
	}
}

// SetPingSuccess sets up the mock to return success on Ping
func (m *MockCache) SetPingSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PingFunc = nil
}
