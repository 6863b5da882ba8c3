package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memoryStore struct {
	mu         sync.Mutex
	unlocked   bool
	errorUntil time.Time
}

func (s *memoryStore) IsUnlocked(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlocked
}

func (s *memoryStore) Unlock(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unlocked = true
	s.errorUntil = time.Time{}
	return nil
}

func (s *memoryStore) Lock(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unlocked = false
	return nil
}

func (s *memoryStore) ErrorUntil(context.Context) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorUntil
}

func (s *memoryStore) SetErrorUntil(_ context.Context, until time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorUntil = until
}

func mustHash(t *testing.T, passcode string) string {
	t.Helper()
	hash, err := HashPasscode(passcode, bcrypt.MinCost)
	require.NoError(t, err)
	return hash
}

func TestGate_StartsLocked(t *testing.T) {
	gate := NewGate(mustHash(t, "1234"), &memoryStore{}, nil, 0)
	assert.Equal(t, StateLocked, gate.Status(context.Background()))
}

func TestGate_CorrectPasscodeUnlocks(t *testing.T) {
	store := &memoryStore{}
	gate := NewGate(mustHash(t, "1234"), store, nil, 0)

	result, err := gate.Submit(context.Background(), "c", "1234")
	require.NoError(t, err)

	assert.Equal(t, StateUnlocked, result.State)
	assert.True(t, store.unlocked)
	assert.Equal(t, StateUnlocked, gate.Status(context.Background()))
}

func TestGate_WrongPasscodeErrorClearsAfterWindow(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := &memoryStore{}
	gate := NewGate(mustHash(t, "1234"), store, nil, 0)
	gate.now = func() time.Time { return now }

	result, err := gate.Submit(context.Background(), "c", "9999")
	require.NoError(t, err)

	assert.Equal(t, StateError, result.State)
	assert.Equal(t, now.Add(DefaultErrorWindow), result.ErrorUntil)
	assert.False(t, store.unlocked)
	assert.Equal(t, StateError, gate.Status(context.Background()))

	now = now.Add(DefaultErrorWindow)
	assert.Equal(t, StateLocked, gate.Status(context.Background()))
}

func TestGate_SubmitWhileUnlockedIsNoop(t *testing.T) {
	store := &memoryStore{unlocked: true}
	gate := NewGate(mustHash(t, "1234"), store, nil, 0)

	result, err := gate.Submit(context.Background(), "c", "wrong")
	require.NoError(t, err)
	assert.Equal(t, StateUnlocked, result.State)
	assert.True(t, store.errorUntil.IsZero())
}

func TestGate_RateLimited(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{MaxAttempts: 2, LockoutDuration: time.Minute})
	t.Cleanup(limiter.Stop)
	gate := NewGate(mustHash(t, "1234"), &memoryStore{}, limiter, 0)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := gate.Submit(ctx, "10.0.0.1", "0000")
		require.NoError(t, err)
	}

	result, err := gate.Submit(ctx, "10.0.0.1", "1234")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, StateLocked, result.State)
	assert.Greater(t, result.RetryAfter, time.Duration(0))

	// A different client can still unlock.
	result, err = gate.Submit(ctx, "10.0.0.2", "1234")
	require.NoError(t, err)
	assert.Equal(t, StateUnlocked, result.State)
}

func TestGate_Lock(t *testing.T) {
	store := &memoryStore{unlocked: true}
	gate := NewGate(mustHash(t, "1234"), store, nil, 0)

	require.NoError(t, gate.Lock(context.Background()))
	assert.Equal(t, StateLocked, gate.Status(context.Background()))
}
