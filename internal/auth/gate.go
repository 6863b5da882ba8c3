package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// GateState is what the client should render.
type GateState string

const (
	StateLocked   GateState = "locked"
	StateUnlocked GateState = "unlocked"
	StateError    GateState = "error" // wrong passcode, clears after the error window
)

// DefaultErrorWindow is how long a wrong attempt is reported as an error.
const DefaultErrorWindow = 800 * time.Millisecond

// ErrRateLimited is returned by Submit while the client is locked out.
var ErrRateLimited = errors.New("too many passcode attempts")

// Result of a passcode submission.
type Result struct {
	State      GateState     `json:"state"`
	ErrorUntil time.Time     `json:"error_until,omitempty"`
	RetryAfter time.Duration `json:"-"`
}

// Gate checks the shared passcode and records the outcome in the session.
type Gate struct {
	hash        string
	store       UnlockStore
	limiter     *RateLimiter
	errorWindow time.Duration
	now         func() time.Time
}

// NewGate creates a gate for the bcrypt hash. limiter may be nil.
func NewGate(hash string, store UnlockStore, limiter *RateLimiter, errorWindow time.Duration) *Gate {
	if errorWindow <= 0 {
		errorWindow = DefaultErrorWindow
	}
	return &Gate{
		hash:        hash,
		store:       store,
		limiter:     limiter,
		errorWindow: errorWindow,
		now:         time.Now,
	}
}

// Status returns the gate state of the session in ctx.
func (g *Gate) Status(ctx context.Context) GateState {
	if g.store.IsUnlocked(ctx) {
		return StateUnlocked
	}
	if until := g.store.ErrorUntil(ctx); !until.IsZero() && g.now().Before(until) {
		return StateError
	}
	return StateLocked
}

// Submit compares input with the passcode. A match unlocks the session; a
// mismatch puts the session into the error state for the error window and
// counts against clientKey.
func (g *Gate) Submit(ctx context.Context, clientKey, input string) (Result, error) {
	if g.store.IsUnlocked(ctx) {
		return Result{State: StateUnlocked}, nil
	}

	if g.limiter != nil {
		if allowed, retryAfter := g.limiter.Allow(clientKey); !allowed {
			return Result{State: StateLocked, RetryAfter: retryAfter}, ErrRateLimited
		}
	}

	err := CheckPasscode(input, g.hash)
	switch {
	case err == nil:
		if g.limiter != nil {
			g.limiter.RecordSuccess(clientKey)
		}
		if err := g.store.Unlock(ctx); err != nil {
			return Result{State: StateLocked}, fmt.Errorf("failed to unlock session: %w", err)
		}
		log.Printf("[auth] Session unlocked for %s", clientKey)
		return Result{State: StateUnlocked}, nil

	case errors.Is(err, ErrInvalidPasscode):
		until := g.now().Add(g.errorWindow)
		g.store.SetErrorUntil(ctx, until)
		if g.limiter != nil {
			if locked, retryAfter := g.limiter.RecordFailure(clientKey); locked {
				log.Printf("[auth] Client %s locked out for %s", clientKey, retryAfter)
			}
		}
		return Result{State: StateError, ErrorUntil: until}, nil

	default:
		return Result{State: StateLocked}, fmt.Errorf("failed to check passcode: %w", err)
	}
}

// Lock clears the unlocked flag; the next load shows the gate again.
func (g *Gate) Lock(ctx context.Context) error {
	return g.store.Lock(ctx)
}
