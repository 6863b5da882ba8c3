package auth

import (
	"context"
	"database/sql"
	"encoding/gob"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"

	"github.com/mrlokans/flashshelf/internal/config"
)

// Session data keys
const (
	SessionKeyUnlocked   = "unlocked"
	SessionKeyUnlockedAt = "unlocked_at"
	SessionKeyErrorUntil = "gate_error_until"
)

func init() {
	gob.Register(time.Time{})
}

// UnlockStore is the only persistence the gate needs: a per-session unlocked
// flag plus the deadline of the last failed attempt.
type UnlockStore interface {
	IsUnlocked(ctx context.Context) bool
	Unlock(ctx context.Context) error
	Lock(ctx context.Context) error
	ErrorUntil(ctx context.Context) time.Time
	SetErrorUntil(ctx context.Context, until time.Time)
}

// SessionManager wraps scs.SessionManager with the gate's session keys.
type SessionManager struct {
	*scs.SessionManager
}

var _ UnlockStore = (*SessionManager)(nil)

// NewSessionManager creates a configured session manager.
// The sqlDB parameter should be the underlying *sql.DB from GORM.
func NewSessionManager(sqlDB *sql.DB, cfg config.Auth) (*SessionManager, error) {
	_, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		expiry REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions(expiry);`)
	if err != nil {
		return nil, err
	}

	sm := scs.New()
	sm.Store = sqlite3store.New(sqlDB)

	lifetime := cfg.SessionLifetime
	if lifetime <= 0 {
		lifetime = 30 * 24 * time.Hour
	}
	sm.Lifetime = lifetime
	sm.IdleTimeout = lifetime / 2

	// The unlocked flag has to survive a browser restart.
	sm.Cookie.Name = "session"
	sm.Cookie.Persist = true
	sm.Cookie.HttpOnly = true
	sm.Cookie.Secure = cfg.SecureCookies
	sm.Cookie.SameSite = http.SameSiteStrictMode
	sm.Cookie.Path = "/"

	return &SessionManager{SessionManager: sm}, nil
}

// IsUnlocked reports whether the session in ctx passed the gate.
func (sm *SessionManager) IsUnlocked(ctx context.Context) bool {
	return sm.GetBool(ctx, SessionKeyUnlocked)
}

// Unlock marks the session unlocked. The token is renewed first to prevent
// session fixation.
func (sm *SessionManager) Unlock(ctx context.Context) error {
	if err := sm.RenewToken(ctx); err != nil {
		return err
	}
	sm.Put(ctx, SessionKeyUnlocked, true)
	sm.Put(ctx, SessionKeyUnlockedAt, time.Now())
	sm.Remove(ctx, SessionKeyErrorUntil)
	return nil
}

// Lock destroys the session so the next load starts locked.
func (sm *SessionManager) Lock(ctx context.Context) error {
	return sm.Destroy(ctx)
}

// UnlockedAt returns when the session was unlocked, or the zero time.
func (sm *SessionManager) UnlockedAt(ctx context.Context) time.Time {
	return sm.GetTime(ctx, SessionKeyUnlockedAt)
}

func (sm *SessionManager) ErrorUntil(ctx context.Context) time.Time {
	return sm.GetTime(ctx, SessionKeyErrorUntil)
}

func (sm *SessionManager) SetErrorUntil(ctx context.Context, until time.Time) {
	sm.Put(ctx, SessionKeyErrorUntil, until)
}
