// Package auth implements the passcode gate in front of the shelf.
//
// There is one shared passcode and no user accounts. A browser session starts
// locked; submitting the passcode marks the session unlocked until it expires
// or the user locks it again from settings.
//
// # Configuration
//
//	PASSCODE=<plain passcode>        # hashed with bcrypt at startup
//	PASSCODE_HASH=<bcrypt hash>      # wins over PASSCODE, see "flashshelf hash-passcode"
//	AUTH_SESSION_SECRET=<hex-32-bytes>  # CSRF key, auto-generated if empty
//	AUTH_SESSION_LIFETIME=720h       # how long an unlocked session survives
//	AUTH_SECURE_COOKIES=true         # HTTPS-only cookies
//	GATE_ERROR_WINDOW=800ms          # how long a wrong attempt shows as an error
//	AUTH_MAX_ATTEMPTS=5              # failures per client before lockout
//
// # Usage
//
//	sessions, _ := auth.NewSessionManager(sqlDB, cfg.Auth)
//	gate := auth.NewGate(hash, sessions, auth.NewRateLimiter(auth.RateLimitConfigFrom(cfg.Auth)), cfg.Auth.ErrorWindow)
//	router.Use(sessions.SessionLoadSave(), auth.NewMiddleware(sessions).Handler())
package auth
