package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextKeyGateState holds the GateState of the current request.
const ContextKeyGateState = "gate_state"

// Middleware rejects API calls from sessions that have not passed the gate.
type Middleware struct {
	store       UnlockStore
	publicPaths map[string]bool
}

// NewMiddleware creates the gate middleware over store.
func NewMiddleware(store UnlockStore) *Middleware {
	publicPaths := map[string]bool{
		"/health":      true,
		"/ping":        true,
		"/api/session": true,
		"/api/unlock":  true,
		"/favicon.ico": true,
	}

	return &Middleware{
		store:       store,
		publicPaths: publicPaths,
	}
}

// Handler returns a Gin middleware handler. Only /api/ and /covers/ are
// protected; the static bundle must load so it can render the gate.
func (m *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if m.isPublicPath(path) {
			c.Next()
			return
		}

		if m.store.IsUnlocked(c.Request.Context()) {
			c.Set(ContextKeyGateState, StateUnlocked)
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "locked",
		})
	}
}

func (m *Middleware) isPublicPath(path string) bool {
	if m.publicPaths[path] {
		return true
	}
	return !strings.HasPrefix(path, "/api/") && !strings.HasPrefix(path, "/covers/")
}
