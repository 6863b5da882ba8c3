package auth

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// GateController serves the gate endpoints.
type GateController struct {
	gate     *Gate
	sessions *SessionManager
}

// NewGateController creates a controller. sessions is only used to report
// when the session was unlocked and may be nil.
func NewGateController(gate *Gate, sessions *SessionManager) *GateController {
	return &GateController{gate: gate, sessions: sessions}
}

type sessionResponse struct {
	State      GateState  `json:"state"`
	CSRFToken  string     `json:"csrf_token,omitempty"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

type unlockRequest struct {
	Passcode string `json:"passcode"`
}

// Session handles GET /api/session.
func (gc *GateController) Session(c *gin.Context) {
	ctx := c.Request.Context()
	resp := sessionResponse{
		State:     gc.gate.Status(ctx),
		CSRFToken: GetCSRFToken(c),
	}
	if resp.State == StateUnlocked && gc.sessions != nil {
		if at := gc.sessions.UnlockedAt(ctx); !at.IsZero() {
			resp.UnlockedAt = &at
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Unlock handles POST /api/unlock.
func (gc *GateController) Unlock(c *gin.Context) {
	var req unlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := gc.gate.Submit(c.Request.Context(), GetClientIP(c), req.Passcode)
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			c.Header("Retry-After", result.RetryAfter.String())
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many passcode attempts",
				"retry_after": result.RetryAfter.String(),
			})
			return
		}
		log.Printf("[auth] Error unlocking session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if result.State == StateError {
		c.JSON(http.StatusUnauthorized, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Lock handles POST /api/lock.
func (gc *GateController) Lock(c *gin.Context) {
	if err := gc.gate.Lock(c.Request.Context()); err != nil {
		log.Printf("[auth] Error locking session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": StateLocked})
}
