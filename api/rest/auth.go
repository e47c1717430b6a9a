package rest

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/missionforge/server/cache"
	"github.com/missionforge/server/config"
	mw "github.com/missionforge/server/middleware"
)

// AuthHandler issues WebSocket session tokens. The game host calls it on
// behalf of its connected players, so the routes are protected by AdminAuth.
type AuthHandler struct {
	cache cache.Cache
	sec   config.SecurityConfig
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(c cache.Cache, sec config.SecurityConfig) *AuthHandler {
	return &AuthHandler{cache: c, sec: sec}
}

type sessionRequest struct {
	SteamID uint64   `json:"steam_id,string" binding:"required"`
	Name    string   `json:"name" binding:"required,min=1,max=64"`
	Flags   []string `json:"flags"`
}

// CreateSession handles POST /api/auth/session.
// Returns a JWT the client presents on GET /ws.
func (h *AuthHandler) CreateSession(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := mw.GenerateToken(req.SteamID, req.Name, req.Flags, h.sec.JWTSecret, h.sec.JWTTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	_ = h.cache.Set(ctx, "session:"+token, strconv.FormatUint(req.SteamID, 10), h.sec.JWTTTL)

	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"steam_id": strconv.FormatUint(req.SteamID, 10),
	})
}

// RevokeSession handles POST /api/auth/revoke.
// Invalidates the token from the Authorization header.
func (h *AuthHandler) RevokeSession(c *gin.Context) {
	header := c.GetHeader("Authorization")
	tokenStr := strings.TrimPrefix(header, "Bearer ")
	if tokenStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	_ = h.cache.Del(ctx, "session:"+tokenStr)
	c.JSON(http.StatusOK, gin.H{"message": "revoked"})
}
