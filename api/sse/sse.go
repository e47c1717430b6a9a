package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/missionforge/server/cache"
	"github.com/missionforge/server/config"
	mw "github.com/missionforge/server/middleware"
	"go.uber.org/zap"
)

const subscriberBuf = 16

// Handler streams mission completions as server-sent events so web dashboards
// can follow the action live.
type Handler struct {
	sec    config.SecurityConfig
	c      cache.Cache
	logger *zap.Logger

	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

// NewHandler creates a new SSE Handler.
func NewHandler(c cache.Cache, sec config.SecurityConfig, logger *zap.Logger) *Handler {
	return &Handler{
		sec:    sec,
		c:      c,
		logger: logger,
		subs:   make(map[chan []byte]struct{}),
	}
}

// CompletionEvent is the payload streamed for each finished mission.
type CompletionEvent struct {
	SteamID string `json:"steam_id"`
	Name    string `json:"name"`
	Phrase  string `json:"phrase"`
	AllDone bool   `json:"all_done,omitempty"`
}

// Broadcast delivers ev to every connected subscriber. Slow subscribers are
// skipped rather than blocked on.
func (h *Handler) Broadcast(ev CompletionEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- data:
		default:
		}
	}
}

func (h *Handler) subscribe() chan []byte {
	ch := make(chan []byte, subscriberBuf)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Handler) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

// ServeSSE handles GET /sse?token=<jwt>.
// It streams completion events to authenticated clients.
func (h *Handler) ServeSSE(c *gin.Context) {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	if _, err := mw.ParseToken(tokenStr, h.sec.JWTSecret); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if _, err := h.c.Get(ctx, "session:"+tokenStr); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
		return
	}

	// Set SSE headers.
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	// Send initial connected event.
	fmt.Fprintf(c.Writer, "event: connected\ndata: {}\n\n")
	c.Writer.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case data := <-ch:
			fmt.Fprintf(c.Writer, "event: completion\ndata: %s\n\n", data)
			c.Writer.Flush()

		case <-ticker.C:
			// Keepalive comment to prevent proxy timeouts.
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}
