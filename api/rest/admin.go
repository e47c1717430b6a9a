package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/missionforge/server/config"
	"github.com/missionforge/server/game/loop"
	"github.com/missionforge/server/game/mission"
	"github.com/missionforge/server/game/player"
	"github.com/missionforge/server/scheduler"
	"go.uber.org/zap"
)

// AdminHandler handles admin-only REST endpoints.
// Routes should be protected by AdminAuth middleware.
type AdminHandler struct {
	cfg      config.MissionsConfig
	sm       *player.SessionManager
	missions *mission.PlayerManager
	reset    *mission.ResetService
	catalog  *mission.Catalog
	loop     *loop.Loop
	sched    *scheduler.Scheduler
	logger   *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(
	cfg config.MissionsConfig,
	sm *player.SessionManager,
	missions *mission.PlayerManager,
	reset *mission.ResetService,
	catalog *mission.Catalog,
	gameLoop *loop.Loop,
	sched *scheduler.Scheduler,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		cfg:      cfg,
		sm:       sm,
		missions: missions,
		reset:    reset,
		catalog:  catalog,
		loop:     gameLoop,
		sched:    sched,
		logger:   logger,
	}
}

// Metrics returns server health metrics.
// GET /api/admin/metrics
func (h *AdminHandler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"online_players":  h.sm.Count(),
		"definitions":     h.catalog.Count(),
		"reset_mode":      h.reset.Mode().String(),
		"current_map":     h.missions.CurrentMap(),
		"scheduler_tasks": h.sched.Tasks(),
	})
}

// ListPlayers returns a snapshot of all online players.
// GET /api/admin/players
func (h *AdminHandler) ListPlayers(c *gin.Context) {
	sessions := h.sm.All()
	type playerInfo struct {
		SteamID string   `json:"steam_id"`
		Name    string   `json:"name"`
		Flags   []string `json:"flags,omitempty"`
	}
	result := make([]playerInfo, 0, len(sessions))
	for _, s := range sessions {
		result = append(result, playerInfo{
			SteamID: strconv.FormatUint(s.SteamID, 10),
			Name:    s.Name,
			Flags:   s.Flags,
		})
	}
	c.JSON(http.StatusOK, gin.H{"players": result, "count": len(result)})
}

// KickPlayer forcibly disconnects a player by Steam ID.
// POST /api/admin/kick/:steamid
func (h *AdminHandler) KickPlayer(c *gin.Context) {
	steamID, err := strconv.ParseUint(c.Param("steamid"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid steam id"})
		return
	}
	s := h.sm.Get(steamID)
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "player not online"})
		return
	}
	s.Close()
	h.logger.Info("admin kicked player", zap.Uint64("steam_id", steamID))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ReloadMissions re-reads mission definitions from the data directory.
// POST /api/admin/missions/reload
func (h *AdminHandler) ReloadMissions(c *gin.Context) {
	h.catalog.LoadFromDir(h.cfg.DataDir)
	c.JSON(http.StatusOK, gin.H{"ok": true, "definitions": h.catalog.Count()})
}

// ForceSweep runs one expiration sweep immediately.
// POST /api/admin/missions/sweep
func (h *AdminHandler) ForceSweep(c *gin.Context) {
	h.reset.CheckForExpiredMissions(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type stateRequest struct {
	Map    *string `json:"map,omitempty"`
	Warmup *bool   `json:"warmup,omitempty"`
}

// SetState updates the round state reported by the game host.
// POST /api/admin/state
func (h *AdminHandler) SetState(c *gin.Context) {
	var req stateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Map == nil && req.Warmup == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	h.loop.Defer(func() {
		if req.Warmup != nil {
			h.missions.SetWarmup(*req.Warmup)
		}
		if req.Map != nil {
			h.missions.OnMapChange(*req.Map)
		}
	})
	c.JSON(http.StatusAccepted, gin.H{"ok": true})
}

type resetModeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

// SetResetMode switches the reset mode at runtime.
// POST /api/admin/missions/reset-mode
func (h *AdminHandler) SetResetMode(c *gin.Context) {
	var req resetModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mode, err := mission.ParseResetMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown reset mode"})
		return
	}
	h.reset.SetMode(mode, h.cfg.SweepInterval)
	h.logger.Info("reset mode changed", zap.String("mode", mode.String()))
	c.JSON(http.StatusOK, gin.H{"ok": true, "mode": mode.String()})
}

// AdminAuth returns a middleware that checks the X-Admin-Key header.
// WARNING: if adminKey is empty all admin endpoints are disabled (503) so the
// server cannot be accidentally deployed without protection. Set a non-empty
// server.admin_key in config to enable admin routes.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": "admin endpoints disabled: set server.admin_key in config"})
			return
		}
		key := c.GetHeader("X-Admin-Key")
		if key != adminKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
