package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/missionforge/server/game/mission"
	"go.uber.org/zap"
)

// MissionsHandler exposes read-only mission state over REST.
type MissionsHandler struct {
	catalog *mission.Catalog
	store   *mission.Store
	reset   *mission.ResetService
	logger  *zap.Logger
}

// NewMissionsHandler creates a MissionsHandler.
func NewMissionsHandler(catalog *mission.Catalog, store *mission.Store, reset *mission.ResetService, logger *zap.Logger) *MissionsHandler {
	return &MissionsHandler{catalog: catalog, store: store, reset: reset, logger: logger}
}

// missionView is the REST representation of one assigned mission.
type missionView struct {
	ID        int64      `json:"id"`
	Event     string     `json:"event"`
	Target    string     `json:"target"`
	Phrase    string     `json:"phrase"`
	Progress  int        `json:"progress"`
	Amount    int        `json:"amount"`
	Completed bool       `json:"completed"`
	MapName   *string    `json:"map_name,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ListDefinitions returns every loaded mission definition.
// GET /api/missions
func (h *MissionsHandler) ListDefinitions(c *gin.Context) {
	defs := h.catalog.All()
	type defView struct {
		Event   string  `json:"event"`
		Target  string  `json:"target"`
		Amount  int     `json:"amount"`
		Phrase  string  `json:"phrase"`
		Flag    *string `json:"flag,omitempty"`
		MapName *string `json:"map_name,omitempty"`
	}
	views := make([]defView, len(defs))
	for i, d := range defs {
		views[i] = defView{
			Event:   d.Event,
			Target:  d.Target,
			Amount:  d.Amount,
			Phrase:  d.Phrase,
			Flag:    d.Flag,
			MapName: d.MapName,
		}
	}
	c.JSON(http.StatusOK, gin.H{"missions": views, "count": len(views)})
}

// PlayerMissions returns the stored missions for one player.
// GET /api/players/:steamid/missions
func (h *MissionsHandler) PlayerMissions(c *gin.Context) {
	steamID, err := strconv.ParseUint(c.Param("steamid"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid steam id"})
		return
	}
	if !h.store.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
		return
	}

	missions := h.store.GetPlayerMissions(c.Request.Context(), steamID)
	views := make([]missionView, len(missions))
	for i, m := range missions {
		views[i] = missionView{
			ID:        m.ID,
			Event:     m.Event,
			Target:    m.Target,
			Phrase:    m.Phrase,
			Progress:  m.Progress,
			Amount:    m.Amount,
			Completed: m.Completed,
			MapName:   m.MapName,
			ExpiresAt: m.ExpiresAt,
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"steam_id": strconv.FormatUint(steamID, 10),
		"missions": views,
	})
}

// NextReset returns when the current mission cycle expires.
// GET /api/missions/reset
func (h *MissionsHandler) NextReset(c *gin.Context) {
	exp := h.reset.CalculateExpirationDate()
	if exp == nil {
		c.JSON(http.StatusOK, gin.H{
			"mode":    h.reset.Mode().String(),
			"expires": false,
		})
		return
	}
	days, hours, mins := h.reset.TimeUntilExpiration(*exp)
	c.JSON(http.StatusOK, gin.H{
		"mode":       h.reset.Mode().String(),
		"expires":    true,
		"expires_at": exp,
		"days":       days,
		"hours":      hours,
		"mins_left":  mins,
	})
}
