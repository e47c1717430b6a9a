package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/missionforge/server/cache"
	"github.com/missionforge/server/game/player"
	"github.com/missionforge/server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LeaderboardHandler serves the mission completion leaderboard.
type LeaderboardHandler struct {
	db     *gorm.DB
	cache  cache.Cache
	sm     *player.SessionManager
	logger *zap.Logger
}

// NewLeaderboardHandler creates a LeaderboardHandler.
func NewLeaderboardHandler(db *gorm.DB, c cache.Cache, sm *player.SessionManager, logger *zap.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{db: db, cache: c, sm: sm, logger: logger}
}

// LeaderboardKey is the sorted-set key scored by lifetime completions.
const LeaderboardKey = "missions:completions"

const leaderboardTop = 100

// BoardEntry is one row in the leaderboard.
type BoardEntry struct {
	Rank        int    `json:"rank"`
	SteamID     string `json:"steam_id"`
	Name        string `json:"name,omitempty"`
	Completions int64  `json:"completions"`
}

// TopCompletions returns the players with the most mission completions.
// GET /api/leaderboard?limit=20
func (h *LeaderboardHandler) TopCompletions(c *gin.Context) {
	limit := 20
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= leaderboardTop {
		limit = l
	}

	// Try the cached sorted set first.
	ctx := c.Request.Context()
	members, err := h.cache.ZRevRange(ctx, LeaderboardKey, 0, int64(limit-1))
	if err == nil && len(members) > 0 {
		entries := make([]BoardEntry, 0, len(members))
		for i, m := range members {
			steamID, err := strconv.ParseUint(m, 10, 64)
			if err != nil {
				continue
			}
			score, _ := h.cache.ZScore(ctx, LeaderboardKey, m)
			entry := BoardEntry{
				Rank:        i + 1,
				SteamID:     m,
				Completions: int64(score),
			}
			// Name is only known while the player is online.
			if s := h.sm.Get(steamID); s != nil {
				entry.Name = s.Name
			}
			entries = append(entries, entry)
		}
		c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
		return
	}

	// Fall back to the completion history, which survives resets.
	type row struct {
		SteamID64   uint64
		Name        string
		Completions int64
	}
	var rows []row
	h.db.Model(&model.CompletionLog{}).
		Select("steamid64 as steam_id64, MAX(name) as name, COUNT(*) as completions").
		Group("steamid64").
		Order("completions DESC").
		Limit(limit).
		Scan(&rows)

	entries := make([]BoardEntry, len(rows))
	for i, r := range rows {
		member := strconv.FormatUint(r.SteamID64, 10)
		entries[i] = BoardEntry{
			Rank:        i + 1,
			SteamID:     member,
			Name:        r.Name,
			Completions: r.Completions,
		}
		// Seed the cache so the next request skips the DB.
		_ = h.cache.ZAdd(ctx, LeaderboardKey, float64(r.Completions), member)
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}
