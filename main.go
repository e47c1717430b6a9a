package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/missionforge/server/api/rest"
	"github.com/missionforge/server/api/sse"
	apows "github.com/missionforge/server/api/ws"
	"github.com/missionforge/server/audit"
	"github.com/missionforge/server/cache"
	"github.com/missionforge/server/config"
	dbadapter "github.com/missionforge/server/db"
	"github.com/missionforge/server/game/loop"
	"github.com/missionforge/server/game/mission"
	"github.com/missionforge/server/game/player"
	mw "github.com/missionforge/server/middleware"
	"github.com/missionforge/server/model"
	"github.com/missionforge/server/plugin/hook"
	"github.com/missionforge/server/scheduler"
	"github.com/missionforge/server/webhook"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const cacheOpTimeout = 2 * time.Second

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	// Warn loudly if admin endpoints will be disabled.
	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized")

	// ---- Cache ----
	c, err := cache.New(cfg.Cache)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Mission definitions ----
	catalog := mission.NewCatalog(logger)
	catalog.LoadFromDir(cfg.Missions.DataDir)
	logger.Info("Mission definitions loaded", zap.Int("count", catalog.Count()))

	// ---- Scheduler / game loop ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	gameLoop := loop.New(logger)
	go gameLoop.Run()
	defer gameLoop.Stop()

	// ---- Game systems ----
	sm := player.NewSessionManager(logger)

	webhookSvc := webhook.New(cfg.Webhook, logger)
	defer webhookSvc.Close()

	store := mission.NewStore(db, logger)
	if !store.Initialize(context.Background()) {
		logger.Warn("mission storage unavailable; progress will not persist")
	}

	resetMode, err := mission.ParseResetMode(cfg.Missions.ResetMode)
	if err != nil {
		logger.Warn("invalid reset mode, falling back to daily",
			zap.String("configured", cfg.Missions.ResetMode))
	}
	resetSvc := mission.NewResetService(resetMode, store, sched, gameLoop, webhookSvc, logger)
	defer resetSvc.StopExpirationTimer()

	runner := &sessionCommandRunner{sm: sm, logger: logger}
	missions := mission.NewPlayerManager(cfg.Missions, catalog, store, sm, gameLoop, resetSvc, webhookSvc, runner, logger)

	// ---- Completion side effects ----
	// Fanned out through the hook center so extensions can attach their own
	// handlers without touching the mission code.
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(context.Background())

	sseH := sse.NewHandler(c, cfg.Security, logger)

	hooks := hook.NewCenter()
	hooks.Register(hook.OnMissionComplete, 10, "leaderboard", func(ctx context.Context, _ string, data interface{}) (interface{}, error) {
		comp := data.(audit.Completion)
		opCtx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
		defer cancel()
		member := fmt.Sprintf("%d", comp.SteamID)
		if _, err := c.ZIncrBy(opCtx, apirest.LeaderboardKey, 1, member); err != nil {
			logger.Warn("leaderboard update failed", zap.Error(err))
		}
		return data, nil
	})
	hooks.Register(hook.OnMissionComplete, 20, "history", func(_ context.Context, _ string, data interface{}) (interface{}, error) {
		auditSvc.Record(data.(audit.Completion))
		return data, nil
	})
	hooks.Register(hook.OnMissionComplete, 30, "live_feed", func(_ context.Context, _ string, data interface{}) (interface{}, error) {
		comp := data.(audit.Completion)
		sseH.Broadcast(sse.CompletionEvent{
			SteamID: fmt.Sprintf("%d", comp.SteamID),
			Name:    comp.Name,
			Phrase:  comp.Phrase,
		})
		return data, nil
	})

	missions.SetCompletionObserver(func(steamID uint64, playerName string, m *mission.PlayerMission) {
		comp := audit.Completion{
			SteamID: steamID,
			Name:    playerName,
			Event:   m.Event,
			Target:  m.Target,
			Phrase:  m.Phrase,
			MapName: missions.CurrentMap(),
		}
		go func() {
			if _, err := hooks.Trigger(context.Background(), hook.OnMissionComplete, comp); err != nil {
				logger.Warn("completion hooks interrupted", zap.Error(err))
			}
		}()
	})

	resetSvc.StartExpirationTimer(cfg.Missions.SweepInterval)

	// ---- WS Router ----
	wsRouter := apows.NewRouter(logger)
	mh := apows.NewMissionHandlers(missions, gameLoop, logger)
	mh.RegisterHandlers(wsRouter)

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	// ---- REST API routes ----
	authH := apirest.NewAuthHandler(c, cfg.Security)
	missionsH := apirest.NewMissionsHandler(catalog, store, resetSvc, logger)
	boardH := apirest.NewLeaderboardHandler(db, c, sm, logger)
	adminH := apirest.NewAdminHandler(cfg.Missions, sm, missions, resetSvc, catalog, gameLoop, sched, logger)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/session", apirest.AdminAuth(cfg.Server.AdminKey), authH.CreateSession)
		authG.POST("/revoke", authH.RevokeSession)

		api.GET("/missions", missionsH.ListDefinitions)
		api.GET("/missions/reset", missionsH.NextReset)
		api.GET("/players/:steamid/missions", missionsH.PlayerMissions)
		api.GET("/leaderboard", boardH.TopCompletions)

		adminG := api.Group("/admin")
		adminG.Use(apirest.AdminAuth(cfg.Server.AdminKey))
		adminG.GET("/metrics", adminH.Metrics)
		adminG.GET("/players", adminH.ListPlayers)
		adminG.POST("/kick/:steamid", adminH.KickPlayer)
		adminG.POST("/missions/reload", adminH.ReloadMissions)
		adminG.POST("/missions/sweep", adminH.ForceSweep)
		adminG.POST("/missions/reset-mode", adminH.SetResetMode)
		adminG.POST("/state", adminH.SetState)
	}

	// ---- WebSocket ----
	wsH := apows.NewHandler(c, cfg.Security, sm, missions, wsRouter, logger)
	r.GET("/ws", wsH.ServeWS)

	// ---- SSE completion feed ----
	r.GET("/sse", sseH.ServeSSE)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}

// sessionCommandRunner delivers reward commands to the game host over the
// player's WebSocket session. The host executes them in-game.
type sessionCommandRunner struct {
	sm     *player.SessionManager
	logger *zap.Logger
}

func (r *sessionCommandRunner) Run(steamID uint64, command string) {
	s := r.sm.Get(steamID)
	if s == nil {
		r.logger.Debug("reward command dropped, player offline",
			zap.Uint64("steam_id", steamID),
			zap.String("command", command))
		return
	}
	payload, _ := json.Marshal(map[string]string{"command": command})
	s.Send(&player.Packet{Type: "run_command", Payload: payload})
}
