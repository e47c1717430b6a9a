package integration

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/missionforge/server/config"
	"github.com/missionforge/server/game/loop"
	"github.com/missionforge/server/game/mission"
	"github.com/missionforge/server/game/player"
	"github.com/missionforge/server/scheduler"
	"github.com/missionforge/server/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// fakeNotifier counts notification calls instead of hitting a webhook.
type fakeNotifier struct {
	mu           sync.Mutex
	completes    int
	allCompletes int
	resets       int
}

func (f *fakeNotifier) MissionComplete(context.Context, string, uint64, string, string) {
	f.mu.Lock()
	f.completes++
	f.mu.Unlock()
}

func (f *fakeNotifier) AllMissionsComplete(context.Context, string, uint64, int) {
	f.mu.Lock()
	f.allCompletes++
	f.mu.Unlock()
}

func (f *fakeNotifier) Reset(context.Context, string, time.Time) {
	f.mu.Lock()
	f.resets++
	f.mu.Unlock()
}

func (f *fakeNotifier) Counts() (completes, allCompletes, resets int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completes, f.allCompletes, f.resets
}

// fakeRunner records reward commands instead of executing them.
type fakeRunner struct {
	mu       sync.Mutex
	commands []string
}

func (f *fakeRunner) Run(_ uint64, command string) {
	f.mu.Lock()
	f.commands = append(f.commands, command)
	f.mu.Unlock()
}

func (f *fakeRunner) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

// Harness wires the full mission stack against an in-memory DB, a running
// game loop, and fake notification/command sinks.
type Harness struct {
	DB       *gorm.DB
	Catalog  *mission.Catalog
	Store    *mission.Store
	Sched    *scheduler.Scheduler
	Loop     *loop.Loop
	Sessions *player.SessionManager
	Reset    *mission.ResetService
	Manager  *mission.PlayerManager
	Notifier *fakeNotifier
	Runner   *fakeRunner
}

// NewHarness builds the stack. missionsJSON is written as the data dir's
// missions.json before the catalog loads.
func NewHarness(t *testing.T, cfg config.MissionsConfig, mode mission.ResetMode, missionsJSON string) *Harness {
	t.Helper()
	logger := zap.NewNop()

	dataDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "missions.json"), []byte(missionsJSON), 0o644))
	cfg.DataDir = dataDir

	db := testutil.SetupTestDB(t)

	catalog := mission.NewCatalog(logger)
	catalog.LoadFromDir(dataDir)
	require.NotZero(t, catalog.Count(), "harness: no mission definitions loaded")

	sched := scheduler.New(logger)
	t.Cleanup(sched.Stop)

	gameLoop := loop.New(logger)
	go gameLoop.Run()
	t.Cleanup(gameLoop.Stop)

	sessions := player.NewSessionManager(logger)

	store := mission.NewStore(db, logger)
	require.True(t, store.Initialize(context.Background()))

	notifier := &fakeNotifier{}
	runner := &fakeRunner{}

	resetSvc := mission.NewResetService(mode, store, sched, gameLoop, notifier, logger)
	mgr := mission.NewPlayerManager(cfg, catalog, store, sessions, gameLoop, resetSvc, notifier, runner, logger)

	return &Harness{
		DB:       db,
		Catalog:  catalog,
		Store:    store,
		Sched:    sched,
		Loop:     gameLoop,
		Sessions: sessions,
		Reset:    resetSvc,
		Manager:  mgr,
		Notifier: notifier,
		Runner:   runner,
	}
}

// Connect registers a detached session and waits for mission hydration.
func (h *Harness) Connect(t *testing.T, steamID uint64, name string, flags ...string) *player.Session {
	t.Helper()
	s := player.NewDetachedSession(steamID, name, flags, zap.NewNop())
	h.Sessions.Register(s)
	h.Manager.OnPlayerConnect(s)

	require.Eventually(t, func() bool {
		loaded := false
		h.run(func() {
			if p := h.Manager.GetPlayer(steamID); p != nil {
				loaded = p.Loaded
			}
		})
		return loaded
	}, 2*time.Second, 10*time.Millisecond, "player %d never hydrated", steamID)
	return s
}

// Report runs one gameplay event on the game loop and waits for it.
func (h *Harness) Report(steamID uint64, event, target string, props map[string]interface{}) {
	h.run(func() {
		h.Manager.HandleEvent(steamID, event, target, props)
	})
}

// run executes fn on the game loop and blocks until it finished.
func (h *Harness) run(fn func()) {
	done := make(chan struct{})
	h.Loop.Defer(func() {
		fn()
		close(done)
	})
	<-done
}

// Missions returns a loop-consistent snapshot of the player's missions.
func (h *Harness) Missions(steamID uint64) []*mission.PlayerMission {
	var out []*mission.PlayerMission
	h.run(func() {
		if p := h.Manager.GetPlayer(steamID); p != nil {
			out = append(out, p.Missions...)
		}
	})
	return out
}
