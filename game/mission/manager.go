package mission

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"strings"
	"sync"

	"github.com/missionforge/server/config"
	"github.com/missionforge/server/game/loop"
	"github.com/missionforge/server/game/player"
	"go.uber.org/zap"
)

// CommandRunner executes reward commands against the host game server.
type CommandRunner interface {
	Run(steamID uint64, command string)
}

// PlayerManager orchestrates per-player mission state: hydration on
// connect, assignment top-up, event matching, and expiration handling.
// The registry map is lock-guarded, but the contents of each MissionPlayer
// are only ever touched on the game loop.
type PlayerManager struct {
	cfg      config.MissionsConfig
	catalog  *Catalog
	store    *Store
	sessions *player.SessionManager
	loop     *loop.Loop
	reset    *ResetService
	notifier Notifier
	runner   CommandRunner
	localize func(string) string
	logger   *zap.Logger

	mu      sync.RWMutex
	players map[uint64]*MissionPlayer

	// currentMap is written on the game loop and read by the admin API;
	// pm.mu guards it. warmup is loop-confined.
	currentMap string
	warmup     bool

	// onCompletion, when set, observes each completion (leaderboard,
	// history, live feed).
	onCompletion func(steamID uint64, playerName string, m *PlayerMission)
}

// NewPlayerManager creates a PlayerManager and wires it into the reset
// service.
func NewPlayerManager(
	cfg config.MissionsConfig,
	catalog *Catalog,
	store *Store,
	sessions *player.SessionManager,
	lp *loop.Loop,
	reset *ResetService,
	notifier Notifier,
	runner CommandRunner,
	logger *zap.Logger,
) *PlayerManager {
	pm := &PlayerManager{
		cfg:      cfg,
		catalog:  catalog,
		store:    store,
		sessions: sessions,
		loop:     lp,
		reset:    reset,
		notifier: notifier,
		runner:   runner,
		localize: func(s string) string { return s },
		logger:   logger,
		players:  make(map[uint64]*MissionPlayer),
	}
	reset.SetPlayerManager(pm)
	return pm
}

// SetLocalizer replaces the phrase-key translator used for notifications.
func (pm *PlayerManager) SetLocalizer(fn func(string) string) {
	if fn != nil {
		pm.localize = fn
	}
}

// SetCompletionObserver registers a hook called once per mission completion.
func (pm *PlayerManager) SetCompletionObserver(fn func(steamID uint64, playerName string, m *PlayerMission)) {
	pm.onCompletion = fn
}

// GetPlayer returns the mission state for a connected player, or nil.
func (pm *PlayerManager) GetPlayer(steamID uint64) *MissionPlayer {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.players[steamID]
}

// OnlineCount returns the number of players with mission state.
func (pm *PlayerManager) OnlineCount() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.players)
}

// OnPlayerConnect registers mission state for a new session and starts the
// async store load. Hydration and the assignment top-up land on the game
// loop once the rows arrive.
func (pm *PlayerManager) OnPlayerConnect(s *player.Session) {
	p := &MissionPlayer{
		SteamID: s.SteamID,
		Session: s,
		IsVip:   pm.isVip(s),
	}
	pm.mu.Lock()
	pm.players[s.SteamID] = p
	pm.mu.Unlock()

	go func() {
		loaded := pm.store.GetPlayerMissions(context.Background(), s.SteamID)
		pm.loop.Defer(func() {
			if !p.IsValid() {
				return
			}
			p.Missions = loaded
			p.Loaded = true
			pm.EnsureCorrectMissionCount(p)
			pm.pushState(p)
		})
	}()
}

// OnPlayerDisconnect discards the in-memory state; persisted rows survive.
func (pm *PlayerManager) OnPlayerDisconnect(steamID uint64) {
	pm.mu.Lock()
	delete(pm.players, steamID)
	pm.mu.Unlock()
}

// isVip checks the configured VIP flags and name domain.
func (pm *PlayerManager) isVip(s *player.Session) bool {
	for _, flag := range pm.cfg.VipFlags {
		if s.HasFlag(flag) {
			return true
		}
	}
	if pm.cfg.VipNameDomain != "" &&
		strings.Contains(strings.ToLower(s.Name), strings.ToLower(pm.cfg.VipNameDomain)) {
		return true
	}
	return false
}

// targetCount returns how many missions the player should hold.
func (pm *PlayerManager) targetCount(p *MissionPlayer) int {
	if p.IsVip {
		return pm.cfg.AmountVip
	}
	return pm.cfg.AmountNormal
}

// EnsureCorrectMissionCount tops the player up to the configured mission
// count with fresh assignments from the catalog, skipping definitions the
// player already holds and any flag-restricted ones they cannot take.
// Must run on the game loop.
func (pm *PlayerManager) EnsureCorrectMissionCount(p *MissionPlayer) {
	if !p.Loaded {
		return
	}
	target := pm.targetCount(p)
	for len(p.Missions) < target {
		candidates := pm.availableDefinitions(p)
		if len(candidates) == 0 {
			break
		}
		def := candidates[rand.Intn(len(candidates))]
		expiresAt := pm.reset.CalculateExpirationDate()
		m := def.NewPlayerMission(expiresAt)
		p.Missions = append(p.Missions, m)
		pm.persistNewMission(p, m)
	}
}

// availableDefinitions filters the catalog to definitions the player is
// eligible for and does not already hold.
func (pm *PlayerManager) availableDefinitions(p *MissionPlayer) []*Definition {
	eligible := pm.catalog.AvailableFor(p.HasFlag)
	out := make([]*Definition, 0, len(eligible))
	for _, d := range eligible {
		if !p.HasDefinition(d) {
			out = append(out, d)
		}
	}
	return out
}

// persistNewMission writes the assignment row and backfills the id onto the
// game loop. The mission stays usable in-memory while the write is in flight.
// Runs on the game loop; the goroutine only sees the value snapshot, never
// the live mission the loop keeps mutating.
func (pm *PlayerManager) persistNewMission(p *MissionPlayer, m *PlayerMission) {
	steamID := p.SteamID
	row := *m
	go func() {
		id := pm.store.AddMission(context.Background(), steamID, row, row.ExpiresAt)
		if id <= 0 {
			return
		}
		pm.loop.Defer(func() { m.ID = id })
	}()
}

// RemoveMission drops a mission from memory and from the store.
// Must run on the game loop.
func (pm *PlayerManager) RemoveMission(p *MissionPlayer, m *PlayerMission) {
	for i, cur := range p.Missions {
		if cur == m {
			p.Missions = append(p.Missions[:i], p.Missions[i+1:]...)
			break
		}
	}
	if m.ID > 0 {
		id := m.ID
		go pm.store.RemoveMissions(context.Background(), []int64{id})
	}
}

// HandleExpiredMissions drops expired missions from memory (the sweep has
// already cleared their rows) and tops the player back up.
// Must run on the game loop.
func (pm *PlayerManager) HandleExpiredMissions(p *MissionPlayer) {
	now := pm.reset.now()
	kept := p.Missions[:0]
	for _, m := range p.Missions {
		if m.ExpiresAt != nil && m.ExpiresAt.Before(now) {
			continue
		}
		kept = append(kept, m)
	}
	p.Missions = kept
	pm.EnsureCorrectMissionCount(p)
	pm.pushState(p)
}

// OnMapChange records the new map. Under PerMap mode every player's
// missions are cleared and reassigned. Must run on the game loop.
func (pm *PlayerManager) OnMapChange(mapName string) {
	pm.mu.Lock()
	pm.currentMap = mapName
	pm.mu.Unlock()
	if pm.reset.Mode() != ResetPerMap {
		return
	}
	pm.mu.RLock()
	players := make([]*MissionPlayer, 0, len(pm.players))
	for _, p := range pm.players {
		players = append(players, p)
	}
	pm.mu.RUnlock()

	for _, p := range players {
		if !p.Loaded {
			continue
		}
		ids := make([]int64, 0, len(p.Missions))
		for _, m := range p.Missions {
			if m.ID > 0 {
				ids = append(ids, m.ID)
			}
		}
		p.Missions = nil
		if len(ids) > 0 {
			go pm.store.RemoveMissions(context.Background(), ids)
		}
		pm.EnsureCorrectMissionCount(p)
		pm.pushState(p)
	}
	pm.logger.Info("map changed", zap.String("map", mapName))
}

// SetWarmup toggles the warmup gate. Must run on the game loop.
func (pm *PlayerManager) SetWarmup(active bool) { pm.warmup = active }

// CurrentMap returns the map last reported by the host.
func (pm *PlayerManager) CurrentMap() string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.currentMap
}

// HandleEvent matches one gameplay event against the acting player's
// missions, applies progress, and runs completion handling. Must run on the
// game loop.
func (pm *PlayerManager) HandleEvent(steamID uint64, eventType, target string, props map[string]interface{}) {
	if pm.cfg.EventDebugLogs {
		pm.logger.Debug("gameplay event",
			zap.Uint64("steam_id", steamID),
			zap.String("event", eventType),
			zap.String("target", target),
			zap.Any("properties", props))
	}

	p := pm.GetPlayer(steamID)
	if p == nil || !p.Loaded || !p.IsValid() {
		return
	}
	if pm.sessions.Count() < pm.cfg.MinimumPlayers {
		return
	}
	if pm.warmup && !pm.cfg.AllowProgressDuringWarmup {
		return
	}

	currentMap := pm.CurrentMap()
	var changed []*PlayerMission
	for _, m := range p.Missions {
		if !m.Matches(eventType, target, currentMap, props) {
			continue
		}
		_, completedNow := m.ApplyProgress(1)
		changed = append(changed, m)
		if completedNow {
			pm.handleCompletion(p, m)
		}
	}
	if len(changed) == 0 {
		return
	}

	// Snapshot the mutable columns here on the loop; the write goroutine
	// must never read live mission state.
	updates := make([]MissionUpdate, len(changed))
	for i, m := range changed {
		updates[i] = MissionUpdate{ID: m.ID, Progress: m.Progress, Completed: m.Completed}
	}
	go pm.store.UpdateMissions(context.Background(), updates)
	pm.pushState(p)
}

// handleCompletion fires the one-time completion effects: reward commands,
// notifications, the leaderboard hook, and the reset-mode policy.
// Must run on the game loop.
func (pm *PlayerManager) handleCompletion(p *MissionPlayer, m *PlayerMission) {
	pm.logger.Info("mission completed",
		zap.Uint64("steam_id", p.SteamID),
		zap.String("event", m.Event),
		zap.String("target", m.Target))

	if m.ID > 0 {
		id := m.ID
		go pm.store.CompleteMission(context.Background(), id)
	}

	if pm.runner != nil {
		for _, cmd := range m.RewardCommands {
			pm.runner.Run(p.SteamID, expandCommand(cmd, p))
		}
	}

	if pm.onCompletion != nil {
		pm.onCompletion(p.SteamID, p.Session.Name, m)
	}

	if pm.notifier != nil {
		name := p.Session.Name
		steamID := p.SteamID
		missionText := pm.localize(m.Phrase)
		rewardText := pm.localize(m.RewardPhrase)
		allDone := p.AllCompleted()
		total := len(p.Missions)
		go func() {
			ctx := context.Background()
			pm.notifier.MissionComplete(ctx, name, steamID, missionText, rewardText)
			if allDone {
				pm.notifier.AllMissionsComplete(ctx, name, steamID, total)
			}
		}()
	}

	pm.reset.OnMissionCompleted(p, m)
}

// expandCommand fills {steamid} and {name} placeholders in a reward command.
func expandCommand(cmd string, p *MissionPlayer) string {
	cmd = strings.ReplaceAll(cmd, "{steamid}", strconv.FormatUint(p.SteamID, 10))
	if p.Session != nil {
		cmd = strings.ReplaceAll(cmd, "{name}", p.Session.Name)
	}
	return cmd
}

// missionStatePayload is the per-mission entry in a missions_state packet.
type missionStatePayload struct {
	Event     string `json:"event"`
	Target    string `json:"target"`
	Phrase    string `json:"phrase"`
	Progress  int    `json:"progress"`
	Amount    int    `json:"amount"`
	Completed bool   `json:"completed"`
	DaysLeft  int    `json:"days_left"`
	HoursLeft int    `json:"hours_left"`
	MinsLeft  int    `json:"mins_left"`
}

// pushState sends the player their current mission list.
// Must run on the game loop.
func (pm *PlayerManager) pushState(p *MissionPlayer) {
	if p.Session == nil {
		return
	}
	entries := make([]missionStatePayload, 0, len(p.Missions))
	for _, m := range p.Missions {
		e := missionStatePayload{
			Event:     m.Event,
			Target:    m.Target,
			Phrase:    m.Phrase,
			Progress:  m.Progress,
			Amount:    m.Amount,
			Completed: m.Completed,
		}
		if m.ExpiresAt != nil {
			e.DaysLeft, e.HoursLeft, e.MinsLeft = pm.reset.TimeUntilExpiration(*m.ExpiresAt)
		}
		entries = append(entries, e)
	}
	payload, err := json.Marshal(map[string]interface{}{"missions": entries})
	if err != nil {
		return
	}
	p.Session.Send(&player.Packet{Type: "missions_state", Payload: payload})
}

// PushState defers a mission-list push for steamID onto the game loop.
func (pm *PlayerManager) PushState(steamID uint64) {
	pm.loop.Defer(func() {
		if p := pm.GetPlayer(steamID); p != nil && p.IsValid() {
			pm.pushState(p)
		}
	})
}
