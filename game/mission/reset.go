package mission

import (
	"context"
	"sync"
	"time"

	"github.com/missionforge/server/game/loop"
	"github.com/missionforge/server/scheduler"
	"go.uber.org/zap"
)

const expirationTaskName = "mission_expiration"

// Notifier is the outbound notification port. Implementations must never
// let a send failure escape; the engine treats every call as fire-and-forget.
type Notifier interface {
	MissionComplete(ctx context.Context, playerName string, steamID uint64, missionText, rewardText string)
	AllMissionsComplete(ctx context.Context, playerName string, steamID uint64, totalMissions int)
	Reset(ctx context.Context, resetMode string, nextReset time.Time)
}

// ResetService owns the reset-mode policy: it computes expiration
// timestamps, runs the periodic expiration sweep, and drives the
// instant-mode replace-on-completion path.
type ResetService struct {
	// modeMu guards mode: the admin API switches it at runtime while the
	// game loop and the sweep goroutine read it.
	modeMu   sync.RWMutex
	mode     ResetMode
	store    *Store
	sched    *scheduler.Scheduler
	loop     *loop.Loop
	notifier Notifier
	players  *PlayerManager
	logger   *zap.Logger

	// now is injectable so expiration arithmetic is deterministic in tests.
	now func() time.Time
}

// NewResetService creates a ResetService. Call SetPlayerManager before
// starting the timer; the manager and reset service reference each other.
func NewResetService(mode ResetMode, store *Store, sched *scheduler.Scheduler, lp *loop.Loop, notifier Notifier, logger *zap.Logger) *ResetService {
	return &ResetService{
		mode:     mode,
		store:    store,
		sched:    sched,
		loop:     lp,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// SetPlayerManager wires the orchestrator the sweep hands expired players to.
func (s *ResetService) SetPlayerManager(pm *PlayerManager) { s.players = pm }

// SetClock replaces the time source (tests).
func (s *ResetService) SetClock(now func() time.Time) { s.now = now }

// Mode returns the active reset mode.
func (s *ResetService) Mode() ResetMode {
	s.modeMu.RLock()
	defer s.modeMu.RUnlock()
	return s.mode
}

// StartExpirationTimer arms the periodic sweep. PerMap and Instant modes
// carry no expiration timestamps and never schedule it.
func (s *ResetService) StartExpirationTimer(interval time.Duration) {
	if !s.Mode().HasExpiration() {
		return
	}
	if interval <= 0 {
		interval = 60 * time.Second
	}
	s.sched.AddTicker(expirationTaskName, interval, func() {
		s.CheckForExpiredMissions(context.Background())
	})
}

// StopExpirationTimer cancels the sweep. Safe to call when not armed.
func (s *ResetService) StopExpirationTimer() {
	s.sched.Remove(expirationTaskName)
}

// SetMode switches the reset policy at runtime, re-arming or cancelling the
// sweep timer as needed. The scheduler replaces the task by name, so two
// sweeps never run concurrently.
func (s *ResetService) SetMode(mode ResetMode, interval time.Duration) {
	s.StopExpirationTimer()
	s.modeMu.Lock()
	s.mode = mode
	s.modeMu.Unlock()
	s.StartExpirationTimer(interval)
	s.logger.Info("reset mode changed", zap.String("mode", mode.String()))
}

// CalculateExpirationDate returns the expiration timestamp a newly assigned
// mission gets under the active mode, or nil for PerMap/Instant.
func (s *ResetService) CalculateExpirationDate() *time.Time {
	return ExpirationDate(s.Mode(), s.now())
}

// ExpirationDate is the pure form of the expiration boundary arithmetic.
func ExpirationDate(mode ResetMode, now time.Time) *time.Time {
	switch mode {
	case ResetDaily:
		// End of today, 23:59:59.
		t := startOfDay(now).AddDate(0, 0, 1).Add(-time.Second)
		return &t
	case ResetWeekly:
		t := endOfWeek(now)
		return &t
	case ResetMonthly:
		// Day 0 of next month is the last day of this month.
		t := time.Date(now.Year(), now.Month()+1, 0, 23, 59, 59, 0, now.Location())
		return &t
	default:
		// Instant and PerMap don't use expiration.
		return nil
	}
}

// endOfWeek returns next Sunday 23:59:59; when now is already a Sunday, the
// following Sunday.
func endOfWeek(now time.Time) time.Time {
	daysUntilSunday := (int(time.Sunday) - int(now.Weekday()) + 7) % 7
	if daysUntilSunday == 0 {
		daysUntilSunday = 7
	}
	return startOfDay(now).AddDate(0, 0, daysUntilSunday+1).Add(-time.Second)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// CheckForExpiredMissions runs one sweep tick: find identities holding
// expired rows, bulk-delete those rows, hand each online player to the
// orchestrator on the game loop, then fire a best-effort reset notification.
// The store clears before anyone is notified, so a notification never
// precedes data consistency. A tick with nothing expired does no writes and
// sends nothing.
func (s *ResetService) CheckForExpiredMissions(ctx context.Context) {
	now := s.now()

	expired := s.store.PlayersWithExpiredMissions(ctx, now)
	if len(expired) == 0 {
		return
	}

	s.store.CleanupExpiredMissions(ctx, now)

	for _, steamID := range expired {
		p := s.players.GetPlayer(steamID)
		if p == nil || !p.IsValid() {
			continue
		}
		s.loop.Defer(func() {
			if p.IsValid() {
				s.players.HandleExpiredMissions(p)
			}
		})
	}

	s.sendResetNotification(ctx)
}

func (s *ResetService) sendResetNotification(ctx context.Context) {
	if s.notifier == nil {
		return
	}
	nextReset := s.CalculateExpirationDate()
	if nextReset == nil {
		t := s.now().AddDate(0, 0, 1)
		nextReset = &t
	}
	s.notifier.Reset(ctx, s.Mode().String(), *nextReset)
}

// OnMissionCompleted applies the reset-mode completion policy. Under
// Instant, the completed mission is removed and the player topped back up
// on the next game-loop tick; every other mode leaves it in place until the
// boundary sweep.
func (s *ResetService) OnMissionCompleted(p *MissionPlayer, m *PlayerMission) {
	if s.Mode() != ResetInstant {
		return
	}
	s.loop.Defer(func() {
		if !p.IsValid() {
			return
		}
		s.players.RemoveMission(p, m)
		s.players.EnsureCorrectMissionCount(p)
	})
}

// TimeUntilExpiration returns whole days, leftover hours, and leftover
// minutes until expiresAt, all zero once expired.
func (s *ResetService) TimeUntilExpiration(expiresAt time.Time) (days, hours, minutes int) {
	return TimeUntil(expiresAt, s.now())
}

// TimeUntil is the pure form of the display helper. Never negative.
func TimeUntil(expiresAt, now time.Time) (days, hours, minutes int) {
	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return 0, 0, 0
	}
	totalHours := int(remaining.Hours())
	return totalHours / 24, totalHours % 24, int(remaining.Minutes()) % 60
}
