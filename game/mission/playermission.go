package mission

import (
	"strings"
	"time"
)

// PlayerMission is a mission assigned to one player, carrying live progress.
// Progress only grows until the mission is removed, and Completed flips
// false→true exactly once. Missions are only ever removed by the reset
// service (sweep) or the player manager (instant replace, per-map reset).
type PlayerMission struct {
	// ID is the database row id; -1 until the first persistence write.
	ID              int64
	Event           string
	Target          string
	Amount          int
	Phrase          string
	RewardPhrase    string
	RewardCommands  []string
	EventProperties map[string]FilterValue
	MapName         *string
	Flag            *string
	Progress        int
	Completed       bool
	// ExpiresAt is nil under PerMap and Instant modes.
	ExpiresAt *time.Time
}

// Matches reports whether a gameplay event advances this mission.
// Checks run in order and short-circuit: completion, event/target tags
// (case-insensitive), map restriction (exact), then every property filter.
func (m *PlayerMission) Matches(eventType, target, currentMap string, props map[string]interface{}) bool {
	if m.Completed {
		return false
	}

	if !strings.EqualFold(m.Event, eventType) || !strings.EqualFold(m.Target, target) {
		return false
	}

	if m.MapName != nil && *m.MapName != currentMap {
		return false
	}

	if len(m.EventProperties) > 0 {
		if !m.matchesProperties(props) {
			return false
		}
	}

	return true
}

// matchesProperties requires every filter key to be present with a non-nil
// value that passes its comparison rule.
func (m *PlayerMission) matchesProperties(props map[string]interface{}) bool {
	for key, want := range m.EventProperties {
		got, ok := props[key]
		if !ok || got == nil {
			return false
		}
		if !want.Compare(got) {
			return false
		}
	}
	return true
}

// ApplyProgress adds by to the progress counter, capped at Amount, and
// reports the new progress and whether the mission completed on this call.
func (m *PlayerMission) ApplyProgress(by int) (int, bool) {
	if m.Completed || by <= 0 {
		return m.Progress, false
	}
	m.Progress += by
	if m.Progress >= m.Amount {
		m.Progress = m.Amount
		m.Completed = true
		return m.Progress, true
	}
	return m.Progress, false
}
