package mission

import "github.com/missionforge/server/game/player"

// MissionPlayer is the transient mission state of one connected player.
// It lives only for the session: created on connect, discarded on
// disconnect. Its Missions slice is mutated exclusively on the game loop.
type MissionPlayer struct {
	SteamID uint64
	Session *player.Session

	// Missions holds the currently assigned mission instances, in
	// assignment order.
	Missions []*PlayerMission

	// Loaded flips true once the store round-trip has completed.
	Loaded bool

	// IsVip is derived from the configured flags / name domain at load time.
	IsVip bool
}

// AllCompleted reports whether the player holds missions and has finished
// every one of them.
func (p *MissionPlayer) AllCompleted() bool {
	if len(p.Missions) == 0 {
		return false
	}
	for _, m := range p.Missions {
		if !m.Completed {
			return false
		}
	}
	return true
}

// IsValid reports whether the player is still connected.
func (p *MissionPlayer) IsValid() bool {
	return p.Session != nil && !p.Session.IsClosed()
}

// HasFlag reports whether the player holds the given permission flag.
func (p *MissionPlayer) HasFlag(flag string) bool {
	return p.Session != nil && p.Session.HasFlag(flag)
}

// HasDefinition reports whether a mission derived from def is already
// assigned, keyed by event, target, and phrase.
func (p *MissionPlayer) HasDefinition(def *Definition) bool {
	for _, m := range p.Missions {
		if m.Event == def.Event && m.Target == def.Target && m.Phrase == def.Phrase {
			return true
		}
	}
	return false
}
