package player

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SessionManager maintains the registry of all connected Sessions.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[uint64]*Session // steamID → session
	logger   *zap.Logger
}

// NewSessionManager creates a new SessionManager.
func NewSessionManager(logger *zap.Logger) *SessionManager {
	return &SessionManager{
		sessions: make(map[uint64]*Session),
		logger:   logger,
	}
}

// Register adds a session. If a previous session exists for the same
// steamID, it is closed first (handles duplicate login / reconnect).
func (sm *SessionManager) Register(s *Session) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if old, ok := sm.sessions[s.SteamID]; ok {
		old.Close()
		sm.logger.Info("duplicate session displaced",
			zap.Uint64("steam_id", s.SteamID))
	}
	sm.sessions[s.SteamID] = s
	sm.logger.Info("player session registered",
		zap.Uint64("steam_id", s.SteamID),
		zap.String("name", s.Name))
}

// Unregister removes the session for a steamID.
func (sm *SessionManager) Unregister(steamID uint64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, steamID)
	sm.logger.Info("player session unregistered", zap.Uint64("steam_id", steamID))
}

// Get returns the session for a steamID, or nil if not found.
func (sm *SessionManager) Get(steamID uint64) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[steamID]
}

// IsOnline reports whether a player is currently connected.
func (sm *SessionManager) IsOnline(steamID uint64) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	_, ok := sm.sessions[steamID]
	return ok
}

// Count returns the number of currently connected sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// All returns a snapshot slice of all current sessions.
func (sm *SessionManager) All() []*Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	out := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		out = append(out, s)
	}
	return out
}

// BroadcastToAll sends a packet to every connected session. Non-blocking per
// session so one slow connection cannot stall the broadcast.
func (sm *SessionManager) BroadcastToAll(pkt *Packet) {
	data, err := json.Marshal(pkt)
	if err != nil {
		sm.logger.Error("failed to marshal broadcast packet", zap.Error(err))
		return
	}
	for _, s := range sm.All() {
		s.SendRaw(data)
	}
}

// CloseAllSessions gracefully closes all connected sessions.
func (sm *SessionManager) CloseAllSessions() {
	sessions := sm.All()
	sm.logger.Info("closing all sessions", zap.Int("count", len(sessions)))
	for _, s := range sessions {
		s.Close()
	}

	// Wait for the read pumps to unregister themselves (bounded).
	maxWait := 10 * time.Second
	start := time.Now()
	for time.Since(start) < maxWait {
		if sm.Count() == 0 {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
}
