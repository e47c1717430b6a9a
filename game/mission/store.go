package mission

import (
	"context"
	"encoding/json"
	"time"

	"github.com/missionforge/server/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Store persists mission assignments. Every operation converts faults into
// safe values (empty list, -1, false, no-op) so callers never see an error;
// after a failed Initialize the store stays disabled and the engine runs
// in-memory only.
type Store struct {
	db      *gorm.DB
	enabled bool
	logger  *zap.Logger
}

// NewStore creates a Store. Call Initialize before use.
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Initialize brings up the schema. Idempotent; failure disables persistence.
func (s *Store) Initialize(ctx context.Context) bool {
	if err := s.db.WithContext(ctx).AutoMigrate(&model.Mission{}); err != nil {
		s.logger.Error("failed to initialize mission table, missions will not persist", zap.Error(err))
		s.enabled = false
		return false
	}
	s.enabled = true
	return true
}

// Enabled reports whether persistence is available.
func (s *Store) Enabled() bool { return s.enabled }

// GetPlayerMissions loads all stored missions for one player.
func (s *Store) GetPlayerMissions(ctx context.Context, steamID uint64) []*PlayerMission {
	if !s.enabled {
		return nil
	}
	var rows []model.Mission
	if err := s.db.WithContext(ctx).Where("steamid64 = ?", steamID).Find(&rows).Error; err != nil {
		s.logger.Error("failed to load missions", zap.Uint64("steam_id", steamID), zap.Error(err))
		return nil
	}
	out := make([]*PlayerMission, 0, len(rows))
	for i := range rows {
		out = append(out, fromRow(&rows[i]))
	}
	return out
}

// AddMission inserts a new assignment row and returns its id, or -1.
// m is taken by value: callers snapshot the mission on the game loop and the
// store never touches live loop-owned state.
func (s *Store) AddMission(ctx context.Context, steamID uint64, m PlayerMission, expiresAt *time.Time) int64 {
	if !s.enabled {
		return -1
	}
	row := toRow(steamID, &m)
	row.ID = 0
	row.Progress = 0
	row.Completed = false
	row.ExpiresAt = expiresAt
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		s.logger.Error("failed to add mission", zap.Uint64("steam_id", steamID), zap.Error(err))
		return -1
	}
	return row.ID
}

// MissionUpdate is a value snapshot of the mutable columns of one row,
// taken on the game loop before the write is handed to a goroutine.
type MissionUpdate struct {
	ID        int64
	Progress  int
	Completed bool
}

// UpdateMissions batch-writes progress and completion for persisted rows in
// one transaction. Rows without an id are skipped. Idempotent per row.
func (s *Store) UpdateMissions(ctx context.Context, updates []MissionUpdate) {
	if !s.enabled {
		return
	}
	persisted := make([]MissionUpdate, 0, len(updates))
	for _, u := range updates {
		if u.ID > 0 {
			persisted = append(persisted, u)
		}
	}
	if len(persisted) == 0 {
		return
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range persisted {
			if err := tx.Model(&model.Mission{}).Where("id = ?", u.ID).
				Updates(map[string]interface{}{
					"progress":  u.Progress,
					"completed": u.Completed,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to batch update missions", zap.Error(err))
	}
}

// RemoveMissions deletes the given row ids; non-persisted ids are ignored.
func (s *Store) RemoveMissions(ctx context.Context, ids []int64) {
	if !s.enabled {
		return
	}
	valid := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id > 0 {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return
	}
	if err := s.db.WithContext(ctx).Delete(&model.Mission{}, valid).Error; err != nil {
		s.logger.Error("failed to remove missions", zap.Error(err))
	}
}

// CompleteMission marks a row completed; true only on the incomplete→complete
// transition, so rewards fire once even under concurrent writers.
func (s *Store) CompleteMission(ctx context.Context, id int64) bool {
	if !s.enabled || id <= 0 {
		return false
	}
	res := s.db.WithContext(ctx).Model(&model.Mission{}).
		Where("id = ? AND completed = ?", id, false).
		Update("completed", true)
	if res.Error != nil {
		s.logger.Error("failed to complete mission", zap.Int64("id", id), zap.Error(res.Error))
		return false
	}
	return res.RowsAffected > 0
}

// PlayersWithExpiredMissions returns the distinct identities holding at
// least one expired row as of now.
func (s *Store) PlayersWithExpiredMissions(ctx context.Context, now time.Time) []uint64 {
	if !s.enabled {
		return nil
	}
	var ids []uint64
	err := s.db.WithContext(ctx).Model(&model.Mission{}).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Distinct().Pluck("steamid64", &ids).Error
	if err != nil {
		s.logger.Error("failed to query players with expired missions", zap.Error(err))
		return nil
	}
	return ids
}

// CleanupExpiredMissions bulk-deletes every expired row as of now.
func (s *Store) CleanupExpiredMissions(ctx context.Context, now time.Time) {
	if !s.enabled {
		return
	}
	if err := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Delete(&model.Mission{}).Error; err != nil {
		s.logger.Error("failed to cleanup expired missions", zap.Error(err))
	}
}

// toRow converts an in-memory mission to its persistence row.
func toRow(steamID uint64, m *PlayerMission) *model.Mission {
	row := &model.Mission{
		ID:             m.ID,
		SteamID64:      steamID,
		Event:          m.Event,
		Target:         m.Target,
		Amount:         m.Amount,
		Phrase:         m.Phrase,
		RewardPhrase:   m.RewardPhrase,
		RewardCommands: model.JoinRewardCommands(m.RewardCommands),
		MapName:        m.MapName,
		Progress:       m.Progress,
		Completed:      m.Completed,
		ExpiresAt:      m.ExpiresAt,
	}
	if len(m.EventProperties) > 0 {
		if data, err := json.Marshal(m.EventProperties); err == nil {
			row.EventProperties = datatypes.JSON(data)
		}
	}
	return row
}

// fromRow hydrates a persistence row back into a PlayerMission.
func fromRow(row *model.Mission) *PlayerMission {
	m := &PlayerMission{
		ID:             row.ID,
		Event:          row.Event,
		Target:         row.Target,
		Amount:         row.Amount,
		Phrase:         row.Phrase,
		RewardPhrase:   row.RewardPhrase,
		RewardCommands: row.RewardCommandList(),
		MapName:        row.MapName,
		Progress:       row.Progress,
		Completed:      row.Completed,
		ExpiresAt:      row.ExpiresAt,
	}
	if len(row.EventProperties) > 0 {
		var props map[string]FilterValue
		if err := json.Unmarshal(row.EventProperties, &props); err == nil {
			m.EventProperties = props
		}
	}
	return m
}
