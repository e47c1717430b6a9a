package model

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Mission is one mission assignment row for a player.
type Mission struct {
	ID              int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	SteamID64       uint64         `gorm:"column:steamid64;index:idx_steamid;not null" json:"steamid64"`
	Event           string         `gorm:"column:event;size:64;not null" json:"event"`
	Target          string         `gorm:"column:target;size:64;not null" json:"target"`
	Amount          int            `gorm:"column:amount;not null" json:"amount"`
	Phrase          string         `gorm:"column:phrase;size:255;not null" json:"phrase"`
	RewardPhrase    string         `gorm:"column:reward_phrase;size:255;not null" json:"reward_phrase"`
	RewardCommands  string         `gorm:"column:reward_commands;type:text;not null" json:"reward_commands"` // pipe-separated
	EventProperties datatypes.JSON `gorm:"column:event_properties" json:"event_properties"`                  // filter literals, null when unrestricted
	MapName         *string        `gorm:"column:map_name;size:128" json:"map_name"`
	Progress        int            `gorm:"column:progress;not null;default:0" json:"progress"`
	Completed       bool           `gorm:"column:completed;not null;default:false" json:"completed"`
	ExpiresAt       *time.Time     `gorm:"column:expires_at;index:idx_expires_at" json:"expires_at"`
}

// RewardCommandList splits the pipe-separated reward commands, dropping empties.
func (m *Mission) RewardCommandList() []string {
	parts := strings.Split(m.RewardCommands, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinRewardCommands builds the stored pipe-separated form.
func JoinRewardCommands(cmds []string) string {
	return strings.Join(cmds, "|")
}
