package model

import "time"

// CompletionLog is one historical mission completion. Rows outlive mission
// resets, so lifetime statistics stay correct after sweeps.
type CompletionLog struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	SteamID64   uint64    `gorm:"column:steamid64;index:idx_completions_steamid"`
	Name        string    `gorm:"column:name;size:64"`
	Event       string    `gorm:"column:event;size:64"`
	Target      string    `gorm:"column:target;size:64"`
	Phrase      string    `gorm:"column:phrase;size:128"`
	MapName     string    `gorm:"column:map_name;size:64"`
	CompletedAt time.Time `gorm:"column:completed_at;index"`
}
