package mission

import "time"

// Definition is one immutable mission template from missions.json.
type Definition struct {
	Event           string                 `json:"event"`
	EventProperties map[string]FilterValue `json:"eventProperties"`
	Target          string                 `json:"target"`
	RewardCommands  []string               `json:"rewardCommands"`
	Amount          int                    `json:"amount"`
	Phrase          string                 `json:"phrase"`
	RewardPhrase    string                 `json:"rewardPhrase"`
	Flag            *string                `json:"flag"`
	MapName         *string                `json:"mapName"`
}

// NewPlayerMission creates a fresh assignment instance from this template.
func (d *Definition) NewPlayerMission(expiresAt *time.Time) *PlayerMission {
	return &PlayerMission{
		ID:              -1,
		Event:           d.Event,
		Target:          d.Target,
		Amount:          d.Amount,
		Phrase:          d.Phrase,
		RewardPhrase:    d.RewardPhrase,
		RewardCommands:  append([]string(nil), d.RewardCommands...),
		EventProperties: d.EventProperties,
		MapName:         d.MapName,
		Flag:            d.Flag,
		ExpiresAt:       expiresAt,
	}
}
