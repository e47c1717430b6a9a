package mission

import (
	"context"
	"testing"
	"time"

	"github.com/missionforge/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(testutil.SetupTestDB(t), zap.NewNop())
	require.True(t, s.Initialize(context.Background()))
	return s
}

func TestStore_AddAndGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	exp := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	m := &PlayerMission{
		ID:             -1,
		Event:          "player_kill",
		Target:         "enemy",
		Amount:         5,
		Phrase:         "kill_five",
		RewardPhrase:   "reward_small",
		RewardCommands: []string{"credits add {steamid} 100", "say gg"},
		EventProperties: map[string]FilterValue{
			"headshot": {Kind: KindBool, Bool: true},
			"weapon":   {Kind: KindString, Str: "ak"},
			"distance": {Kind: KindFloat, Float: 12.5},
			"streak":   {Kind: KindInt, Int: 3},
		},
		MapName: strPtr("de_dust2"),
	}

	id := s.AddMission(ctx, 42, *m, &exp)
	require.Positive(t, id)

	got := s.GetPlayerMissions(ctx, 42)
	require.Len(t, got, 1)
	r := got[0]
	assert.Equal(t, id, r.ID)
	assert.Equal(t, "player_kill", r.Event)
	assert.Equal(t, "enemy", r.Target)
	assert.Equal(t, 5, r.Amount)
	assert.Equal(t, "kill_five", r.Phrase)
	assert.Equal(t, []string{"credits add {steamid} 100", "say gg"}, r.RewardCommands)
	assert.Equal(t, m.EventProperties, r.EventProperties)
	require.NotNil(t, r.MapName)
	assert.Equal(t, "de_dust2", *r.MapName)
	require.NotNil(t, r.ExpiresAt)
	assert.True(t, exp.Equal(r.ExpiresAt.UTC()))
	// Fresh rows always start clean regardless of in-memory state.
	assert.Zero(t, r.Progress)
	assert.False(t, r.Completed)

	assert.Empty(t, s.GetPlayerMissions(ctx, 777), "other players see nothing")
}

func TestStore_UpdateMissions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := PlayerMission{ID: -1, Event: "player_kill", Target: "enemy", Amount: 5}
	m.ID = s.AddMission(ctx, 1, m, nil)
	require.Positive(t, m.ID)

	s.UpdateMissions(ctx, []MissionUpdate{
		{ID: m.ID, Progress: 3},
		{ID: -1, Progress: 1}, // never persisted, must be skipped
	})

	got := s.GetPlayerMissions(ctx, 1)
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].Progress)
}

func TestStore_CompleteMission_TransitionsOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := PlayerMission{ID: -1, Event: "player_kill", Target: "enemy", Amount: 1}
	id := s.AddMission(ctx, 1, m, nil)
	require.Positive(t, id)

	assert.True(t, s.CompleteMission(ctx, id))
	assert.False(t, s.CompleteMission(ctx, id), "second completion must report false")
	assert.False(t, s.CompleteMission(ctx, 99999))

	got := s.GetPlayerMissions(ctx, 1)
	require.Len(t, got, 1)
	assert.True(t, got[0].Completed)
}

func TestStore_RemoveMissions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id1 := s.AddMission(ctx, 1, PlayerMission{ID: -1, Event: "a", Target: "t", Amount: 1}, nil)
	id2 := s.AddMission(ctx, 1, PlayerMission{ID: -1, Event: "b", Target: "t", Amount: 1}, nil)
	require.Positive(t, id1)
	require.Positive(t, id2)

	s.RemoveMissions(ctx, []int64{id1, -1, 0})
	got := s.GetPlayerMissions(ctx, 1)
	require.Len(t, got, 1)
	assert.Equal(t, id2, got[0].ID)
}

func TestStore_ExpiredSweepQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	s.AddMission(ctx, 10, PlayerMission{ID: -1, Event: "a", Target: "t", Amount: 1}, &past)
	s.AddMission(ctx, 10, PlayerMission{ID: -1, Event: "b", Target: "t", Amount: 1}, &future)
	s.AddMission(ctx, 20, PlayerMission{ID: -1, Event: "c", Target: "t", Amount: 1}, &past)
	s.AddMission(ctx, 30, PlayerMission{ID: -1, Event: "d", Target: "t", Amount: 1}, nil)

	ids := s.PlayersWithExpiredMissions(ctx, now)
	assert.ElementsMatch(t, []uint64{10, 20}, ids)

	s.CleanupExpiredMissions(ctx, now)
	assert.Len(t, s.GetPlayerMissions(ctx, 10), 1, "unexpired row survives")
	assert.Empty(t, s.GetPlayerMissions(ctx, 20))
	assert.Len(t, s.GetPlayerMissions(ctx, 30), 1, "rows without expiry are never swept")
	assert.Empty(t, s.PlayersWithExpiredMissions(ctx, now))
}

func TestStore_DisabledDegradesSafely(t *testing.T) {
	s := NewStore(testutil.SetupTestDB(t), zap.NewNop())
	ctx := context.Background()

	assert.False(t, s.Enabled())
	assert.Nil(t, s.GetPlayerMissions(ctx, 1))
	assert.Equal(t, int64(-1), s.AddMission(ctx, 1, PlayerMission{ID: -1, Event: "a", Target: "t", Amount: 1}, nil))
	assert.False(t, s.CompleteMission(ctx, 1))
	assert.Nil(t, s.PlayersWithExpiredMissions(ctx, time.Now()))
	// No-ops must not panic.
	s.UpdateMissions(ctx, []MissionUpdate{{ID: 1}})
	s.RemoveMissions(ctx, []int64{1})
	s.CleanupExpiredMissions(ctx, time.Now())
}
