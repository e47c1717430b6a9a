package mission

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/missionforge/server/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, 0, time.UTC)
}

func TestExpirationDate_Daily(t *testing.T) {
	now := date(2026, time.March, 4, 15, 30, 0)
	got := ExpirationDate(ResetDaily, now)
	require.NotNil(t, got)
	assert.Equal(t, date(2026, time.March, 4, 23, 59, 59), *got)
}

func TestExpirationDate_Weekly_MidWeek(t *testing.T) {
	// 2026-03-04 is a Wednesday; the cycle ends the coming Sunday.
	now := date(2026, time.March, 4, 12, 0, 0)
	got := ExpirationDate(ResetWeekly, now)
	require.NotNil(t, got)
	assert.Equal(t, date(2026, time.March, 8, 23, 59, 59), *got)
	assert.Equal(t, time.Sunday, got.Weekday())
}

func TestExpirationDate_Weekly_OnSunday(t *testing.T) {
	// On a Sunday the boundary is the following Sunday, a full week out.
	now := date(2026, time.March, 1, 9, 0, 0)
	require.Equal(t, time.Sunday, now.Weekday())
	got := ExpirationDate(ResetWeekly, now)
	require.NotNil(t, got)
	assert.Equal(t, date(2026, time.March, 8, 23, 59, 59), *got)
}

func TestExpirationDate_Monthly(t *testing.T) {
	tests := []struct {
		now  time.Time
		want time.Time
	}{
		{date(2026, time.February, 10, 8, 0, 0), date(2026, time.February, 28, 23, 59, 59)},
		{date(2026, time.August, 15, 8, 0, 0), date(2026, time.August, 31, 23, 59, 59)},
		{date(2028, time.February, 1, 8, 0, 0), date(2028, time.February, 29, 23, 59, 59)}, // leap year
	}
	for _, tt := range tests {
		got := ExpirationDate(ResetMonthly, tt.now)
		require.NotNil(t, got)
		assert.Equal(t, tt.want, *got)
	}
}

func TestExpirationDate_NoExpiryModes(t *testing.T) {
	now := date(2026, time.March, 4, 12, 0, 0)
	assert.Nil(t, ExpirationDate(ResetPerMap, now))
	assert.Nil(t, ExpirationDate(ResetInstant, now))
}

func TestTimeUntil(t *testing.T) {
	now := date(2026, time.March, 4, 12, 0, 0)

	days, hours, mins := TimeUntil(now.Add(49*time.Hour+30*time.Minute), now)
	assert.Equal(t, 2, days)
	assert.Equal(t, 1, hours)
	assert.Equal(t, 30, mins)

	days, hours, mins = TimeUntil(now.Add(45*time.Minute), now)
	assert.Equal(t, 0, days)
	assert.Equal(t, 0, hours)
	assert.Equal(t, 45, mins)
}

func TestTimeUntil_ExpiredIsZero(t *testing.T) {
	now := date(2026, time.March, 4, 12, 0, 0)
	days, hours, mins := TimeUntil(now.Add(-time.Hour), now)
	assert.Zero(t, days)
	assert.Zero(t, hours)
	assert.Zero(t, mins)

	days, hours, mins = TimeUntil(now, now)
	assert.Zero(t, days)
	assert.Zero(t, hours)
	assert.Zero(t, mins)
}

func TestParseResetMode(t *testing.T) {
	for in, want := range map[string]ResetMode{
		"daily":   ResetDaily,
		"Weekly":  ResetWeekly,
		"MONTHLY": ResetMonthly,
		"instant": ResetInstant,
		"permap":  ResetPerMap,
		"per_map": ResetPerMap,
	} {
		got, err := ParseResetMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseResetMode("hourly")
	assert.Error(t, err)
}

func TestResetMode_HasExpiration(t *testing.T) {
	assert.True(t, ResetDaily.HasExpiration())
	assert.True(t, ResetWeekly.HasExpiration())
	assert.True(t, ResetMonthly.HasExpiration())
	assert.False(t, ResetPerMap.HasExpiration())
	assert.False(t, ResetInstant.HasExpiration())
}

func TestCheckForExpiredMissions_NothingExpired(t *testing.T) {
	ts := newTestStack(t, baseConfig(), ResetDaily, twoDefs)

	future := time.Now().Add(time.Hour)
	m := PlayerMission{ID: -1, Event: "player_kill", Target: "enemy", Amount: 5}
	id := ts.store.AddMission(context.Background(), 1234, m, &future)
	require.Positive(t, id)

	ts.reset.CheckForExpiredMissions(context.Background())

	assert.Len(t, ts.store.GetPlayerMissions(context.Background(), 1234), 1,
		"an unexpired row survives the sweep")
	_, _, resets := ts.notifier.counts()
	assert.Zero(t, resets, "an empty sweep must not notify")
}

func TestCheckForExpiredMissions_ClearsRowsAndNotifiesOnce(t *testing.T) {
	ts := newTestStack(t, baseConfig(), ResetDaily, twoDefs)

	past := time.Now().Add(-time.Hour)
	m := PlayerMission{ID: -1, Event: "player_kill", Target: "enemy", Amount: 5, ExpiresAt: &past}
	id := ts.store.AddMission(context.Background(), 1234, m, &past)
	require.Positive(t, id)

	ts.reset.CheckForExpiredMissions(context.Background())

	assert.Empty(t, ts.store.GetPlayerMissions(context.Background(), 1234))
	_, _, resets := ts.notifier.counts()
	assert.Equal(t, 1, resets)
}

func TestCheckForExpiredMissions_SweepTopsUpOnlinePlayer(t *testing.T) {
	ts := newTestStack(t, baseConfig(), ResetDaily, twoDefs)
	ts.connect(t, 1, "alice")

	// Force the player's mission into the past, in memory and in the store.
	past := time.Now().Add(-time.Minute)
	require.Eventually(t, func() bool {
		ms := ts.missions(1)
		return len(ms) == 1 && ms[0].ID > 0
	}, 2*time.Second, 10*time.Millisecond)
	var rowID int64
	ts.run(func() {
		p := ts.pm.GetPlayer(1)
		require.Len(t, p.Missions, 1)
		p.Missions[0].ExpiresAt = &past
		rowID = p.Missions[0].ID
	})
	require.NoError(t, ts.store.db.Model(&model.Mission{}).
		Where("id = ?", rowID).Update("expires_at", past).Error)

	ts.reset.CheckForExpiredMissions(context.Background())

	// The expired mission is dropped and a fresh one assigned.
	require.Eventually(t, func() bool {
		ms := ts.missions(1)
		return len(ms) == 1 && (ms[0].ExpiresAt == nil || ms[0].ExpiresAt.After(time.Now()))
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSetMode_ReArmsTimer(t *testing.T) {
	ts := newTestStack(t, baseConfig(), ResetPerMap, twoDefs)

	ts.reset.StartExpirationTimer(time.Hour)
	assert.Empty(t, ts.reset.sched.Tasks(), "no sweep for modes without expiration")

	ts.reset.SetMode(ResetDaily, time.Hour)
	assert.Equal(t, []string{expirationTaskName}, ts.reset.sched.Tasks())

	ts.reset.SetMode(ResetInstant, time.Hour)
	assert.Empty(t, ts.reset.sched.Tasks())
}

func TestSetMode_ConcurrentWithReads(t *testing.T) {
	ts := newTestStack(t, baseConfig(), ResetDaily, twoDefs)

	// Mode switches arrive from the admin API while the loop and the sweep
	// keep reading the mode.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = ts.reset.Mode()
			_ = ts.reset.CalculateExpirationDate()
		}
	}()
	go func() {
		defer wg.Done()
		modes := []ResetMode{ResetWeekly, ResetInstant, ResetMonthly}
		for i := 0; i < 100; i++ {
			ts.reset.SetMode(modes[i%len(modes)], time.Hour)
		}
	}()
	wg.Wait()

	ts.reset.SetMode(ResetDaily, time.Hour)
	assert.Equal(t, ResetDaily, ts.reset.Mode())
	assert.Equal(t, []string{expirationTaskName}, ts.reset.sched.Tasks())
}
