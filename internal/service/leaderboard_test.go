package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestRecordDailyClicks_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.newPlayer(t)

	require.NoError(t, env.leaderboard.RecordDailyClicks(ctx, id, day1, 42))
	first, err := env.store.GetDailyEntry(ctx, id, day1)
	require.NoError(t, err)

	env.clock.Advance(time.Minute)
	require.NoError(t, env.leaderboard.RecordDailyClicks(ctx, id, day1, 42))
	second, err := env.store.GetDailyEntry(ctx, id, day1)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	// The cache sees the original reach time both times.
	records := env.cache.recorded()
	require.Len(t, records, 2)
	assert.True(t, records[1].reachedAt.Equal(first.UpdatedAt))
}

func TestRecordDailyClicks_LastWriteWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.newPlayer(t)

	require.NoError(t, env.leaderboard.RecordDailyClicks(ctx, id, day1, 42))
	require.NoError(t, env.leaderboard.RecordDailyClicks(ctx, id, day1, 7))

	entry, err := env.store.GetDailyEntry(ctx, id, day1)
	require.NoError(t, err)
	assert.Equal(t, int64(7), entry.ClicksCount)
}

func TestRecordDailyClicks_UnknownPlayer(t *testing.T) {
	env := newTestEnv(t)

	err := env.leaderboard.RecordDailyClicks(context.Background(), uuid.New(), day1, 1)
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

// Any number of identical records leaves the same row as one.
func TestRecordDailyClicks_IdempotenceProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		id := env.newPlayer(t)

		clicks := rapid.Int64Range(0, 1_000_000).Draw(t, "clicks")
		repeats := rapid.IntRange(1, 10).Draw(t, "repeats")

		require.NoError(t, env.leaderboard.RecordDailyClicks(ctx, id, day1, clicks))
		want, err := env.store.GetDailyEntry(ctx, id, day1)
		require.NoError(t, err)

		for i := 0; i < repeats; i++ {
			env.clock.Advance(time.Duration(rapid.IntRange(0, 10_000).Draw(t, "ms")) * time.Millisecond)
			require.NoError(t, env.leaderboard.RecordDailyClicks(ctx, id, day1, clicks))
		}

		got, err := env.store.GetDailyEntry(ctx, id, day1)
		require.NoError(t, err)
		if *got != *want {
			t.Fatalf("row changed: %+v != %+v", got, want)
		}
	})
}

func TestGetDaily_RanksWithRewardsAndTieBreak(t *testing.T) {
	env := newTestEnv(t)
	env.leaderboard.cache = nil
	ctx := context.Background()

	ids := make([]uuid.UUID, 4)
	for i := range ids {
		ids[i] = env.newPlayer(t)
	}

	require.NoError(t, env.leaderboard.RecordDailyClicks(ctx, ids[0], day1, 100))
	env.clock.Advance(time.Second)
	require.NoError(t, env.leaderboard.RecordDailyClicks(ctx, ids[1], day1, 300))
	env.clock.Advance(time.Second)
	// Reaches 100 after ids[0], so ranks below it.
	require.NoError(t, env.leaderboard.RecordDailyClicks(ctx, ids[2], day1, 100))
	env.clock.Advance(time.Second)
	require.NoError(t, env.leaderboard.RecordDailyClicks(ctx, ids[3], day1, 5))

	entries, err := env.leaderboard.GetDaily(ctx, day1, 0)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, []uuid.UUID{ids[1], ids[0], ids[2], ids[3]},
		[]uuid.UUID{entries[0].PlayerID, entries[1].PlayerID, entries[2].PlayerID, entries[3].PlayerID})
	assert.True(t, entries[0].Reward.Equal(decimal.NewFromInt(10000)))
	assert.True(t, entries[1].Reward.Equal(decimal.NewFromInt(5000)))
	assert.True(t, entries[2].Reward.Equal(decimal.NewFromInt(2500)))
	assert.True(t, entries[3].Reward.IsZero())
	assert.NotEmpty(t, entries[0].DisplayName)

	// Rewards are informational; nobody was credited.
	assert.True(t, env.profile(t, ids[1]).Stars.IsZero())
}

func TestGetDaily_LimitIsClamped(t *testing.T) {
	env := newTestEnv(t)
	env.leaderboard.cache = nil
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		id := env.newPlayer(t)
		require.NoError(t, env.leaderboard.RecordDailyClicks(ctx, id, day1, int64(i)))
	}

	entries, err := env.leaderboard.GetDaily(ctx, day1, 0)
	require.NoError(t, err)
	assert.Len(t, entries, env.rules.LeaderboardLimit)

	entries, err = env.leaderboard.GetDaily(ctx, day1, 3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	entries, err = env.leaderboard.GetDaily(ctx, day1, 10_000)
	require.NoError(t, err)
	assert.Len(t, entries, 12)

	other, err := env.leaderboard.GetDaily(ctx, day1.AddDate(0, 0, 1), 0)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestGetDaily_PrefersCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.newPlayer(t)
	b := env.newPlayer(t)
	require.NoError(t, env.store.UpdateDisplayName(ctx, a, "Alpha", day1))
	require.NoError(t, env.store.UpdateDisplayName(ctx, b, "Bravo", day1))

	env.cache.seeded = true
	env.cache.set(b, cacheScore{20, day1})
	env.cache.set(uuid.New(), cacheScore{15, day1})
	env.cache.set(a, cacheScore{10, day1})

	entries, err := env.leaderboard.GetDaily(ctx, day1, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Bravo", entries[0].DisplayName)
	assert.Equal(t, int64(20), entries[0].ClicksCount)
	assert.Equal(t, "Alpha", entries[1].DisplayName)
	assert.Equal(t, 2, entries[1].Rank)
	assert.True(t, entries[1].Reward.Equal(decimal.NewFromInt(5000)))
}

func TestGetDaily_FallsBackToStore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.newPlayer(t)
	require.NoError(t, env.leaderboard.RecordDailyClicks(ctx, id, day1, 9))

	env.cache.topErr = errStoreDown
	entries, err := env.leaderboard.GetDaily(ctx, day1, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(9), entries[0].ClicksCount)

	// A seeded but empty cache is treated like a miss.
	env.cache.topErr = nil
	env.cache.flush()
	env.cache.seeded = true
	entries, err = env.leaderboard.GetDaily(ctx, day1, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestGetDaily_SeedsCacheAfterItWasLost(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.newPlayer(t)
	b := env.newPlayer(t)

	for i := 0; i < 5; i++ {
		_, err := env.click.ProcessClick(ctx, a)
		require.NoError(t, err)
	}

	// Redis restarts, then only b clicks.
	env.cache.flush()
	_, err := env.click.ProcessClick(ctx, b)
	require.NoError(t, err)
	_, cached := env.cache.clicksOf(a)
	require.False(t, cached)

	entries, err := env.leaderboard.GetDaily(ctx, day1, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, a, entries[0].PlayerID)
	assert.Equal(t, int64(5), entries[0].ClicksCount)
	assert.Equal(t, b, entries[1].PlayerID)
	assert.NotEmpty(t, entries[0].DisplayName)

	clicks, cached := env.cache.clicksOf(a)
	assert.True(t, cached)
	assert.Equal(t, int64(5), clicks)

	// The next read is served by the seeded cache.
	again, err := env.leaderboard.GetDaily(ctx, day1, 10)
	require.NoError(t, err)
	assert.Equal(t, entries[0].PlayerID, again[0].PlayerID)
	assert.Equal(t, entries[0].ClicksCount, again[0].ClicksCount)
	assert.Equal(t, 1, env.cache.seeds)
}
