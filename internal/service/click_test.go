package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"star-clicker/internal/model"
	"star-clicker/internal/shop"
)

func TestProcessClick_CreditsOneStar(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.newPlayer(t)

	res, err := env.click.ProcessClick(ctx, id)
	require.NoError(t, err)
	assert.True(t, res.ClickValue.Equal(decimal.NewFromInt(1)))
	assert.True(t, res.Profile.Stars.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, env.rules.DefaultMaxEnergy-1, res.Profile.Energy)
	assert.Equal(t, int64(1), res.Profile.DailyClicks)
	assert.Equal(t, int64(1), res.Profile.TotalClicks)

	stored := env.profile(t, id)
	assert.Equal(t, res.Profile.Energy, stored.Energy)
	assert.True(t, stored.Stars.Equal(decimal.NewFromInt(1)))

	entry, err := env.store.GetDailyEntry(ctx, id, day1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), entry.ClicksCount)
}

func TestProcessClick_UsesMultitapLevel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.newPlayer(t)

	env.mutate(t, id, func(p *model.Profile) { p.Stars = decimal.NewFromInt(100000) })
	for i := 0; i < 3; i++ {
		_, err := env.shop.Purchase(ctx, id, shop.ItemMultitap)
		require.NoError(t, err)
	}
	before := env.profile(t, id).Stars

	res, err := env.click.ProcessClick(ctx, id)
	require.NoError(t, err)
	assert.True(t, res.ClickValue.Equal(decimal.NewFromInt(3)))
	assert.True(t, res.Profile.Stars.Equal(before.Add(decimal.NewFromInt(3))))
}

func TestProcessClick_InsufficientEnergy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.newPlayer(t)

	env.mutate(t, id, func(p *model.Profile) {
		p.Energy = 0
		p.EnergyUpdatedAt = day1
	})
	before := env.profile(t, id)

	res, err := env.click.ProcessClick(ctx, id)
	assert.ErrorIs(t, err, ErrInsufficientEnergy)
	require.NotNil(t, res)
	assert.Equal(t, 0, res.Profile.Energy)
	assert.True(t, res.ClickValue.IsZero())

	after := env.profile(t, id)
	assert.Equal(t, before, after)
	_, err = env.store.GetDailyEntry(ctx, id, day1)
	assert.Error(t, err)
	assert.Empty(t, env.publisher.published())
}

func TestProcessClick_RegeneratesBeforeSpending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.newPlayer(t)

	env.mutate(t, id, func(p *model.Profile) {
		p.Energy = 0
		p.EnergyUpdatedAt = day1
	})
	env.clock.Advance(2500 * time.Millisecond)

	res, err := env.click.ProcessClick(ctx, id)
	require.NoError(t, err)
	// Two points regenerated, one spent, half an interval carried over.
	assert.Equal(t, 1, res.Profile.Energy)
	assert.True(t, res.Profile.EnergyUpdatedAt.Equal(day1.Add(2*time.Second)))
}

func TestProcessClick_PlayerNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.click.ProcessClick(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

func TestProcessClick_StoreFailureChangesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.newPlayer(t)
	before := env.profile(t, id)

	env.store.FailNextCommit(errStoreDown)
	res, err := env.click.ProcessClick(ctx, id)
	assert.ErrorIs(t, err, errStoreDown)
	assert.NotErrorIs(t, err, ErrInsufficientEnergy)
	assert.Nil(t, res)

	assert.Equal(t, before, env.profile(t, id))
	_, err = env.store.GetDailyEntry(ctx, id, day1)
	assert.Error(t, err)
	assert.Empty(t, env.publisher.published())
	assert.Empty(t, env.cache.recorded())
}

func TestProcessClick_SideEffects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.newPlayer(t)

	for i := 0; i < 2; i++ {
		_, err := env.click.ProcessClick(ctx, id)
		require.NoError(t, err)
	}

	events := env.publisher.published()
	require.Len(t, events, 2)
	assert.Equal(t, id, events[1].PlayerID)
	assert.Equal(t, int64(2), events[1].DailyClicks)
	assert.Equal(t, "2025-03-10", events[1].Date)

	records := env.cache.recorded()
	require.Len(t, records, 2)
	assert.Equal(t, int64(2), records[1].clicks)
	assert.True(t, records[1].raised)
	assert.Equal(t, 2, env.notifier.dirty)
}

// gatedCache holds the first Raise until the second one has been applied.
type gatedCache struct {
	*fakeCache
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (g *gatedCache) Raise(ctx context.Context, date time.Time, playerID uuid.UUID, clicks int64, reachedAt time.Time) error {
	if g.calls.Add(1) == 1 {
		close(g.entered)
		<-g.release
	} else {
		defer close(g.release)
	}
	return g.fakeCache.Raise(ctx, date, playerID, clicks, reachedAt)
}

func TestProcessClick_OutOfOrderMirrorKeepsHighestCount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.newPlayer(t)

	env.cache.seeded = true
	gated := &gatedCache{
		fakeCache: env.cache,
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	env.leaderboard.cache = gated

	first := make(chan error, 1)
	go func() {
		_, err := env.click.ProcessClick(ctx, id)
		first <- err
	}()

	// The first click has committed and its mirror write is stalled.
	<-gated.entered
	_, err := env.click.ProcessClick(ctx, id)
	require.NoError(t, err)
	require.NoError(t, <-first)

	entry, err := env.store.GetDailyEntry(ctx, id, day1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), entry.ClicksCount)

	entries, err := env.leaderboard.GetDaily(ctx, day1, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].ClicksCount)
}

func TestProcessClick_SideEffectFailuresAreIgnored(t *testing.T) {
	env := newTestEnv(t)
	env.publisher.err = errStoreDown
	env.cache.recordErr = errStoreDown
	id := env.newPlayer(t)

	_, err := env.click.ProcessClick(context.Background(), id)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), env.profile(t, id).TotalClicks)
}

func TestProcessClick_FirstContactOfDayResetsDailyClicks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.newPlayer(t)

	for i := 0; i < 5; i++ {
		_, err := env.click.ProcessClick(ctx, id)
		require.NoError(t, err)
	}

	env.clock.Advance(24 * time.Hour)
	res, err := env.click.ProcessClick(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Profile.DailyClicks)
	assert.Equal(t, int64(6), res.Profile.TotalClicks)
	assert.Equal(t, 1, res.Profile.StreakDays)

	today := day1.AddDate(0, 0, 1)
	entry, err := env.store.GetDailyEntry(ctx, id, today)
	require.NoError(t, err)
	assert.Equal(t, int64(1), entry.ClicksCount)

	yesterday, err := env.store.GetDailyEntry(ctx, id, day1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), yesterday.ClicksCount)
}

// N concurrent clicks against E energy (E < N) yield exactly E successes.
func TestProcessClick_ConcurrentClicksProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		energy := rapid.IntRange(0, 20).Draw(t, "energy")
		clicks := rapid.IntRange(energy+1, energy+20).Draw(t, "clicks")

		env := newTestEnv(t)
		ctx := context.Background()
		id := env.newPlayer(t)
		env.mutate(t, id, func(p *model.Profile) {
			p.Energy = energy
			p.EnergyUpdatedAt = day1
		})
		before := env.profile(t, id)

		var (
			wg        sync.WaitGroup
			successes atomic.Int64
			refusals  atomic.Int64
			other     atomic.Int64
		)
		for i := 0; i < clicks; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := env.click.ProcessClick(ctx, id)
				switch {
				case err == nil:
					successes.Add(1)
				case err == ErrInsufficientEnergy:
					refusals.Add(1)
				default:
					other.Add(1)
				}
			}()
		}
		wg.Wait()

		after := env.profile(t, id)
		if other.Load() != 0 {
			t.Fatalf("unexpected errors: %d", other.Load())
		}
		if successes.Load() != int64(energy) {
			t.Fatalf("expected %d successes, got %d", energy, successes.Load())
		}
		if refusals.Load() != int64(clicks-energy) {
			t.Fatalf("expected %d refusals, got %d", clicks-energy, refusals.Load())
		}
		if after.Energy != 0 {
			t.Fatalf("expected energy 0, got %d", after.Energy)
		}
		if after.TotalClicks-before.TotalClicks != int64(energy) {
			t.Fatalf("total clicks grew by %d, want %d", after.TotalClicks-before.TotalClicks, energy)
		}
		if !after.Stars.Equal(before.Stars.Add(decimal.NewFromInt(int64(energy)))) {
			t.Fatalf("stars %s, want %s + %d", after.Stars, before.Stars, energy)
		}
	})
}

// Energy stays within [0, max] for any mix of clicks and elapsed time.
func TestProcessClick_EnergyBoundsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		id := env.newPlayer(t)
		maxEnergy := rapid.IntRange(1, 30).Draw(t, "maxEnergy")
		env.mutate(t, id, func(p *model.Profile) {
			p.MaxEnergy = maxEnergy
			p.Energy = maxEnergy
		})

		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			if rapid.Bool().Draw(t, "wait") {
				env.clock.Advance(time.Duration(rapid.IntRange(0, 5000).Draw(t, "ms")) * time.Millisecond)
			}
			res, err := env.click.ProcessClick(ctx, id)
			if err != nil && err != ErrInsufficientEnergy {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Profile.Energy < 0 || res.Profile.Energy > maxEnergy {
				t.Fatalf("energy %d outside [0, %d]", res.Profile.Energy, maxEnergy)
			}
			stored := env.profile(t, id)
			if stored.Energy < 0 || stored.Energy > stored.MaxEnergy {
				t.Fatalf("stored energy %d outside [0, %d]", stored.Energy, stored.MaxEnergy)
			}
			if stored.DailyClicks > stored.TotalClicks {
				t.Fatalf("daily clicks %d above total %d", stored.DailyClicks, stored.TotalClicks)
			}
		}
	})
}
