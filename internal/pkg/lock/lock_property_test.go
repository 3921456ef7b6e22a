package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// isHeld reports whether id's lock is currently taken.
func isHeld(pl *PlayerLock, id uuid.UUID) bool {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	m, ok := pl.locks[id]
	return ok && len(m.ch) == 1
}

// entries counts players currently held or waited on.
func entries(pl *PlayerLock) int {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return len(pl.locks)
}

func drawUUID(t *rapid.T, label string) uuid.UUID {
	var id uuid.UUID
	copy(id[:], rapid.SliceOfN(rapid.Byte(), 16, 16).Draw(t, label))
	return id
}

// TestConcurrentEnergySpendProperty: with the lock held around each
// check-and-decrement, N concurrent spends against E energy succeed exactly
// min(N, E) times.
func TestConcurrentEnergySpendProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initial := rapid.IntRange(0, 30).Draw(t, "energy")
		energy := initial
		clicks := rapid.IntRange(1, 40).Draw(t, "clicks")
		id := drawUUID(t, "player")

		pl := NewPlayerLock()
		ctx := context.Background()

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
		)
		wg.Add(clicks)
		for i := 0; i < clicks; i++ {
			go func() {
				defer wg.Done()
				if err := pl.Lock(ctx, id); err != nil {
					return
				}
				defer pl.Unlock(id)
				if energy < 1 {
					return
				}
				energy--
				mu.Lock()
				successes++
				mu.Unlock()
			}()
		}
		wg.Wait()

		if successes != min(clicks, initial) || energy != initial-successes {
			t.Fatalf("successes=%d remaining=%d clicks=%d", successes, energy, clicks)
		}
		if n := entries(pl); n != 0 {
			t.Fatalf("lock entries leaked: %d", n)
		}
	})
}

// TestLockAllOverlappingSetsProperty locks overlapping id sets from many
// goroutines; a deadlock would hang the test.
func TestLockAllOverlappingSetsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pool := make([]uuid.UUID, rapid.IntRange(2, 6).Draw(t, "poolSize"))
		for i := range pool {
			pool[i] = uuid.New()
		}
		workers := rapid.IntRange(2, 16).Draw(t, "workers")

		sets := make([][]uuid.UUID, workers)
		for w := range sets {
			n := rapid.IntRange(1, len(pool)).Draw(t, "setSize")
			for i := 0; i < n; i++ {
				sets[w] = append(sets[w], pool[rapid.IntRange(0, len(pool)-1).Draw(t, "member")])
			}
		}

		pl := NewPlayerLock()
		// Pre-populated so goroutines only write through pointers they hold
		// the lock for.
		counters := make(map[uuid.UUID]*int, len(pool))
		for _, id := range pool {
			counters[id] = new(int)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for _, set := range sets {
			wg.Add(1)
			go func(set []uuid.UUID) {
				defer wg.Done()
				unlock, err := pl.LockAll(ctx, set...)
				if err != nil {
					errs <- err
					return
				}
				for _, id := range SortedUnique(set) {
					*counters[id]++
				}
				unlock()
			}(set)
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			t.Fatalf("LockAll failed: %v", err)
		}
		expected := make(map[uuid.UUID]int)
		for _, set := range sets {
			for _, id := range SortedUnique(set) {
				expected[id]++
			}
		}
		for id, n := range expected {
			if *counters[id] != n {
				t.Fatalf("counter for %s = %d, want %d", id, *counters[id], n)
			}
		}
	})
}

func TestLock_ContextTimeout(t *testing.T) {
	pl := NewPlayerLock()
	id := uuid.New()
	require.NoError(t, pl.Lock(context.Background(), id))
	assert.True(t, isHeld(pl, id))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := pl.Lock(ctx, id)
	assert.ErrorIs(t, err, ErrLockTimeout)

	pl.Unlock(id)
	assert.False(t, isHeld(pl, id))
	assert.Equal(t, 0, entries(pl))
}

func TestLock_Cancelled(t *testing.T) {
	pl := NewPlayerLock()
	id := uuid.New()
	require.NoError(t, pl.Lock(context.Background(), id))
	defer pl.Unlock(id)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, pl.Lock(ctx, id), context.Canceled)
}

func TestLockAll_ReleasesOnFailure(t *testing.T) {
	pl := NewPlayerLock()
	a, b := uuid.New(), uuid.New()
	require.NoError(t, pl.Lock(context.Background(), b))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := pl.LockAll(ctx, a, b)
	require.Error(t, err)

	assert.False(t, isHeld(pl, a))
	pl.Unlock(b)
	assert.Equal(t, 0, entries(pl))
}

func TestUnlock_PanicsWhenNotHeld(t *testing.T) {
	pl := NewPlayerLock()
	assert.Panics(t, func() { pl.Unlock(uuid.New()) })
}

func TestSortedUnique(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	assert.Equal(t, []uuid.UUID{a, b}, SortedUnique([]uuid.UUID{b, a, b}))
}
