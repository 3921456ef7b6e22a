// Package lock provides per-player locking so that read-modify-write cycles
// on one player's state are serialized while different players proceed in
// parallel.
package lock

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// playerMutex is a channel-backed mutex so acquisition can select on a context.
type playerMutex struct {
	ch   chan struct{}
	refs int
}

// PlayerLock hands out one mutex per player id. Entries are removed once no
// goroutine holds or waits for them.
type PlayerLock struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*playerMutex
}

// NewPlayerLock creates a new PlayerLock instance.
func NewPlayerLock() *PlayerLock {
	return &PlayerLock{locks: make(map[uuid.UUID]*playerMutex)}
}

func (pl *PlayerLock) ref(id uuid.UUID) *playerMutex {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	m, ok := pl.locks[id]
	if !ok {
		m = &playerMutex{ch: make(chan struct{}, 1)}
		pl.locks[id] = m
	}
	m.refs++
	return m
}

func (pl *PlayerLock) unref(id uuid.UUID, m *playerMutex) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	m.refs--
	if m.refs == 0 {
		delete(pl.locks, id)
	}
}

// Lock blocks until the player's lock is held or ctx is done.
// A deadline expiry is reported as ErrLockTimeout.
func (pl *PlayerLock) Lock(ctx context.Context, id uuid.UUID) error {
	m := pl.ref(id)
	select {
	case m.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		pl.unref(id, m)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: player %s", ErrLockTimeout, id)
		}
		return ctx.Err()
	}
}

// Unlock releases a lock taken with Lock.
func (pl *PlayerLock) Unlock(id uuid.UUID) {
	pl.mu.Lock()
	m, ok := pl.locks[id]
	pl.mu.Unlock()
	if !ok {
		panic("lock: unlock of unlocked player " + id.String())
	}

	select {
	case <-m.ch:
	default:
		panic("lock: unlock of unlocked player " + id.String())
	}
	pl.unref(id, m)
}

// LockAll locks every distinct id in a fixed global order, so two callers
// locking overlapping sets cannot deadlock. The returned func releases all
// of them. On error nothing is held.
func (pl *PlayerLock) LockAll(ctx context.Context, ids ...uuid.UUID) (func(), error) {
	ordered := SortedUnique(ids)

	held := make([]uuid.UUID, 0, len(ordered))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			pl.Unlock(held[i])
		}
	}

	for _, id := range ordered {
		if err := pl.Lock(ctx, id); err != nil {
			release()
			return nil, err
		}
		held = append(held, id)
	}
	return release, nil
}

// SortedUnique returns ids deduplicated in byte order.
func SortedUnique(ids []uuid.UUID) []uuid.UUID {
	out := slices.Clone(ids)
	slices.SortFunc(out, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
	return slices.Compact(out)
}
