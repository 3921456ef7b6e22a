package websocket

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"star-clicker/internal/model"
)

// LeaderboardSource supplies today's ranking.
type LeaderboardSource interface {
	GetToday(ctx context.Context, limit int) ([]model.RankedEntry, error)
	Today() time.Time
}

// Broadcaster coalesces leaderboard changes and pushes at most one update
// per interval.
type Broadcaster struct {
	hub      *Hub
	source   LeaderboardSource
	limit    int
	interval time.Duration
	dirty    atomic.Bool
}

// NewBroadcaster creates a Broadcaster.
func NewBroadcaster(hub *Hub, source LeaderboardSource, limit int, interval time.Duration) *Broadcaster {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Broadcaster{
		hub:      hub,
		source:   source,
		limit:    limit,
		interval: interval,
	}
}

// MarkDirty records that the leaderboard changed.
func (b *Broadcaster) MarkDirty() {
	b.dirty.Store(true)
}

// Run pushes updates until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.flush(ctx)
		}
	}
}

func (b *Broadcaster) flush(ctx context.Context) {
	if !b.dirty.Swap(false) {
		return
	}
	if b.hub.Connections() == 0 {
		return
	}

	entries, err := b.source.GetToday(ctx, b.limit)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load leaderboard for broadcast")
		b.dirty.Store(true)
		return
	}
	b.hub.BroadcastLeaderboard(b.source.Today(), entries)
}
