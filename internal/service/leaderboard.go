package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"star-clicker/internal/economy"
	"star-clicker/internal/model"
	"star-clicker/internal/repository"
)

// LeaderboardService maintains and ranks the per-day click leaderboard.
type LeaderboardService struct {
	store    repository.Store
	cache    LeaderboardCache
	notifier ChangeNotifier
	rules    Rules
	now      func() time.Time
}

// NewLeaderboardService creates a new LeaderboardService instance.
// cache and notifier are optional.
func NewLeaderboardService(
	store repository.Store,
	cache LeaderboardCache,
	notifier ChangeNotifier,
	rules Rules,
) *LeaderboardService {
	return &LeaderboardService{
		store:    store,
		cache:    cache,
		notifier: notifier,
		rules:    rules,
		now:      time.Now,
	}
}

// SetNotifier replaces the change notifier. Used when the notifier itself
// depends on this service.
func (s *LeaderboardService) SetNotifier(n ChangeNotifier) {
	s.notifier = n
}

// RecordInTx upserts the player's row for date inside an open transaction.
func (s *LeaderboardService) RecordInTx(ctx context.Context, tx repository.Tx, playerID uuid.UUID, date time.Time, clicks int64) error {
	return tx.UpsertDailyEntry(ctx, playerID, model.Day(date), clicks, s.now())
}

// RecordDailyClicks overwrites the player's click count for date.
// Recording the stored value again leaves the row untouched.
func (s *LeaderboardService) RecordDailyClicks(ctx context.Context, playerID uuid.UUID, date time.Time, clicks int64) error {
	day := model.Day(date)

	var entry *model.DailyLeaderboardEntry
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetProfile(ctx, playerID); err != nil {
			return err
		}
		if err := s.RecordInTx(ctx, tx, playerID, day, clicks); err != nil {
			return err
		}
		var err error
		entry, err = tx.GetDailyEntry(ctx, playerID, day)
		return err
	}, playerID)
	if err != nil {
		return storeErr("record daily clicks", err)
	}

	s.mirror(ctx, day, playerID, entry.ClicksCount, entry.UpdatedAt, false)
	return nil
}

// mirror pushes a committed count to the cache and wakes the broadcaster.
// Click counts only grow, so the click path raises; an explicit record may
// lower. Failures are logged and otherwise ignored.
func (s *LeaderboardService) mirror(ctx context.Context, date time.Time, playerID uuid.UUID, clicks int64, reachedAt time.Time, raise bool) {
	if s.cache != nil {
		write := s.cache.Record
		if raise {
			write = s.cache.Raise
		}
		if err := write(ctx, date, playerID, clicks, reachedAt); err != nil {
			log.Warn().Err(err).Str("player_id", playerID.String()).Msg("Failed to mirror daily clicks")
		}
	}
	if s.notifier != nil {
		s.notifier.MarkDirty()
	}
}

// GetDaily returns the ranked top of date. limit <= 0 means the default
// and larger values are capped.
func (s *LeaderboardService) GetDaily(ctx context.Context, date time.Time, limit int) ([]model.RankedEntry, error) {
	day := model.Day(date)
	limit = s.normalizeLimit(limit)

	entries, ok := s.fromCache(ctx, day, limit)
	if !ok {
		var err error
		entries, err = s.store.GetDailyLeaderboard(ctx, day, limit)
		if err != nil {
			return nil, storeErr("get daily leaderboard", err)
		}
	}

	for i := range entries {
		entries[i].Reward = economy.RewardForRank(entries[i].Rank, s.rules.Rewards)
	}
	return entries, nil
}

// GetToday is GetDaily for the current UTC date.
func (s *LeaderboardService) GetToday(ctx context.Context, limit int) ([]model.RankedEntry, error) {
	return s.GetDaily(ctx, s.now(), limit)
}

// Today returns the current UTC date.
func (s *LeaderboardService) Today() time.Time {
	return model.Day(s.now())
}

func (s *LeaderboardService) fromCache(ctx context.Context, day time.Time, limit int) ([]model.RankedEntry, bool) {
	if s.cache == nil {
		return nil, false
	}

	seeded, err := s.cache.Seeded(ctx, day)
	if err != nil {
		log.Warn().Err(err).Msg("Leaderboard cache read failed, using store")
		return nil, false
	}
	if !seeded {
		return s.seed(ctx, day, limit)
	}

	entries, err := s.cache.Top(ctx, day, limit)
	if err != nil {
		log.Warn().Err(err).Msg("Leaderboard cache read failed, using store")
		return nil, false
	}
	if len(entries) == 0 {
		return nil, false
	}

	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.PlayerID
	}
	names, err := s.store.GetDisplayNames(ctx, ids)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to resolve leaderboard names, using store")
		return nil, false
	}

	ranked := make([]model.RankedEntry, 0, len(entries))
	for _, e := range entries {
		name, ok := names[e.PlayerID]
		if !ok {
			continue
		}
		e.DisplayName = name
		e.Rank = len(ranked) + 1
		ranked = append(ranked, e)
	}
	return ranked, true
}

// seed backfills an empty, flushed or expired day from the store and serves
// the store's ranking. Players below the seeded rows only enter the cache
// through their next click, which carries their full count.
func (s *LeaderboardService) seed(ctx context.Context, day time.Time, limit int) ([]model.RankedEntry, bool) {
	rows, err := s.store.GetDailyLeaderboard(ctx, day, s.rules.LeaderboardMaxLimit)
	if err != nil {
		return nil, false
	}
	if err := s.cache.Seed(ctx, day, rows); err != nil {
		log.Warn().Err(err).Msg("Failed to seed leaderboard cache")
	} else {
		log.Info().Str("date", day.Format(model.DateLayout)).Int("rows", len(rows)).Msg("Leaderboard cache seeded")
	}

	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, true
}

func (s *LeaderboardService) normalizeLimit(limit int) int {
	if limit <= 0 {
		return s.rules.LeaderboardLimit
	}
	if limit > s.rules.LeaderboardMaxLimit {
		return s.rules.LeaderboardMaxLimit
	}
	return limit
}
