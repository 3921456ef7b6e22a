// Package cache mirrors the daily leaderboard into Redis sorted sets so the
// top of the day can be read without touching PostgreSQL.
package cache

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"star-clicker/internal/config"
	"star-clicker/internal/model"
)

// scoreBase separates the click count from the tie-break part of a score.
// It must exceed the number of milliseconds in a day.
const scoreBase = 100_000_000

// DailyLeaderboard stores one sorted set per UTC day.
type DailyLeaderboard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDailyLeaderboard connects to Redis and verifies the connection.
func NewDailyLeaderboard(ctx context.Context, cfg *config.RedisConfig) (*DailyLeaderboard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewDailyLeaderboardFromClient(client, cfg.DailyTTL), nil
}

// NewDailyLeaderboardFromClient wraps an existing client.
func NewDailyLeaderboardFromClient(client *redis.Client, ttl time.Duration) *DailyLeaderboard {
	return &DailyLeaderboard{client: client, ttl: ttl}
}

// Close closes the Redis connection.
func (l *DailyLeaderboard) Close() error {
	return l.client.Close()
}

// Ping checks the connection.
func (l *DailyLeaderboard) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func dailyKey(date time.Time) string {
	return "leaderboard:daily:" + model.Day(date).Format(model.DateLayout)
}

// seededKey marks a day whose set was backfilled from the store. It is
// written with the set's TTL, so it never outlives the set.
func seededKey(date time.Time) string {
	return dailyKey(date) + ":seeded"
}

// EncodeScore packs a click count and the time it was reached into one
// sorted set score. Higher counts sort first; on equal counts the earlier
// time sorts first.
func EncodeScore(clicks int64, date, reachedAt time.Time) float64 {
	ms := reachedAt.Sub(model.Day(date)).Milliseconds()
	if ms < 0 {
		ms = 0
	}
	if ms >= scoreBase {
		ms = scoreBase - 1
	}
	return float64(clicks*scoreBase + (scoreBase - 1 - ms))
}

// DecodeScore reverses EncodeScore.
func DecodeScore(score float64, date time.Time) (int64, time.Time) {
	s := int64(math.Round(score))
	clicks := s / scoreBase
	ms := scoreBase - 1 - s%scoreBase
	return clicks, model.Day(date).Add(time.Duration(ms) * time.Millisecond)
}

// Record sets the player's count for date, lower or higher.
func (l *DailyLeaderboard) Record(ctx context.Context, date time.Time, playerID uuid.UUID, clicks int64, reachedAt time.Time) error {
	key := dailyKey(date)

	pipe := l.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  EncodeScore(clicks, date, reachedAt),
		Member: playerID.String(),
	})
	if l.ttl > 0 {
		pipe.Expire(ctx, key, l.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record daily clicks: %w", err)
	}
	return nil
}

// Raise stores the count only if it beats the cached score. Counts of a day
// only grow, so writes that arrive out of order keep the highest count and,
// on equal counts, the earliest time it was reached.
func (l *DailyLeaderboard) Raise(ctx context.Context, date time.Time, playerID uuid.UUID, clicks int64, reachedAt time.Time) error {
	key := dailyKey(date)

	pipe := l.client.Pipeline()
	pipe.ZAddArgs(ctx, key, redis.ZAddArgs{
		GT: true,
		Members: []redis.Z{{
			Score:  EncodeScore(clicks, date, reachedAt),
			Member: playerID.String(),
		}},
	})
	if l.ttl > 0 {
		pipe.Expire(ctx, key, l.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to raise daily clicks: %w", err)
	}
	return nil
}

// Seeded reports whether date's set was backfilled since it was last lost.
func (l *DailyLeaderboard) Seeded(ctx context.Context, date time.Time) (bool, error) {
	n, err := l.client.Exists(ctx, seededKey(date)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check leaderboard seed: %w", err)
	}
	return n > 0, nil
}

// Seed merges rows read from the store into date's set and marks the day
// seeded. Scores already in the set are only ever raised.
func (l *DailyLeaderboard) Seed(ctx context.Context, date time.Time, entries []model.RankedEntry) error {
	key := dailyKey(date)

	pipe := l.client.TxPipeline()
	if len(entries) > 0 {
		members := make([]redis.Z, len(entries))
		for i, e := range entries {
			members[i] = redis.Z{
				Score:  EncodeScore(e.ClicksCount, date, e.ReachedAt),
				Member: e.PlayerID.String(),
			}
		}
		pipe.ZAddArgs(ctx, key, redis.ZAddArgs{GT: true, Members: members})
		if l.ttl > 0 {
			pipe.Expire(ctx, key, l.ttl)
		}
	}
	pipe.Set(ctx, seededKey(date), "1", l.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to seed daily leaderboard: %w", err)
	}
	return nil
}

// Top returns the best limit players of date. Display names are left empty.
func (l *DailyLeaderboard) Top(ctx context.Context, date time.Time, limit int) ([]model.RankedEntry, error) {
	if limit <= 0 {
		return nil, nil
	}

	results, err := l.client.ZRevRangeWithScores(ctx, dailyKey(date), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read daily leaderboard: %w", err)
	}

	entries := make([]model.RankedEntry, 0, len(results))
	for _, z := range results {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		id, err := uuid.Parse(member)
		if err != nil {
			continue
		}
		clicks, reachedAt := DecodeScore(z.Score, date)
		entries = append(entries, model.RankedEntry{
			Rank:        len(entries) + 1,
			PlayerID:    id,
			ClicksCount: clicks,
			ReachedAt:   reachedAt,
		})
	}
	return entries, nil
}
