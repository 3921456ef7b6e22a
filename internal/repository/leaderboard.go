package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"star-clicker/internal/model"
)

// GetDailyLeaderboard returns the top rows for a UTC date joined with
// display names.
func (s *PostgresStore) GetDailyLeaderboard(ctx context.Context, date time.Time, limit int) ([]model.RankedEntry, error) {
	const query = `
		SELECT d.player_id, p.display_name, d.clicks_count, d.updated_at
		FROM daily_leaderboard d
		JOIN profiles p ON p.id = d.player_id
		WHERE d.date = $1
		ORDER BY d.clicks_count DESC, d.updated_at ASC, d.created_at ASC, d.player_id ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, model.Day(date), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []model.RankedEntry
	for rows.Next() {
		var e model.RankedEntry
		if err := rows.Scan(&e.PlayerID, &e.DisplayName, &e.ClicksCount, &e.ReachedAt); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard: %w", err)
	}

	return entries, nil
}

func getDailyEntry(ctx context.Context, q querier, playerID uuid.UUID, date time.Time) (*model.DailyLeaderboardEntry, error) {
	const query = `
		SELECT player_id, date, clicks_count, reward_claimed, created_at, updated_at
		FROM daily_leaderboard
		WHERE player_id = $1 AND date = $2
	`

	var e model.DailyLeaderboardEntry
	err := q.QueryRow(ctx, query, playerID, model.Day(date)).Scan(
		&e.PlayerID,
		&e.Date,
		&e.ClicksCount,
		&e.RewardClaimed,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get leaderboard entry: %w", err)
	}
	return &e, nil
}

// GetDailyEntry retrieves one player's row for a date.
func (s *PostgresStore) GetDailyEntry(ctx context.Context, playerID uuid.UUID, date time.Time) (*model.DailyLeaderboardEntry, error) {
	return getDailyEntry(ctx, s.pool, playerID, date)
}

func (t *pgTx) GetDailyEntry(ctx context.Context, playerID uuid.UUID, date time.Time) (*model.DailyLeaderboardEntry, error) {
	return getDailyEntry(ctx, t.q, playerID, date)
}

func (t *pgTx) UpsertDailyEntry(ctx context.Context, playerID uuid.UUID, date time.Time, clicks int64, now time.Time) error {
	const query = `
		INSERT INTO daily_leaderboard (player_id, date, clicks_count, reward_claimed, created_at, updated_at)
		VALUES ($1, $2, $3, FALSE, $4, $4)
		ON CONFLICT (player_id, date) DO UPDATE
		SET clicks_count = EXCLUDED.clicks_count, updated_at = EXCLUDED.updated_at
		WHERE daily_leaderboard.clicks_count <> EXCLUDED.clicks_count
	`

	if _, err := t.q.Exec(ctx, query, playerID, model.Day(date), clicks, now); err != nil {
		return fmt.Errorf("failed to upsert leaderboard entry: %w", err)
	}
	return nil
}
