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

const profileColumns = `id, telegram_id, display_name, stars, energy, max_energy, energy_updated_at,
	daily_clicks, total_clicks, streak_days, last_login_date, level, created_at, updated_at`

func scanProfile(row pgx.Row) (*model.Profile, error) {
	var p model.Profile
	err := row.Scan(
		&p.ID,
		&p.TelegramID,
		&p.DisplayName,
		&p.Stars,
		&p.Energy,
		&p.MaxEnergy,
		&p.EnergyUpdatedAt,
		&p.DailyClicks,
		&p.TotalClicks,
		&p.StreakDays,
		&p.LastLoginDate,
		&p.Level,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func getProfile(ctx context.Context, q querier, id uuid.UUID) (*model.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	p, err := scanProfile(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// CreateProfile inserts a new profile. Timestamps come from p.
func (s *PostgresStore) CreateProfile(ctx context.Context, p *model.Profile) error {
	const query = `
		INSERT INTO profiles (id, telegram_id, display_name, stars, energy, max_energy, energy_updated_at,
			daily_clicks, total_clicks, streak_days, last_login_date, level, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := s.pool.Exec(ctx, query,
		p.ID, p.TelegramID, p.DisplayName, p.Stars, p.Energy, p.MaxEnergy, p.EnergyUpdatedAt,
		p.DailyClicks, p.TotalClicks, p.StreakDays, p.LastLoginDate, p.Level, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			return ErrProfileExists
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// GetProfile retrieves a profile by id.
// Returns ErrProfileNotFound if the player does not exist.
func (s *PostgresStore) GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	return getProfile(ctx, s.pool, id)
}

// GetProfileByTelegramID retrieves the profile linked to a Telegram account.
func (s *PostgresStore) GetProfileByTelegramID(ctx context.Context, telegramID int64) (*model.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE telegram_id = $1`

	p, err := scanProfile(s.pool.QueryRow(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile by telegram id: %w", err)
	}
	return p, nil
}

// GetDisplayNames looks up display names for a set of players.
func (s *PostgresStore) GetDisplayNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	const query = `SELECT id, display_name FROM profiles WHERE id = ANY($1)`

	rows, err := s.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get display names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   uuid.UUID
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan display name: %w", err)
		}
		names[id] = name
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating display names: %w", err)
	}

	return names, nil
}

// UpdateDisplayName renames a player.
func (s *PostgresStore) UpdateDisplayName(ctx context.Context, id uuid.UUID, name string, now time.Time) error {
	const query = `UPDATE profiles SET display_name = $2, updated_at = $3 WHERE id = $1`

	result, err := s.pool.Exec(ctx, query, id, name, now)
	if err != nil {
		return fmt.Errorf("failed to update display name: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// ReplaceDisplayName renames only a player still carrying an empty or
// placeholder name. The condition lives in the statement so concurrent
// callers assign at most once.
func (s *PostgresStore) ReplaceDisplayName(ctx context.Context, id uuid.UUID, placeholder, name string, now time.Time) (bool, error) {
	const query = `
		UPDATE profiles
		SET display_name = $3, updated_at = $4
		WHERE id = $1 AND (btrim(display_name) = '' OR display_name = $2)
	`

	result, err := s.pool.Exec(ctx, query, id, placeholder, name, now)
	if err != nil {
		return false, fmt.Errorf("failed to replace display name: %w", err)
	}
	if result.RowsAffected() == 0 {
		if _, err := s.GetProfile(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (t *pgTx) GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	return getProfile(ctx, t.q, id)
}

func (t *pgTx) UpdateProfile(ctx context.Context, p *model.Profile) error {
	const query = `
		UPDATE profiles
		SET stars = $2, energy = $3, max_energy = $4, energy_updated_at = $5,
			daily_clicks = $6, total_clicks = $7, streak_days = $8, last_login_date = $9,
			level = $10, updated_at = $11
		WHERE id = $1
	`

	result, err := t.q.Exec(ctx, query,
		p.ID, p.Stars, p.Energy, p.MaxEnergy, p.EnergyUpdatedAt,
		p.DailyClicks, p.TotalClicks, p.StreakDays, p.LastLoginDate,
		p.Level, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}
