package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

type migration struct {
	name string
	sql  string
}

// migrations are idempotent and applied in order on every start.
var migrations = []migration{
	{
		name: "profiles",
		sql: `
		CREATE TABLE IF NOT EXISTS profiles (
			id UUID PRIMARY KEY,
			telegram_id BIGINT UNIQUE,
			display_name VARCHAR(64) NOT NULL DEFAULT '',
			stars NUMERIC(30, 8) NOT NULL DEFAULT 0 CHECK (stars >= 0),
			energy INT NOT NULL CHECK (energy >= 0),
			max_energy INT NOT NULL CHECK (max_energy >= 0),
			energy_updated_at TIMESTAMPTZ NOT NULL,
			daily_clicks BIGINT NOT NULL DEFAULT 0,
			total_clicks BIGINT NOT NULL DEFAULT 0,
			streak_days INT NOT NULL DEFAULT 0,
			last_login_date DATE,
			level INT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK (energy <= max_energy),
			CHECK (daily_clicks <= total_clicks)
		);`,
	},
	{
		name: "daily_leaderboard",
		sql: `
		CREATE TABLE IF NOT EXISTS daily_leaderboard (
			player_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			date DATE NOT NULL,
			clicks_count BIGINT NOT NULL DEFAULT 0,
			reward_claimed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (player_id, date)
		);
		CREATE INDEX IF NOT EXISTS idx_daily_leaderboard_rank
			ON daily_leaderboard(date, clicks_count DESC, updated_at ASC);`,
	},
	{
		name: "shop_purchases",
		sql: `
		CREATE TABLE IF NOT EXISTS shop_purchases (
			player_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			item_id VARCHAR(50) NOT NULL,
			level INT NOT NULL DEFAULT 0 CHECK (level >= 0),
			total_spent NUMERIC(30, 8) NOT NULL DEFAULT 0 CHECK (total_spent >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (player_id, item_id)
		);`,
	},
	{
		name: "star_transactions",
		sql: `
		CREATE TABLE IF NOT EXISTS star_transactions (
			id BIGSERIAL PRIMARY KEY,
			player_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			amount NUMERIC(30, 8) NOT NULL,
			type VARCHAR(50) NOT NULL,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_star_transactions_player_time
			ON star_transactions(player_id, created_at DESC);`,
	},
	{
		name: "referrals",
		sql: `
		CREATE TABLE IF NOT EXISTS referral_codes (
			player_id UUID PRIMARY KEY REFERENCES profiles(id) ON DELETE CASCADE,
			code VARCHAR(16) NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS referrals (
			referrer_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			referred_id UUID PRIMARY KEY REFERENCES profiles(id) ON DELETE CASCADE,
			reward_claimed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK (referrer_id <> referred_id)
		);
		CREATE INDEX IF NOT EXISTS idx_referrals_referrer ON referrals(referrer_id);`,
	},
	{
		name: "click_history",
		sql: `
		CREATE TABLE IF NOT EXISTS click_history (
			id BIGSERIAL PRIMARY KEY,
			player_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			clicks_count BIGINT NOT NULL,
			stars_earned NUMERIC(30, 8) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_click_history_player_time
			ON click_history(player_id, created_at DESC);`,
	},
}

// Migrate applies the schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	log.Info().Msg("Running database migrations...")

	for i, m := range migrations {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("failed to apply migration %q: %w", m.name, err)
		}
		log.Info().Int("step", i+1).Str("name", m.name).Msg("Migration applied")
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}
