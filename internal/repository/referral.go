package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"star-clicker/internal/model"
)

// CreateReferralCode stores code unless its player already owns one and
// returns the stored code. A code owned by another player yields
// ErrReferralCodeTaken.
func (s *PostgresStore) CreateReferralCode(ctx context.Context, code *model.ReferralCode) (*model.ReferralCode, error) {
	const query = `
		INSERT INTO referral_codes (player_id, code, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (player_id) DO NOTHING
	`

	if _, err := s.pool.Exec(ctx, query, code.PlayerID, code.Code, code.CreatedAt); err != nil {
		if isUniqueViolation(err, "referral_codes_code_key") {
			return nil, ErrReferralCodeTaken
		}
		return nil, fmt.Errorf("failed to create referral code: %w", err)
	}

	return s.GetReferralCode(ctx, code.PlayerID)
}

// GetReferralCode retrieves the code owned by a player.
func (s *PostgresStore) GetReferralCode(ctx context.Context, playerID uuid.UUID) (*model.ReferralCode, error) {
	const query = `SELECT player_id, code, created_at FROM referral_codes WHERE player_id = $1`
	return s.scanReferralCode(ctx, query, playerID)
}

// FindReferralCode resolves a code to its owner.
func (s *PostgresStore) FindReferralCode(ctx context.Context, code string) (*model.ReferralCode, error) {
	const query = `SELECT player_id, code, created_at FROM referral_codes WHERE code = $1`
	return s.scanReferralCode(ctx, query, code)
}

func (s *PostgresStore) scanReferralCode(ctx context.Context, query string, arg any) (*model.ReferralCode, error) {
	var rc model.ReferralCode
	err := s.pool.QueryRow(ctx, query, arg).Scan(&rc.PlayerID, &rc.Code, &rc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReferralCodeNotFound
		}
		return nil, fmt.Errorf("failed to get referral code: %w", err)
	}
	return &rc, nil
}

// CountReferrals returns how many players redeemed the referrer's code.
func (s *PostgresStore) CountReferrals(ctx context.Context, referrerID uuid.UUID) (int, error) {
	const query = `SELECT COUNT(*) FROM referrals WHERE referrer_id = $1`

	var count int
	if err := s.pool.QueryRow(ctx, query, referrerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count referrals: %w", err)
	}
	return count, nil
}

func (t *pgTx) HasReferral(ctx context.Context, referredID uuid.UUID) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM referrals WHERE referred_id = $1)`

	var exists bool
	if err := t.q.QueryRow(ctx, query, referredID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check referral: %w", err)
	}
	return exists, nil
}

func (t *pgTx) CreateReferral(ctx context.Context, r *model.Referral) error {
	const query = `
		INSERT INTO referrals (referrer_id, referred_id, reward_claimed, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := t.q.Exec(ctx, query, r.ReferrerID, r.ReferredID, r.RewardClaimed, r.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return ErrReferralExists
		}
		return fmt.Errorf("failed to create referral: %w", err)
	}
	return nil
}
