package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"star-clicker/internal/model"
	"star-clicker/internal/repository"
)

// ReferralCodeLength is the length of generated referral codes.
const ReferralCodeLength = 8

const maxCodeAttempts = 5

// ReferralStats summarizes a player's referral activity.
type ReferralStats struct {
	Code      string
	Referrals int
	Bonus     decimal.Decimal
}

// RedeemResult is the referred player's state after redeeming a code.
type RedeemResult struct {
	Profile    *model.Profile
	ReferrerID uuid.UUID
	Bonus      decimal.Decimal
}

// ReferralService hands out referral codes and pays referral bonuses.
type ReferralService struct {
	store   repository.Store
	rules   Rules
	now     func() time.Time
	newCode func() string
}

// NewReferralService creates a new ReferralService instance.
func NewReferralService(store repository.Store, rules Rules) *ReferralService {
	return &ReferralService{
		store:   store,
		rules:   rules,
		now:     time.Now,
		newCode: generateCode,
	}
}

func generateCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:ReferralCodeLength])
}

// NormalizeCode uppercases and trims a user-entered code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// EnsureCode returns the player's referral code, creating it on first use.
func (s *ReferralService) EnsureCode(ctx context.Context, playerID uuid.UUID) (string, error) {
	existing, err := s.store.GetReferralCode(ctx, playerID)
	if err == nil {
		return existing.Code, nil
	}
	if !errors.Is(err, repository.ErrReferralCodeNotFound) {
		return "", storeErr("get referral code", err)
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		rc, err := s.store.CreateReferralCode(ctx, &model.ReferralCode{
			PlayerID:  playerID,
			Code:      s.newCode(),
			CreatedAt: s.now(),
		})
		if err == nil {
			return rc.Code, nil
		}
		if !errors.Is(err, repository.ErrReferralCodeTaken) {
			return "", storeErr("create referral code", err)
		}
	}
	return "", fmt.Errorf("failed to create referral code: %d collisions", maxCodeAttempts)
}

// Redeem links playerID to the owner of code and credits the bonus to both,
// once per referred player.
func (s *ReferralService) Redeem(ctx context.Context, playerID uuid.UUID, code string) (*RedeemResult, error) {
	owner, err := s.store.FindReferralCode(ctx, NormalizeCode(code))
	if err != nil {
		if errors.Is(err, repository.ErrReferralCodeNotFound) {
			return nil, ErrInvalidReferralCode
		}
		return nil, storeErr("find referral code", err)
	}
	referrerID := owner.PlayerID
	if referrerID == playerID {
		return nil, ErrSelfReferral
	}

	now := s.now()
	bonus := s.rules.ReferralBonus

	var referred *model.Profile
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		already, err := tx.HasReferral(ctx, playerID)
		if err != nil {
			return err
		}
		if already {
			return ErrAlreadyReferred
		}

		if err := tx.CreateReferral(ctx, &model.Referral{
			ReferrerID:    referrerID,
			ReferredID:    playerID,
			RewardClaimed: true,
			CreatedAt:     now,
		}); err != nil {
			if errors.Is(err, repository.ErrReferralExists) {
				return ErrAlreadyReferred
			}
			return err
		}

		credits := []struct {
			id     uuid.UUID
			txType string
			desc   string
		}{
			{referrerID, model.TxTypeReferralBonus, "referral bonus for " + playerID.String()},
			{playerID, model.TxTypeReferredBonus, "joined with code " + owner.Code},
		}
		for _, c := range credits {
			p, err := tx.GetProfile(ctx, c.id)
			if err != nil {
				return err
			}
			p.Stars = p.Stars.Add(bonus)
			p.UpdatedAt = now
			if err := tx.UpdateProfile(ctx, p); err != nil {
				return err
			}

			desc := c.desc
			if err := tx.CreateTransaction(ctx, &model.StarTransaction{
				PlayerID:    c.id,
				Amount:      bonus,
				Type:        c.txType,
				Description: &desc,
				CreatedAt:   now,
			}); err != nil {
				return err
			}
			if c.id == playerID {
				referred = p
			}
		}
		return nil
	}, referrerID, playerID)

	switch {
	case err == nil:
	case errors.Is(err, ErrAlreadyReferred):
		return nil, err
	default:
		return nil, storeErr("redeem referral", err)
	}

	log.Info().
		Str("referrer_id", referrerID.String()).
		Str("referred_id", playerID.String()).
		Msg("Referral redeemed")
	return &RedeemResult{Profile: referred, ReferrerID: referrerID, Bonus: bonus}, nil
}

// Stats returns the player's code and how many players used it.
func (s *ReferralService) Stats(ctx context.Context, playerID uuid.UUID) (*ReferralStats, error) {
	code, err := s.EnsureCode(ctx, playerID)
	if err != nil {
		return nil, err
	}
	count, err := s.store.CountReferrals(ctx, playerID)
	if err != nil {
		return nil, storeErr("count referrals", err)
	}
	return &ReferralStats{Code: code, Referrals: count, Bonus: s.rules.ReferralBonus}, nil
}
