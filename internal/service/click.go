package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"star-clicker/internal/economy"
	"star-clicker/internal/model"
	"star-clicker/internal/repository"
	"star-clicker/internal/shop"
)

// ClickResult is the outcome of one click. On ErrInsufficientEnergy Profile
// holds the unchanged state and ClickValue is zero.
type ClickResult struct {
	Profile    *model.Profile
	ClickValue decimal.Decimal
}

// ClickService validates and applies clicks.
type ClickService struct {
	store       repository.Store
	leaderboard *LeaderboardService
	publisher   ClickPublisher
	rules       Rules
	now         func() time.Time
}

// NewClickService creates a new ClickService instance. publisher is optional.
func NewClickService(
	store repository.Store,
	leaderboard *LeaderboardService,
	publisher ClickPublisher,
	rules Rules,
) *ClickService {
	return &ClickService{
		store:       store,
		leaderboard: leaderboard,
		publisher:   publisher,
		rules:       rules,
		now:         time.Now,
	}
}

// ProcessClick spends one energy and credits the click value. The whole
// read-modify-write runs in one transaction holding the player's lock, so
// concurrent clicks of one player are linearized and a failure changes
// nothing. Nothing from the request influences the amount.
func (s *ClickService) ProcessClick(ctx context.Context, playerID uuid.UUID) (*ClickResult, error) {
	now := s.now()
	today := model.Day(now)

	var result *ClickResult
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		p, err := tx.GetProfile(ctx, playerID)
		if err != nil {
			return err
		}

		regenerate(p, now, s.rules.RegenInterval)
		if p.Energy < 1 {
			result = &ClickResult{Profile: p.Clone(), ClickValue: decimal.Zero}
			return ErrInsufficientEnergy
		}

		// A click can be the first contact of the day.
		if _, err := evaluateStreak(ctx, tx, p, today, s.rules.StreakMinClicks); err != nil {
			return err
		}

		level, err := upgradeLevel(ctx, tx, playerID, shop.ItemMultitap)
		if err != nil {
			return err
		}
		value := economy.ClickValue(level)

		p.Stars = p.Stars.Add(value)
		p.Energy--
		p.DailyClicks++
		p.TotalClicks++
		p.UpdatedAt = now

		if err := tx.UpdateProfile(ctx, p); err != nil {
			return err
		}
		if err := s.leaderboard.RecordInTx(ctx, tx, playerID, today, p.DailyClicks); err != nil {
			return err
		}

		result = &ClickResult{Profile: p, ClickValue: value}
		return nil
	}, playerID)

	switch {
	case err == nil:
	case errors.Is(err, ErrInsufficientEnergy):
		log.Debug().Str("player_id", playerID.String()).Msg("Click refused: no energy")
		return result, ErrInsufficientEnergy
	default:
		return nil, storeErr("process click", err)
	}

	s.afterClick(ctx, result, today, now)
	return result, nil
}

// afterClick runs the best-effort side effects of a committed click.
func (s *ClickService) afterClick(ctx context.Context, result *ClickResult, today, now time.Time) {
	p := result.Profile
	s.leaderboard.mirror(ctx, today, p.ID, p.DailyClicks, now, true)

	if s.publisher == nil {
		return
	}
	event := model.ClickEvent{
		PlayerID:    p.ID,
		ClickValue:  result.ClickValue,
		DailyClicks: p.DailyClicks,
		Date:        today.Format(model.DateLayout),
		OccurredAt:  now,
	}
	if err := s.publisher.PublishClick(ctx, event); err != nil {
		log.Warn().Err(err).Str("player_id", p.ID.String()).Msg("Failed to publish click event")
	}
}

// upgradeLevel returns the owned level of an upgrade, 0 if never bought.
func upgradeLevel(ctx context.Context, tx repository.Tx, playerID uuid.UUID, itemID shop.ItemID) (int, error) {
	purchase, err := tx.GetPurchase(ctx, playerID, string(itemID))
	if err != nil {
		if errors.Is(err, repository.ErrPurchaseNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return purchase.Level, nil
}
