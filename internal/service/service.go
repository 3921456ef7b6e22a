// Package service provides the click economy operations on top of the store.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"star-clicker/internal/config"
	"star-clicker/internal/economy"
	"star-clicker/internal/model"
	"star-clicker/internal/repository"
)

// Expected refusals. Handlers report them to the player; they are not faults.
var (
	ErrInsufficientEnergy  = errors.New("not enough energy")
	ErrInsufficientFunds   = errors.New("not enough stars")
	ErrPlayerNotFound      = errors.New("player not found")
	ErrUnknownUpgrade      = errors.New("unknown upgrade")
	ErrMaxLevel            = errors.New("upgrade is at max level")
	ErrInvalidReferralCode = errors.New("invalid referral code")
	ErrSelfReferral        = errors.New("cannot use your own referral code")
	ErrAlreadyReferred     = errors.New("referral already used")
)

// Rules are the economy tunables shared by the services.
type Rules struct {
	RegenInterval       time.Duration
	DefaultMaxEnergy    int
	StreakMinClicks     int64
	PriceGrowth         decimal.Decimal
	ReferralBonus       decimal.Decimal
	LeaderboardLimit    int
	LeaderboardMaxLimit int
	Rewards             []int64
}

// DefaultRules returns the stock economy.
func DefaultRules() Rules {
	return Rules{
		RegenInterval:       time.Second,
		DefaultMaxEnergy:    1000,
		StreakMinClicks:     economy.DefaultStreakMinClicks,
		PriceGrowth:         economy.DefaultGrowth,
		ReferralBonus:       decimal.NewFromInt(5),
		LeaderboardLimit:    10,
		LeaderboardMaxLimit: 100,
		Rewards:             []int64{10000, 5000, 2500},
	}
}

// NewRules builds Rules from configuration.
func NewRules(cfg *config.Config) (Rules, error) {
	growth, err := decimal.NewFromString(cfg.Economy.PriceGrowth)
	if err != nil {
		return Rules{}, fmt.Errorf("invalid economy.price_growth: %w", err)
	}
	if !growth.GreaterThan(decimal.NewFromInt(1)) {
		return Rules{}, fmt.Errorf("economy.price_growth must be greater than 1")
	}
	bonus, err := decimal.NewFromString(cfg.Referral.Bonus)
	if err != nil {
		return Rules{}, fmt.Errorf("invalid referral.bonus: %w", err)
	}
	if bonus.IsNegative() {
		return Rules{}, fmt.Errorf("referral.bonus must not be negative")
	}

	return Rules{
		RegenInterval:       cfg.Economy.EnergyRegenInterval,
		DefaultMaxEnergy:    cfg.Economy.DefaultMaxEnergy,
		StreakMinClicks:     cfg.Economy.StreakMinClicks,
		PriceGrowth:         growth,
		ReferralBonus:       bonus,
		LeaderboardLimit:    cfg.Leaderboard.Limit,
		LeaderboardMaxLimit: cfg.Leaderboard.MaxLimit,
		Rewards:             cfg.Leaderboard.Rewards,
	}, nil
}

// LeaderboardCache mirrors daily click counts outside the store.
type LeaderboardCache interface {
	// Record sets the count, lower or higher.
	Record(ctx context.Context, date time.Time, playerID uuid.UUID, clicks int64, reachedAt time.Time) error
	// Raise sets the count only if it beats the cached one.
	Raise(ctx context.Context, date time.Time, playerID uuid.UUID, clicks int64, reachedAt time.Time) error
	// Top returns ranked entries without display names.
	Top(ctx context.Context, date time.Time, limit int) ([]model.RankedEntry, error)
	// Seeded reports whether the day holds everything the store had.
	Seeded(ctx context.Context, date time.Time) (bool, error)
	Seed(ctx context.Context, date time.Time, entries []model.RankedEntry) error
}

// ClickPublisher receives every accepted click.
type ClickPublisher interface {
	PublishClick(ctx context.Context, event model.ClickEvent) error
}

// ChangeNotifier is told when a leaderboard may have changed.
type ChangeNotifier interface {
	MarkDirty()
}

// storeErr maps store sentinels to service errors and wraps the rest.
func storeErr(op string, err error) error {
	if errors.Is(err, repository.ErrProfileNotFound) {
		return ErrPlayerNotFound
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// regenerate brings p's energy up to date in place.
func regenerate(p *model.Profile, now time.Time, interval time.Duration) {
	r := economy.Regenerate(p.Energy, p.MaxEnergy, p.EnergyUpdatedAt, now, interval)
	p.Energy = r.Energy
	p.EnergyUpdatedAt = r.Checkpoint
}

// evaluateStreak runs the once-per-day streak transition for p inside tx.
// p is updated in memory; the caller persists it.
func evaluateStreak(ctx context.Context, tx repository.Tx, p *model.Profile, today time.Time, minClicks int64) (economy.StreakOutcome, error) {
	var yesterdayClicks int64
	if p.LastLoginDate != nil && model.Day(*p.LastLoginDate).Before(today) {
		entry, err := tx.GetDailyEntry(ctx, p.ID, today.AddDate(0, 0, -1))
		switch {
		case err == nil:
			yesterdayClicks = entry.ClicksCount
		case !errors.Is(err, repository.ErrEntryNotFound):
			return economy.StreakOutcome{}, err
		}
	}

	outcome := economy.EvaluateStreak(economy.StreakInput{
		LastLoginDate:   p.LastLoginDate,
		StreakDays:      p.StreakDays,
		YesterdayClicks: yesterdayClicks,
		Today:           today,
		MinClicks:       minClicks,
	})
	if !outcome.Changed() {
		return outcome, nil
	}

	last := outcome.LastLoginDate
	p.StreakDays = outcome.StreakDays
	p.LastLoginDate = &last
	if outcome.ResetDailyClicks {
		p.DailyClicks = 0
	}
	return outcome, nil
}
