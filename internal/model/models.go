// Package model defines the data models of the clicker economy.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// Profile is the per-player economic state.
type Profile struct {
	ID          uuid.UUID       `db:"id"`
	TelegramID  *int64          `db:"telegram_id"`
	DisplayName string          `db:"display_name"`
	Stars       decimal.Decimal `db:"stars"`
	Energy      int             `db:"energy"`
	MaxEnergy   int             `db:"max_energy"`
	// EnergyUpdatedAt is the regeneration checkpoint.
	EnergyUpdatedAt time.Time  `db:"energy_updated_at"`
	DailyClicks     int64      `db:"daily_clicks"`
	TotalClicks     int64      `db:"total_clicks"`
	StreakDays      int        `db:"streak_days"`
	LastLoginDate   *time.Time `db:"last_login_date"`
	Level           int        `db:"level"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// Clone returns a copy that shares no pointers with p.
func (p *Profile) Clone() *Profile {
	c := *p
	if p.TelegramID != nil {
		id := *p.TelegramID
		c.TelegramID = &id
	}
	if p.LastLoginDate != nil {
		d := *p.LastLoginDate
		c.LastLoginDate = &d
	}
	return &c
}

// DailyLeaderboardEntry is one player's click count for one UTC day.
type DailyLeaderboardEntry struct {
	PlayerID      uuid.UUID `db:"player_id"`
	Date          time.Time `db:"date"`
	ClicksCount   int64     `db:"clicks_count"`
	RewardClaimed bool      `db:"reward_claimed"`
	CreatedAt     time.Time `db:"created_at"`
	// UpdatedAt is when ClicksCount was last changed; earlier wins ties.
	UpdatedAt time.Time `db:"updated_at"`
}

// RankedEntry is a leaderboard row joined with the player's display name.
type RankedEntry struct {
	Rank        int             `json:"rank"`
	PlayerID    uuid.UUID       `json:"playerId"`
	DisplayName string          `json:"displayName"`
	ClicksCount int64           `json:"clicksCount"`
	Reward      decimal.Decimal `json:"reward"`
	ReachedAt   time.Time       `json:"reachedAt"`
}

// ShopPurchase tracks a player's level in one upgrade.
type ShopPurchase struct {
	PlayerID   uuid.UUID       `db:"player_id"`
	ItemID     string          `db:"item_id"`
	Level      int             `db:"level"`
	TotalSpent decimal.Decimal `db:"total_spent"`
	CreatedAt  time.Time       `db:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at"`
}

// StarTransaction records a non-click star movement.
type StarTransaction struct {
	ID          int64           `db:"id"`
	PlayerID    uuid.UUID       `db:"player_id"`
	Amount      decimal.Decimal `db:"amount"`
	Type        string          `db:"type"`
	Description *string         `db:"description"`
	CreatedAt   time.Time       `db:"created_at"`
}

// Transaction types for categorizing star changes.
const (
	TxTypeUpgradePurchase = "upgrade_purchase"
	TxTypeReferralBonus   = "referral_bonus"
	TxTypeReferredBonus   = "referred_bonus"
)

// ReferralCode is the shareable code owned by a player.
type ReferralCode struct {
	PlayerID  uuid.UUID `db:"player_id"`
	Code      string    `db:"code"`
	CreatedAt time.Time `db:"created_at"`
}

// Referral links a referred player to the player whose code they used.
type Referral struct {
	ReferrerID    uuid.UUID `db:"referrer_id"`
	ReferredID    uuid.UUID `db:"referred_id"`
	RewardClaimed bool      `db:"reward_claimed"`
	CreatedAt     time.Time `db:"created_at"`
}

// ClickHistory is an aggregated batch of clicks for one player.
type ClickHistory struct {
	ID          int64           `db:"id"`
	PlayerID    uuid.UUID       `db:"player_id"`
	ClicksCount int64           `db:"clicks_count"`
	StarsEarned decimal.Decimal `db:"stars_earned"`
	CreatedAt   time.Time       `db:"created_at"`
}

// ClickEvent is published after every accepted click.
type ClickEvent struct {
	PlayerID    uuid.UUID       `json:"player_id"`
	ClickValue  decimal.Decimal `json:"click_value"`
	DailyClicks int64           `json:"daily_clicks"`
	Date        string          `json:"date"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// Day truncates t to its UTC calendar date.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD date as a UTC day.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}
