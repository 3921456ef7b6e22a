// Package repository provides the economy store: durable state for player
// profiles, daily leaderboard rows, upgrade purchases, referrals and the star
// ledger.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"star-clicker/internal/model"
)

// Common errors for repository operations.
var (
	ErrProfileNotFound      = errors.New("profile not found")
	ErrProfileExists        = errors.New("profile already exists")
	ErrPurchaseNotFound     = errors.New("purchase not found")
	ErrEntryNotFound        = errors.New("leaderboard entry not found")
	ErrReferralExists       = errors.New("player already referred")
	ErrReferralCodeNotFound = errors.New("referral code not found")
	ErrReferralCodeTaken    = errors.New("referral code already taken")
)

// Store is the economy store. Economic mutations go through WithTx; the
// remaining methods are plain reads and non-economic CRUD.
type Store interface {
	// WithTx runs fn as one all-or-nothing unit. The given players are
	// locked until fn returns, so read-modify-write on their rows is
	// serialized. Any error from fn discards every write made through tx.
	WithTx(ctx context.Context, fn func(tx Tx) error, players ...uuid.UUID) error

	CreateProfile(ctx context.Context, p *model.Profile) error
	GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error)
	GetProfileByTelegramID(ctx context.Context, telegramID int64) (*model.Profile, error)
	// GetDisplayNames maps each known id to its display name; unknown ids are
	// absent from the result.
	GetDisplayNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
	// UpdateDisplayName unconditionally renames a player.
	UpdateDisplayName(ctx context.Context, id uuid.UUID, name string, now time.Time) error
	// ReplaceDisplayName renames only if the current name is empty or equals
	// placeholder, and reports whether it did.
	ReplaceDisplayName(ctx context.Context, id uuid.UUID, placeholder, name string, now time.Time) (bool, error)

	ListPurchases(ctx context.Context, playerID uuid.UUID) ([]model.ShopPurchase, error)

	// GetDailyLeaderboard returns the top rows for date ordered by clicks
	// descending, earliest update first on ties, with ranks filled in.
	GetDailyLeaderboard(ctx context.Context, date time.Time, limit int) ([]model.RankedEntry, error)
	GetDailyEntry(ctx context.Context, playerID uuid.UUID, date time.Time) (*model.DailyLeaderboardEntry, error)

	// CreateReferralCode stores code for its player unless the player already
	// owns one; the stored code is returned either way.
	CreateReferralCode(ctx context.Context, code *model.ReferralCode) (*model.ReferralCode, error)
	GetReferralCode(ctx context.Context, playerID uuid.UUID) (*model.ReferralCode, error)
	FindReferralCode(ctx context.Context, code string) (*model.ReferralCode, error)
	CountReferrals(ctx context.Context, referrerID uuid.UUID) (int, error)

	ListTransactions(ctx context.Context, playerID uuid.UUID, limit int) ([]model.StarTransaction, error)
	InsertClickHistory(ctx context.Context, rows []model.ClickHistory) error

	Ping(ctx context.Context) error
}

// Tx is the view of the store inside WithTx.
type Tx interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error)
	// UpdateProfile persists the economic fields of p.
	UpdateProfile(ctx context.Context, p *model.Profile) error

	GetPurchase(ctx context.Context, playerID uuid.UUID, itemID string) (*model.ShopPurchase, error)
	SavePurchase(ctx context.Context, p *model.ShopPurchase) error

	GetDailyEntry(ctx context.Context, playerID uuid.UUID, date time.Time) (*model.DailyLeaderboardEntry, error)
	// UpsertDailyEntry sets clicks_count for (player, date), last write wins.
	// Writing the stored value again changes nothing, updated_at included.
	UpsertDailyEntry(ctx context.Context, playerID uuid.UUID, date time.Time, clicks int64, now time.Time) error

	CreateTransaction(ctx context.Context, t *model.StarTransaction) error

	HasReferral(ctx context.Context, referredID uuid.UUID) (bool, error)
	CreateReferral(ctx context.Context, r *model.Referral) error
}
