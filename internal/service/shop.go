package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"star-clicker/internal/economy"
	"star-clicker/internal/model"
	"star-clicker/internal/repository"
	"star-clicker/internal/shop"
)

// PurchaseResult is the state after a successful purchase.
type PurchaseResult struct {
	Profile  *model.Profile
	Purchase *model.ShopPurchase
	Price    decimal.Decimal
}

// ShopService prices and sells upgrades.
type ShopService struct {
	store   repository.Store
	catalog *shop.Catalog
	rules   Rules
	now     func() time.Time
}

// NewShopService creates a new ShopService instance.
func NewShopService(store repository.Store, catalog *shop.Catalog, rules Rules) *ShopService {
	return &ShopService{
		store:   store,
		catalog: catalog,
		rules:   rules,
		now:     time.Now,
	}
}

// Catalog lists every item with the player's level and next price.
func (s *ShopService) Catalog(ctx context.Context, playerID uuid.UUID) ([]shop.Offer, *model.Profile, error) {
	p, err := s.store.GetProfile(ctx, playerID)
	if err != nil {
		return nil, nil, storeErr("get profile", err)
	}
	purchases, err := s.store.ListPurchases(ctx, playerID)
	if err != nil {
		return nil, nil, storeErr("list purchases", err)
	}

	levels := make(map[shop.ItemID]int, len(purchases))
	for _, pu := range purchases {
		levels[shop.ItemID(pu.ItemID)] = pu.Level
	}

	items := s.catalog.Items()
	offers := make([]shop.Offer, 0, len(items))
	for _, item := range items {
		level := levels[item.ID]
		price := item.PriceAt(level, s.rules.PriceGrowth)
		offers = append(offers, shop.Offer{
			Item:       item,
			Level:      level,
			Price:      price,
			Affordable: p.Stars.GreaterThanOrEqual(price),
			Maxed:      item.AtMaxLevel(level),
		})
	}
	return offers, p, nil
}

// ClickValue is the number of stars the player's next click earns.
func (s *ShopService) ClickValue(ctx context.Context, playerID uuid.UUID) (decimal.Decimal, error) {
	purchases, err := s.store.ListPurchases(ctx, playerID)
	if err != nil {
		return decimal.Zero, storeErr("list purchases", err)
	}
	for _, pu := range purchases {
		if shop.ItemID(pu.ItemID) == shop.ItemMultitap {
			return economy.ClickValue(pu.Level), nil
		}
	}
	return economy.ClickValue(0), nil
}

// Purchase buys the next level of an upgrade. With too few stars it fails
// with ErrInsufficientFunds and nothing changes.
func (s *ShopService) Purchase(ctx context.Context, playerID uuid.UUID, itemID shop.ItemID) (*PurchaseResult, error) {
	item, ok := s.catalog.Get(itemID)
	if !ok {
		return nil, ErrUnknownUpgrade
	}

	now := s.now()
	var result *PurchaseResult
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		p, err := tx.GetProfile(ctx, playerID)
		if err != nil {
			return err
		}

		purchase, err := tx.GetPurchase(ctx, playerID, string(item.ID))
		switch {
		case errors.Is(err, repository.ErrPurchaseNotFound):
			purchase = &model.ShopPurchase{
				PlayerID:   playerID,
				ItemID:     string(item.ID),
				TotalSpent: decimal.Zero,
				CreatedAt:  now,
			}
		case err != nil:
			return err
		}

		if item.AtMaxLevel(purchase.Level) {
			return ErrMaxLevel
		}
		price := item.PriceAt(purchase.Level, s.rules.PriceGrowth)
		if p.Stars.LessThan(price) {
			return ErrInsufficientFunds
		}

		// Settle energy under the old cap before the cap moves.
		regenerate(p, now, s.rules.RegenInterval)

		p.Stars = p.Stars.Sub(price)
		if item.Effect == shop.EffectMaxEnergy {
			p.MaxEnergy += item.EffectAmount
		}
		p.UpdatedAt = now

		purchase.Level++
		purchase.TotalSpent = purchase.TotalSpent.Add(price)
		purchase.UpdatedAt = now

		if err := tx.UpdateProfile(ctx, p); err != nil {
			return err
		}
		if err := tx.SavePurchase(ctx, purchase); err != nil {
			return err
		}

		desc := fmt.Sprintf("%s level %d", item.Name, purchase.Level)
		if err := tx.CreateTransaction(ctx, &model.StarTransaction{
			PlayerID:    playerID,
			Amount:      price.Neg(),
			Type:        model.TxTypeUpgradePurchase,
			Description: &desc,
			CreatedAt:   now,
		}); err != nil {
			return err
		}

		result = &PurchaseResult{Profile: p, Purchase: purchase, Price: price}
		return nil
	}, playerID)

	switch {
	case err == nil:
	case errors.Is(err, ErrInsufficientFunds), errors.Is(err, ErrMaxLevel):
		return nil, err
	default:
		return nil, storeErr("purchase upgrade", err)
	}

	log.Info().
		Str("player_id", playerID.String()).
		Str("item_id", string(item.ID)).
		Int("level", result.Purchase.Level).
		Str("price", result.Price.String()).
		Msg("Upgrade purchased")
	return result, nil
}
