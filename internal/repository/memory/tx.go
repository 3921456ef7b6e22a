package memory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"star-clicker/internal/model"
	"star-clicker/internal/repository"
)

// memTx reads through its own staged writes to the committed state.
type memTx struct {
	s            *Store
	profiles     map[uuid.UUID]*model.Profile
	purchases    map[purchaseKey]*model.ShopPurchase
	daily        map[dailyKey]*model.DailyLeaderboardEntry
	transactions []*model.StarTransaction
	referrals    []*model.Referral
}

func newMemTx(s *Store) *memTx {
	return &memTx{
		s:         s,
		profiles:  make(map[uuid.UUID]*model.Profile),
		purchases: make(map[purchaseKey]*model.ShopPurchase),
		daily:     make(map[dailyKey]*model.DailyLeaderboardEntry),
	}
}

func (t *memTx) GetProfile(_ context.Context, id uuid.UUID) (*model.Profile, error) {
	if p, ok := t.profiles[id]; ok {
		return p.Clone(), nil
	}

	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	p, ok := t.s.profiles[id]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	return p.Clone(), nil
}

func (t *memTx) UpdateProfile(ctx context.Context, p *model.Profile) error {
	if _, err := t.GetProfile(ctx, p.ID); err != nil {
		return err
	}
	t.profiles[p.ID] = p.Clone()
	return nil
}

func (t *memTx) GetPurchase(_ context.Context, playerID uuid.UUID, itemID string) (*model.ShopPurchase, error) {
	key := purchaseKey{playerID, itemID}
	if p, ok := t.purchases[key]; ok {
		c := *p
		return &c, nil
	}

	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	p, ok := t.s.purchases[key]
	if !ok {
		return nil, repository.ErrPurchaseNotFound
	}
	c := *p
	return &c, nil
}

func (t *memTx) SavePurchase(_ context.Context, p *model.ShopPurchase) error {
	c := *p
	t.purchases[purchaseKey{p.PlayerID, p.ItemID}] = &c
	return nil
}

func (t *memTx) GetDailyEntry(_ context.Context, playerID uuid.UUID, date time.Time) (*model.DailyLeaderboardEntry, error) {
	key := dailyKey{playerID, model.Day(date)}
	if e, ok := t.daily[key]; ok {
		c := *e
		return &c, nil
	}

	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	e, ok := t.s.daily[key]
	if !ok {
		return nil, repository.ErrEntryNotFound
	}
	c := *e
	return &c, nil
}

func (t *memTx) UpsertDailyEntry(ctx context.Context, playerID uuid.UUID, date time.Time, clicks int64, now time.Time) error {
	day := model.Day(date)

	current, err := t.GetDailyEntry(ctx, playerID, day)
	switch {
	case err == nil:
		if current.ClicksCount == clicks {
			return nil
		}
		current.ClicksCount = clicks
		current.UpdatedAt = now
		t.daily[dailyKey{playerID, day}] = current
	case errors.Is(err, repository.ErrEntryNotFound):
		t.daily[dailyKey{playerID, day}] = &model.DailyLeaderboardEntry{
			PlayerID:    playerID,
			Date:        day,
			ClicksCount: clicks,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	default:
		return err
	}
	return nil
}

func (t *memTx) CreateTransaction(_ context.Context, tx *model.StarTransaction) error {
	t.transactions = append(t.transactions, tx)
	return nil
}

func (t *memTx) HasReferral(_ context.Context, referredID uuid.UUID) (bool, error) {
	for _, r := range t.referrals {
		if r.ReferredID == referredID {
			return true, nil
		}
	}

	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	_, ok := t.s.referrals[referredID]
	return ok, nil
}

func (t *memTx) CreateReferral(ctx context.Context, r *model.Referral) error {
	exists, err := t.HasReferral(ctx, r.ReferredID)
	if err != nil {
		return err
	}
	if exists {
		return repository.ErrReferralExists
	}
	c := *r
	t.referrals = append(t.referrals, &c)
	return nil
}
