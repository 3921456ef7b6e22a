// Package memory implements repository.Store in process memory. Writes made
// inside WithTx are staged and applied in one step on success.
package memory

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"star-clicker/internal/model"
	"star-clicker/internal/pkg/lock"
	"star-clicker/internal/repository"
)

type purchaseKey struct {
	playerID uuid.UUID
	itemID   string
}

type dailyKey struct {
	playerID uuid.UUID
	date     time.Time
}

// Store is an in-memory economy store.
type Store struct {
	locks *lock.PlayerLock

	mu           sync.RWMutex
	profiles     map[uuid.UUID]*model.Profile
	byTelegram   map[int64]uuid.UUID
	purchases    map[purchaseKey]*model.ShopPurchase
	daily        map[dailyKey]*model.DailyLeaderboardEntry
	transactions []model.StarTransaction
	codes        map[uuid.UUID]*model.ReferralCode
	codeOwners   map[string]uuid.UUID
	referrals    map[uuid.UUID]*model.Referral
	history      []model.ClickHistory
	nextTxID     int64
	nextHistID   int64

	failNext error
}

var _ repository.Store = (*Store)(nil)

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		locks:      lock.NewPlayerLock(),
		profiles:   make(map[uuid.UUID]*model.Profile),
		byTelegram: make(map[int64]uuid.UUID),
		purchases:  make(map[purchaseKey]*model.ShopPurchase),
		daily:      make(map[dailyKey]*model.DailyLeaderboardEntry),
		codes:      make(map[uuid.UUID]*model.ReferralCode),
		codeOwners: make(map[string]uuid.UUID),
		referrals:  make(map[uuid.UUID]*model.Referral),
	}
}

// FailNextCommit makes the next WithTx whose fn succeeds return err instead
// of committing.
func (s *Store) FailNextCommit(err error) {
	s.mu.Lock()
	s.failNext = err
	s.mu.Unlock()
}

// WithTx locks players in id order, runs fn against a staging area and
// applies the staged writes only if fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Tx) error, players ...uuid.UUID) error {
	release, err := s.locks.LockAll(ctx, players...)
	if err != nil {
		return err
	}
	defer release()

	tx := newMemTx(s)
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	s.apply(tx)
	return nil
}

// apply must be called with s.mu held.
func (s *Store) apply(tx *memTx) {
	for id, staged := range tx.profiles {
		p := s.profiles[id].Clone()
		// Names are not part of the economic row and may have changed
		// outside the player lock.
		p.Stars = staged.Stars
		p.Energy = staged.Energy
		p.MaxEnergy = staged.MaxEnergy
		p.EnergyUpdatedAt = staged.EnergyUpdatedAt
		p.DailyClicks = staged.DailyClicks
		p.TotalClicks = staged.TotalClicks
		p.StreakDays = staged.StreakDays
		p.LastLoginDate = staged.LastLoginDate
		p.Level = staged.Level
		p.UpdatedAt = staged.UpdatedAt
		s.profiles[id] = p
	}
	for k, p := range tx.purchases {
		s.purchases[k] = p
	}
	for k, e := range tx.daily {
		s.daily[k] = e
	}
	for _, t := range tx.transactions {
		s.nextTxID++
		t.ID = s.nextTxID
		s.transactions = append(s.transactions, *t)
	}
	for _, r := range tx.referrals {
		s.referrals[r.ReferredID] = r
	}
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) CreateProfile(_ context.Context, p *model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[p.ID]; ok {
		return repository.ErrProfileExists
	}
	if p.TelegramID != nil {
		if _, ok := s.byTelegram[*p.TelegramID]; ok {
			return repository.ErrProfileExists
		}
		s.byTelegram[*p.TelegramID] = p.ID
	}
	s.profiles[p.ID] = p.Clone()
	return nil
}

func (s *Store) GetProfile(_ context.Context, id uuid.UUID) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	return p.Clone(), nil
}

func (s *Store) GetProfileByTelegramID(ctx context.Context, telegramID int64) (*model.Profile, error) {
	s.mu.RLock()
	id, ok := s.byTelegram[telegramID]
	s.mu.RUnlock()
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	return s.GetProfile(ctx, id)
}

func (s *Store) GetDisplayNames(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make(map[uuid.UUID]string, len(ids))
	for _, id := range ids {
		if p, ok := s.profiles[id]; ok {
			names[id] = p.DisplayName
		}
	}
	return names, nil
}

func (s *Store) UpdateDisplayName(_ context.Context, id uuid.UUID, name string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return repository.ErrProfileNotFound
	}
	p = p.Clone()
	p.DisplayName = name
	p.UpdatedAt = now
	s.profiles[id] = p
	return nil
}

func (s *Store) ReplaceDisplayName(_ context.Context, id uuid.UUID, placeholder, name string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return false, repository.ErrProfileNotFound
	}
	if strings.TrimSpace(p.DisplayName) != "" && p.DisplayName != placeholder {
		return false, nil
	}
	p = p.Clone()
	p.DisplayName = name
	p.UpdatedAt = now
	s.profiles[id] = p
	return true, nil
}

func (s *Store) ListPurchases(_ context.Context, playerID uuid.UUID) ([]model.ShopPurchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.ShopPurchase
	for k, p := range s.purchases {
		if k.playerID == playerID {
			out = append(out, *p)
		}
	}
	slices.SortFunc(out, func(a, b model.ShopPurchase) int {
		return strings.Compare(a.ItemID, b.ItemID)
	})
	return out, nil
}

func (s *Store) GetDailyLeaderboard(_ context.Context, date time.Time, limit int) ([]model.RankedEntry, error) {
	day := model.Day(date)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []*model.DailyLeaderboardEntry
	for k, e := range s.daily {
		if !k.date.Equal(day) {
			continue
		}
		if _, ok := s.profiles[k.playerID]; !ok {
			continue
		}
		rows = append(rows, e)
	}
	slices.SortFunc(rows, compareDaily)

	if limit >= 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	entries := make([]model.RankedEntry, 0, len(rows))
	for i, e := range rows {
		entries = append(entries, model.RankedEntry{
			Rank:        i + 1,
			PlayerID:    e.PlayerID,
			DisplayName: s.profiles[e.PlayerID].DisplayName,
			ClicksCount: e.ClicksCount,
			ReachedAt:   e.UpdatedAt,
		})
	}
	return entries, nil
}

// compareDaily orders by clicks descending, then whoever reached the count
// first.
func compareDaily(a, b *model.DailyLeaderboardEntry) int {
	switch {
	case a.ClicksCount != b.ClicksCount:
		if a.ClicksCount > b.ClicksCount {
			return -1
		}
		return 1
	case !a.UpdatedAt.Equal(b.UpdatedAt):
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case !a.CreatedAt.Equal(b.CreatedAt):
		return a.CreatedAt.Compare(b.CreatedAt)
	default:
		return bytes.Compare(a.PlayerID[:], b.PlayerID[:])
	}
}

func (s *Store) GetDailyEntry(_ context.Context, playerID uuid.UUID, date time.Time) (*model.DailyLeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.daily[dailyKey{playerID, model.Day(date)}]
	if !ok {
		return nil, repository.ErrEntryNotFound
	}
	c := *e
	return &c, nil
}

func (s *Store) CreateReferralCode(_ context.Context, code *model.ReferralCode) (*model.ReferralCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[code.PlayerID]; !ok {
		return nil, repository.ErrProfileNotFound
	}
	if existing, ok := s.codes[code.PlayerID]; ok {
		c := *existing
		return &c, nil
	}
	if _, ok := s.codeOwners[code.Code]; ok {
		return nil, repository.ErrReferralCodeTaken
	}

	c := *code
	s.codes[code.PlayerID] = &c
	s.codeOwners[code.Code] = code.PlayerID
	out := c
	return &out, nil
}

func (s *Store) GetReferralCode(_ context.Context, playerID uuid.UUID) (*model.ReferralCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rc, ok := s.codes[playerID]
	if !ok {
		return nil, repository.ErrReferralCodeNotFound
	}
	c := *rc
	return &c, nil
}

func (s *Store) FindReferralCode(ctx context.Context, code string) (*model.ReferralCode, error) {
	s.mu.RLock()
	owner, ok := s.codeOwners[code]
	s.mu.RUnlock()
	if !ok {
		return nil, repository.ErrReferralCodeNotFound
	}
	return s.GetReferralCode(ctx, owner)
}

func (s *Store) CountReferrals(_ context.Context, referrerID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, r := range s.referrals {
		if r.ReferrerID == referrerID {
			count++
		}
	}
	return count, nil
}

func (s *Store) ListTransactions(_ context.Context, playerID uuid.UUID, limit int) ([]model.StarTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.StarTransaction
	for i := len(s.transactions) - 1; i >= 0 && len(out) < limit; i-- {
		if s.transactions[i].PlayerID == playerID {
			out = append(out, s.transactions[i])
		}
	}
	return out, nil
}

func (s *Store) InsertClickHistory(_ context.Context, rows []model.ClickHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range rows {
		s.nextHistID++
		r.ID = s.nextHistID
		s.history = append(s.history, r)
	}
	return nil
}

// ClickHistory returns a copy of every history row written so far.
func (s *Store) ClickHistory() []model.ClickHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.history)
}
