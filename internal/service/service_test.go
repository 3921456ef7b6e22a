package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"star-clicker/internal/model"
	"star-clicker/internal/repository"
	"star-clicker/internal/repository/memory"
	"star-clicker/internal/shop"
)

// tester is satisfied by both *testing.T and *rapid.T.
type tester interface {
	require.TestingT
	Helper()
}

// day1 is a fixed UTC noon used as "today" by most tests.
var day1 = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type cacheRecord struct {
	date      time.Time
	playerID  uuid.UUID
	clicks    int64
	reachedAt time.Time
	raised    bool
}

type cacheScore struct {
	clicks    int64
	reachedAt time.Time
}

// beats orders scores the way the Redis composite score does.
func (a cacheScore) beats(b cacheScore) bool {
	if a.clicks != b.clicks {
		return a.clicks > b.clicks
	}
	return a.reachedAt.Before(b.reachedAt)
}

// fakeCache holds a single day, which is all the tests need.
type fakeCache struct {
	mu        sync.Mutex
	records   []cacheRecord
	recordErr error
	scores    map[uuid.UUID]cacheScore
	seeded    bool
	seeds     int
	topErr    error
}

func (f *fakeCache) Record(_ context.Context, date time.Time, playerID uuid.UUID, clicks int64, reachedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, cacheRecord{date, playerID, clicks, reachedAt, false})
	if f.recordErr != nil {
		return f.recordErr
	}
	f.set(playerID, cacheScore{clicks, reachedAt})
	return nil
}

func (f *fakeCache) Raise(_ context.Context, date time.Time, playerID uuid.UUID, clicks int64, reachedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, cacheRecord{date, playerID, clicks, reachedAt, true})
	if f.recordErr != nil {
		return f.recordErr
	}
	f.raise(playerID, cacheScore{clicks, reachedAt})
	return nil
}

func (f *fakeCache) set(id uuid.UUID, score cacheScore) {
	if f.scores == nil {
		f.scores = make(map[uuid.UUID]cacheScore)
	}
	f.scores[id] = score
}

func (f *fakeCache) raise(id uuid.UUID, score cacheScore) {
	if old, ok := f.scores[id]; ok && !score.beats(old) {
		return
	}
	f.set(id, score)
}

func (f *fakeCache) Top(_ context.Context, date time.Time, limit int) ([]model.RankedEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.topErr != nil {
		return nil, f.topErr
	}

	out := make([]model.RankedEntry, 0, len(f.scores))
	for id, score := range f.scores {
		out = append(out, model.RankedEntry{PlayerID: id, ClicksCount: score.clicks, ReachedAt: score.reachedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		a := cacheScore{out[i].ClicksCount, out[i].ReachedAt}
		b := cacheScore{out[j].ClicksCount, out[j].ReachedAt}
		if a.beats(b) != b.beats(a) {
			return a.beats(b)
		}
		return out[i].PlayerID.String() < out[j].PlayerID.String()
	})
	if len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

func (f *fakeCache) Seeded(context.Context, time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.topErr != nil {
		return false, f.topErr
	}
	return f.seeded, nil
}

func (f *fakeCache) Seed(_ context.Context, _ time.Time, entries []model.RankedEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range entries {
		f.raise(e.PlayerID, cacheScore{e.ClicksCount, e.ReachedAt})
	}
	f.seeded = true
	f.seeds++
	return nil
}

// flush drops everything, as a Redis restart would.
func (f *fakeCache) flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scores = nil
	f.seeded = false
}

func (f *fakeCache) clicksOf(id uuid.UUID) (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	score, ok := f.scores[id]
	return score.clicks, ok
}

func (f *fakeCache) recorded() []cacheRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]cacheRecord(nil), f.records...)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []model.ClickEvent
	err    error
}

func (f *fakePublisher) PublishClick(_ context.Context, event model.ClickEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

func (f *fakePublisher) published() []model.ClickEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ClickEvent(nil), f.events...)
}

type fakeNotifier struct {
	mu    sync.Mutex
	dirty int
}

func (f *fakeNotifier) MarkDirty() {
	f.mu.Lock()
	f.dirty++
	f.mu.Unlock()
}

type testEnv struct {
	store       *memory.Store
	clock       *testClock
	cache       *fakeCache
	publisher   *fakePublisher
	notifier    *fakeNotifier
	rules       Rules
	leaderboard *LeaderboardService
	click       *ClickService
	session     *SessionService
	shop        *ShopService
	referral    *ReferralService
}

func newTestEnv(t tester) *testEnv {
	t.Helper()

	env := &testEnv{
		store:     memory.NewStore(),
		clock:     &testClock{t: day1},
		cache:     &fakeCache{},
		publisher: &fakePublisher{},
		notifier:  &fakeNotifier{},
		rules:     DefaultRules(),
	}

	env.leaderboard = NewLeaderboardService(env.store, env.cache, env.notifier, env.rules)
	env.leaderboard.now = env.clock.Now
	env.click = NewClickService(env.store, env.leaderboard, env.publisher, env.rules)
	env.click.now = env.clock.Now
	env.session = NewSessionService(env.store, env.rules)
	env.session.now = env.clock.Now
	env.shop = NewShopService(env.store, shop.DefaultCatalog(), env.rules)
	env.shop.now = env.clock.Now
	env.referral = NewReferralService(env.store, env.rules)
	env.referral.now = env.clock.Now

	return env
}

// newPlayer provisions a player through a session on the current day.
func (env *testEnv) newPlayer(t tester) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := env.session.StartSession(context.Background(), id)
	require.NoError(t, err)
	return id
}

// mutate edits a stored profile directly.
func (env *testEnv) mutate(t tester, id uuid.UUID, fn func(p *model.Profile)) {
	t.Helper()
	ctx := context.Background()
	err := env.store.WithTx(ctx, func(tx repository.Tx) error {
		p, err := tx.GetProfile(ctx, id)
		if err != nil {
			return err
		}
		fn(p)
		return tx.UpdateProfile(ctx, p)
	}, id)
	require.NoError(t, err)
}

func (env *testEnv) profile(t tester, id uuid.UUID) *model.Profile {
	t.Helper()
	p, err := env.store.GetProfile(context.Background(), id)
	require.NoError(t, err)
	return p
}

var errStoreDown = errors.New("store unavailable")
