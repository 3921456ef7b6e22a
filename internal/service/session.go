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
)

// SessionResult is what a session start reports back.
type SessionResult struct {
	Profile    *model.Profile
	Transition economy.Transition
	// Created is set when this call provisioned the profile.
	Created bool
}

// EnergyStatus is a player's energy as of now.
type EnergyStatus struct {
	Energy    int
	MaxEnergy int
	FullIn    time.Duration
}

// SessionService handles profile provisioning, the daily streak and
// display names.
type SessionService struct {
	store repository.Store
	rules Rules
	now   func() time.Time
}

// NewSessionService creates a new SessionService instance.
func NewSessionService(store repository.Store, rules Rules) *SessionService {
	return &SessionService{
		store: store,
		rules: rules,
		now:   time.Now,
	}
}

// StartSession provisions the player on first contact, runs the daily streak
// evaluation and makes sure the player has a display name.
func (s *SessionService) StartSession(ctx context.Context, playerID uuid.UUID) (*SessionResult, error) {
	created, err := s.ensureProfile(ctx, playerID, nil, "")
	if err != nil {
		return nil, err
	}

	now := s.now()
	today := model.Day(now)

	var (
		profile *model.Profile
		outcome economy.StreakOutcome
	)
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		p, err := tx.GetProfile(ctx, playerID)
		if err != nil {
			return err
		}

		regenerate(p, now, s.rules.RegenInterval)
		outcome, err = evaluateStreak(ctx, tx, p, today, s.rules.StreakMinClicks)
		if err != nil {
			return err
		}

		profile = p
		if !outcome.Changed() {
			return nil
		}
		p.UpdatedAt = now
		return tx.UpdateProfile(ctx, p)
	}, playerID)
	if err != nil {
		return nil, storeErr("start session", err)
	}

	if outcome.Changed() {
		log.Debug().
			Str("player_id", playerID.String()).
			Str("transition", string(outcome.Transition)).
			Int("streak_days", outcome.StreakDays).
			Msg("Streak evaluated")
	}

	name, _, err := s.EnsureDisplayName(ctx, playerID)
	if err != nil {
		return nil, err
	}
	profile.DisplayName = name

	return &SessionResult{Profile: profile, Transition: outcome.Transition, Created: created}, nil
}

// StartTelegramSession resolves a Telegram account to its player, creating
// one on first contact, and starts a session for it.
func (s *SessionService) StartTelegramSession(ctx context.Context, telegramID int64, username string) (*SessionResult, error) {
	p, err := s.store.GetProfileByTelegramID(ctx, telegramID)
	switch {
	case err == nil:
		return s.StartSession(ctx, p.ID)
	case !errors.Is(err, repository.ErrProfileNotFound):
		return nil, storeErr("get profile by telegram id", err)
	}

	id := uuid.New()
	if _, err := s.ensureProfile(ctx, id, &telegramID, username); err != nil {
		if !errors.Is(err, repository.ErrProfileExists) {
			return nil, err
		}
		// Lost a race with another first contact from the same account.
		p, err := s.store.GetProfileByTelegramID(ctx, telegramID)
		if err != nil {
			return nil, storeErr("get profile by telegram id", err)
		}
		return s.StartSession(ctx, p.ID)
	}

	result, err := s.StartSession(ctx, id)
	if err != nil {
		return nil, err
	}
	result.Created = true
	return result, nil
}

// ensureProfile creates the profile if it does not exist yet and reports
// whether it did. ErrProfileExists is only returned for a taken telegramID.
func (s *SessionService) ensureProfile(ctx context.Context, playerID uuid.UUID, telegramID *int64, name string) (bool, error) {
	if _, err := s.store.GetProfile(ctx, playerID); err == nil {
		return false, nil
	} else if !errors.Is(err, repository.ErrProfileNotFound) {
		return false, storeErr("get profile", err)
	}

	displayName := economy.PlaceholderName(playerID)
	if normalized, err := economy.NormalizeDisplayName(name); err == nil {
		displayName = normalized
	}

	now := s.now()
	p := &model.Profile{
		ID:              playerID,
		TelegramID:      telegramID,
		DisplayName:     displayName,
		Stars:           decimal.Zero,
		Energy:          s.rules.DefaultMaxEnergy,
		MaxEnergy:       s.rules.DefaultMaxEnergy,
		EnergyUpdatedAt: now,
		Level:           1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.CreateProfile(ctx, p); err != nil {
		if errors.Is(err, repository.ErrProfileExists) {
			if telegramID != nil {
				return false, err
			}
			return false, nil
		}
		return false, storeErr("create profile", err)
	}

	log.Info().Str("player_id", playerID.String()).Msg("Profile created")
	return true, nil
}

// EnsureDisplayName gives a player still on the empty or placeholder name a
// random Player<n> name. It is idempotent: a player with a real name keeps
// it. Returns the current name and whether this call assigned it.
func (s *SessionService) EnsureDisplayName(ctx context.Context, playerID uuid.UUID) (string, bool, error) {
	p, err := s.store.GetProfile(ctx, playerID)
	if err != nil {
		return "", false, storeErr("get profile", err)
	}
	if !economy.NeedsDisplayName(p.DisplayName, playerID) {
		return p.DisplayName, false, nil
	}

	name := economy.RandomDisplayName()
	replaced, err := s.store.ReplaceDisplayName(ctx, playerID, economy.PlaceholderName(playerID), name, s.now())
	if err != nil {
		return "", false, storeErr("assign display name", err)
	}
	if replaced {
		return name, true, nil
	}

	// Someone else named the player in between.
	p, err = s.store.GetProfile(ctx, playerID)
	if err != nil {
		return "", false, storeErr("get profile", err)
	}
	return p.DisplayName, false, nil
}

// RenameDisplayName sets a player-chosen name.
func (s *SessionService) RenameDisplayName(ctx context.Context, playerID uuid.UUID, name string) (string, error) {
	name, err := economy.NormalizeDisplayName(name)
	if err != nil {
		return "", err
	}
	if err := s.store.UpdateDisplayName(ctx, playerID, name, s.now()); err != nil {
		return "", storeErr("rename player", err)
	}
	return name, nil
}

// GetProfile returns the profile with energy as of now. Nothing is written.
func (s *SessionService) GetProfile(ctx context.Context, playerID uuid.UUID) (*model.Profile, error) {
	p, err := s.store.GetProfile(ctx, playerID)
	if err != nil {
		return nil, storeErr("get profile", err)
	}
	regenerate(p, s.now(), s.rules.RegenInterval)
	return p, nil
}

// GetEnergy reports the energy balance as of now.
func (s *SessionService) GetEnergy(ctx context.Context, playerID uuid.UUID) (*EnergyStatus, error) {
	p, err := s.store.GetProfile(ctx, playerID)
	if err != nil {
		return nil, storeErr("get energy", err)
	}

	now := s.now()
	r := economy.Regenerate(p.Energy, p.MaxEnergy, p.EnergyUpdatedAt, now, s.rules.RegenInterval)
	return &EnergyStatus{
		Energy:    r.Energy,
		MaxEnergy: p.MaxEnergy,
		FullIn:    economy.TimeToFull(r.Energy, p.MaxEnergy, r.Checkpoint, now, s.rules.RegenInterval),
	}, nil
}
