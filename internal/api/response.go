package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"star-clicker/internal/auth"
	"star-clicker/internal/economy"
	"star-clicker/internal/model"
	"star-clicker/internal/service"
	"star-clicker/internal/shop"
)

// User-facing messages.
const (
	msgNotEnoughEnergy = "Not enough energy"
	msgNotEnoughStars  = "Not enough stars"
	msgInternal        = "something went wrong"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Number renders a decimal as a bare JSON number.
type Number decimal.Decimal

func (n Number) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(n).String()), nil
}

func (n *Number) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	*n = Number(d)
	return nil
}

// ProfileView is the wire form of a profile.
type ProfileView struct {
	ID              uuid.UUID `json:"id"`
	DisplayName     string    `json:"displayName"`
	Stars           Number    `json:"stars"`
	Energy          int       `json:"energy"`
	MaxEnergy       int       `json:"maxEnergy"`
	EnergyUpdatedAt time.Time `json:"energyUpdatedAt"`
	DailyClicks     int64     `json:"dailyClicks"`
	TotalClicks     int64     `json:"totalClicks"`
	StreakDays      int       `json:"streakDays"`
	LastLoginDate   string    `json:"lastLoginDate,omitempty"`
	Level           int       `json:"level"`
}

func newProfileView(p *model.Profile) *ProfileView {
	if p == nil {
		return nil
	}
	v := &ProfileView{
		ID:              p.ID,
		DisplayName:     p.DisplayName,
		Stars:           Number(p.Stars),
		Energy:          p.Energy,
		MaxEnergy:       p.MaxEnergy,
		EnergyUpdatedAt: p.EnergyUpdatedAt,
		DailyClicks:     p.DailyClicks,
		TotalClicks:     p.TotalClicks,
		StreakDays:      p.StreakDays,
		Level:           p.Level,
	}
	if p.LastLoginDate != nil {
		v.LastLoginDate = p.LastLoginDate.Format(model.DateLayout)
	}
	return v
}

// LeaderboardEntryView is one ranked row.
type LeaderboardEntryView struct {
	Rank        int       `json:"rank"`
	PlayerID    uuid.UUID `json:"playerId"`
	DisplayName string    `json:"displayName"`
	ClicksCount int64     `json:"clicksCount"`
	Reward      Number    `json:"reward"`
}

func newLeaderboardViews(entries []model.RankedEntry) []LeaderboardEntryView {
	out := make([]LeaderboardEntryView, len(entries))
	for i, e := range entries {
		out[i] = LeaderboardEntryView{
			Rank:        e.Rank,
			PlayerID:    e.PlayerID,
			DisplayName: e.DisplayName,
			ClicksCount: e.ClicksCount,
			Reward:      Number(e.Reward),
		}
	}
	return out
}

// OfferView is one shop item with the caller's level and next price.
type OfferView struct {
	ID          shop.ItemID `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Level       int         `json:"level"`
	Price       Number      `json:"price"`
	Affordable  bool        `json:"affordable"`
	Maxed       bool        `json:"maxed"`
}

func newOfferViews(offers []shop.Offer) []OfferView {
	out := make([]OfferView, len(offers))
	for i, o := range offers {
		out[i] = OfferView{
			ID:          o.Item.ID,
			Name:        o.Item.Name,
			Description: o.Item.Description,
			Level:       o.Level,
			Price:       Number(o.Price),
			Affordable:  o.Affordable,
			Maxed:       o.Maxed,
		}
	}
	return out
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}

// writeSuccess writes a successful JSON response
func writeSuccess(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

// writeRefusal writes an expected gameplay refusal. These are not faults.
func writeRefusal(w http.ResponseWriter, message string, data interface{}) {
	writeJSON(w, http.StatusOK, APIResponse{Success: false, Error: message, Data: data})
}

// writeError writes an error JSON response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, APIResponse{Success: false, Error: message})
}

// writeServiceError maps a service error to its HTTP form. Unexpected
// errors are logged and hidden from the caller.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated")
	case errors.Is(err, service.ErrInsufficientEnergy):
		writeRefusal(w, msgNotEnoughEnergy, nil)
	case errors.Is(err, service.ErrInsufficientFunds):
		writeRefusal(w, msgNotEnoughStars, nil)
	case errors.Is(err, service.ErrPlayerNotFound):
		writeError(w, http.StatusNotFound, "player not found")
	case errors.Is(err, service.ErrUnknownUpgrade):
		writeError(w, http.StatusNotFound, "unknown upgrade")
	case errors.Is(err, service.ErrMaxLevel):
		writeError(w, http.StatusConflict, "upgrade is at max level")
	case errors.Is(err, service.ErrInvalidReferralCode):
		writeError(w, http.StatusNotFound, "invalid referral code")
	case errors.Is(err, service.ErrSelfReferral):
		writeError(w, http.StatusBadRequest, "cannot use your own referral code")
	case errors.Is(err, service.ErrAlreadyReferred):
		writeError(w, http.StatusConflict, "referral code already used")
	case errors.Is(err, economy.ErrInvalidDisplayName):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).
			Str("op", op).
			Str("path", r.URL.Path).
			Msg("Request failed")
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}
