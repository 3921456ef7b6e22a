package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"star-clicker/internal/auth"
	"star-clicker/internal/model"
	"star-clicker/internal/service"
	"star-clicker/internal/shop"
)

// ClickResponse is the body of POST /click.
type ClickResponse struct {
	Success    bool         `json:"success"`
	ClickValue *Number      `json:"clickValue,omitempty"`
	Profile    *ProfileView `json:"profile,omitempty"`
	Error      string       `json:"error,omitempty"`
}

func playerID(r *http.Request) (uuid.UUID, error) {
	id, ok := auth.PlayerFromContext(r.Context())
	if !ok {
		return uuid.Nil, auth.ErrUnauthenticated
	}
	return id, nil
}

// Click spends one energy for stars.
func (h *Handler) Click(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r)
	if err != nil {
		writeServiceError(w, r, "click", err)
		return
	}

	res, err := h.deps.Click.ProcessClick(r.Context(), id)
	switch {
	case err == nil:
		value := Number(res.ClickValue)
		writeJSON(w, http.StatusOK, ClickResponse{
			Success:    true,
			ClickValue: &value,
			Profile:    newProfileView(res.Profile),
		})
	case errors.Is(err, service.ErrInsufficientEnergy):
		resp := ClickResponse{Success: false, Error: msgNotEnoughEnergy}
		if res != nil {
			resp.Profile = newProfileView(res.Profile)
		}
		writeJSON(w, http.StatusOK, resp)
	default:
		if errors.Is(err, service.ErrPlayerNotFound) {
			writeServiceError(w, r, "click", err)
			return
		}
		log.Error().Err(err).Str("player_id", id.String()).Msg("Click failed")
		writeJSON(w, http.StatusInternalServerError, ClickResponse{Success: false, Error: msgInternal})
	}
}

// StartSession provisions the player if needed and evaluates the streak.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r)
	if err != nil {
		writeServiceError(w, r, "start session", err)
		return
	}

	res, err := h.deps.Session.StartSession(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "start session", err)
		return
	}
	writeSuccess(w, map[string]interface{}{
		"profile":    newProfileView(res.Profile),
		"transition": res.Transition,
		"created":    res.Created,
	})
}

// GetEnergy returns the energy balance as of now.
func (h *Handler) GetEnergy(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r)
	if err != nil {
		writeServiceError(w, r, "get energy", err)
		return
	}

	status, err := h.deps.Session.GetEnergy(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "get energy", err)
		return
	}
	writeSuccess(w, map[string]interface{}{
		"energy":        status.Energy,
		"maxEnergy":     status.MaxEnergy,
		"fullInSeconds": int64(status.FullIn.Seconds()),
	})
}

// GetProfile returns the caller's profile.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r)
	if err != nil {
		writeServiceError(w, r, "get profile", err)
		return
	}

	p, err := h.deps.Session.GetProfile(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "get profile", err)
		return
	}
	writeSuccess(w, newProfileView(p))
}

type renameRequest struct {
	DisplayName string `json:"displayName"`
}

// RenameProfile sets the caller's display name.
func (h *Handler) RenameProfile(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r)
	if err != nil {
		writeServiceError(w, r, "rename", err)
		return
	}

	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name, err := h.deps.Session.RenameDisplayName(r.Context(), id, req.DisplayName)
	if err != nil {
		writeServiceError(w, r, "rename", err)
		return
	}
	writeSuccess(w, map[string]string{"displayName": name})
}

// GetShop lists upgrades with the caller's levels and prices.
func (h *Handler) GetShop(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r)
	if err != nil {
		writeServiceError(w, r, "get shop", err)
		return
	}

	offers, p, err := h.deps.Shop.Catalog(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "get shop", err)
		return
	}
	writeSuccess(w, map[string]interface{}{
		"stars": Number(p.Stars),
		"items": newOfferViews(offers),
	})
}

// Purchase buys the next level of an upgrade.
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r)
	if err != nil {
		writeServiceError(w, r, "purchase", err)
		return
	}

	itemID := shop.ItemID(chi.URLParam(r, "itemID"))
	res, err := h.deps.Shop.Purchase(r.Context(), id, itemID)
	if err != nil {
		writeServiceError(w, r, "purchase", err)
		return
	}
	writeSuccess(w, map[string]interface{}{
		"itemId":  itemID,
		"level":   res.Purchase.Level,
		"price":   Number(res.Price),
		"profile": newProfileView(res.Profile),
	})
}

// GetReferral returns the caller's referral code and count.
func (h *Handler) GetReferral(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r)
	if err != nil {
		writeServiceError(w, r, "get referral", err)
		return
	}

	stats, err := h.deps.Referral.Stats(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "get referral", err)
		return
	}
	writeSuccess(w, map[string]interface{}{
		"code":      stats.Code,
		"referrals": stats.Referrals,
		"bonus":     Number(stats.Bonus),
	})
}

type redeemRequest struct {
	Code string `json:"code"`
}

// RedeemReferral applies a referral code for the caller.
func (h *Handler) RedeemReferral(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r)
	if err != nil {
		writeServiceError(w, r, "redeem referral", err)
		return
	}

	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	res, err := h.deps.Referral.Redeem(r.Context(), id, req.Code)
	if err != nil {
		writeServiceError(w, r, "redeem referral", err)
		return
	}
	writeSuccess(w, map[string]interface{}{
		"referrerId": res.ReferrerID,
		"bonus":      Number(res.Bonus),
		"profile":    newProfileView(res.Profile),
	})
}

// GetLeaderboard returns the ranked top of a day, today by default.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	date := h.deps.Leaderboard.Today()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := model.ParseDay(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.deps.Leaderboard.GetDaily(r.Context(), date, limit)
	if err != nil {
		writeServiceError(w, r, "get leaderboard", err)
		return
	}
	writeSuccess(w, map[string]interface{}{
		"date":    date.Format(model.DateLayout),
		"entries": newLeaderboardViews(entries),
	})
}
