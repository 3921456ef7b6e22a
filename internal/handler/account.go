// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"star-clicker/internal/economy"
	"star-clicker/internal/model"
	"star-clicker/internal/service"
)

// AccountHandler handles account-related commands.
type AccountHandler struct {
	sessionService  *service.SessionService
	clickService    *service.ClickService
	referralService *service.ReferralService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(sessionService *service.SessionService, clickService *service.ClickService, referralService *service.ReferralService) *AccountHandler {
	return &AccountHandler{
		sessionService:  sessionService,
		clickService:    clickService,
		referralService: referralService,
	}
}

func senderName(sender *tele.User) string {
	if sender.Username != "" {
		return sender.Username
	}
	return sender.FirstName
}

// session starts (or continues) the sender's daily session.
func (h *AccountHandler) session(ctx context.Context, sender *tele.User) (*service.SessionResult, error) {
	return h.sessionService.StartTelegramSession(ctx, sender.ID, senderName(sender))
}

// HandleStart handles /start with an optional referral code payload.
func (h *AccountHandler) HandleStart(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	res, err := h.session(ctx, sender)
	if err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to start session")
		return c.Reply("❌ Something went wrong, please try again later")
	}

	var b strings.Builder
	if res.Created {
		fmt.Fprintf(&b, "🎉 Welcome, %s!\n\n", res.Profile.DisplayName)
	} else {
		fmt.Fprintf(&b, "👋 Welcome back, %s!\n\n", res.Profile.DisplayName)
	}
	b.WriteString(streakLine(res.Transition, res.Profile.StreakDays))

	if code := startPayload(c); code != "" {
		b.WriteString("\n")
		b.WriteString(h.redeem(ctx, res.Profile, code))
	}

	b.WriteString("\n\nCommands:\n" +
		"/tap - tap for stars\n" +
		"/me - your stats\n" +
		"/top - today's leaderboard\n" +
		"/shop - upgrades")
	return c.Reply(b.String())
}

// startPayload returns the deep-link argument of /start, if any.
func startPayload(c tele.Context) string {
	if payload := strings.TrimSpace(c.Message().Payload); payload != "" {
		return payload
	}
	args := c.Args()
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

func (h *AccountHandler) redeem(ctx context.Context, p *model.Profile, code string) string {
	res, err := h.referralService.Redeem(ctx, p.ID, code)
	switch {
	case err == nil:
		return fmt.Sprintf("🤝 Referral accepted: +%s⭐ for you and your friend", res.Bonus.String())
	case errors.Is(err, service.ErrInvalidReferralCode):
		return "⚠️ Unknown referral code"
	case errors.Is(err, service.ErrSelfReferral):
		return "⚠️ You cannot use your own referral code"
	case errors.Is(err, service.ErrAlreadyReferred):
		return "⚠️ You have already used a referral code"
	default:
		log.Error().Err(err).Str("player_id", p.ID.String()).Msg("Referral redeem failed")
		return "⚠️ Could not apply the referral code"
	}
}

func streakLine(t economy.Transition, days int) string {
	switch t {
	case economy.TransitionContinued:
		return fmt.Sprintf("🔥 Streak continued: %d days", days)
	case economy.TransitionBroken:
		return "💔 Streak reset, starting again at day 1"
	case economy.TransitionFresh:
		return "🌱 Day 1 of your streak"
	default:
		return fmt.Sprintf("🔥 Streak: %d days", days)
	}
}

// HandleTap handles /tap, one click.
func (h *AccountHandler) HandleTap(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	res, err := h.session(ctx, sender)
	if err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to start session")
		return c.Reply("❌ Something went wrong, please try again later")
	}

	click, err := h.clickService.ProcessClick(ctx, res.Profile.ID)
	switch {
	case err == nil:
		return c.Reply(fmt.Sprintf("⭐ +%s (total %s) ⚡ %d/%d",
			click.ClickValue.String(), click.Profile.Stars.String(),
			click.Profile.Energy, click.Profile.MaxEnergy))
	case errors.Is(err, service.ErrInsufficientEnergy):
		return c.Reply("🪫 Not enough energy")
	default:
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Click failed")
		return c.Reply("❌ Something went wrong, please try again later")
	}
}

// HandleMe handles /me.
func (h *AccountHandler) HandleMe(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	res, err := h.session(ctx, sender)
	if err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to start session")
		return c.Reply("❌ Something went wrong, please try again later")
	}

	code, err := h.referralService.EnsureCode(ctx, res.Profile.ID)
	if err != nil {
		log.Warn().Err(err).Str("player_id", res.Profile.ID.String()).Msg("Failed to load referral code")
		code = ""
	}

	return c.Reply(FormatProfile(res.Profile, code))
}

// FormatProfile renders a player's stats.
func FormatProfile(p *model.Profile, referralCode string) string {
	var b strings.Builder
	b.WriteString("📊 Your stats\n")
	b.WriteString("━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&b, "👤 %s\n", p.DisplayName)
	fmt.Fprintf(&b, "⭐ Stars: %s\n", p.Stars.String())
	fmt.Fprintf(&b, "⚡ Energy: %d/%d\n", p.Energy, p.MaxEnergy)
	fmt.Fprintf(&b, "👆 Today: %d clicks (total %d)\n", p.DailyClicks, p.TotalClicks)
	fmt.Fprintf(&b, "🔥 Streak: %d days\n", p.StreakDays)
	if referralCode != "" {
		fmt.Fprintf(&b, "🤝 Referral code: %s\n", referralCode)
	}
	b.WriteString("━━━━━━━━━━━━━━━")
	return b.String()
}
