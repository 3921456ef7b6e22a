package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"star-clicker/internal/service"
	"star-clicker/internal/shop"
)

// ShopHandler handles shop-related commands
type ShopHandler struct {
	shopService    *service.ShopService
	sessionService *service.SessionService
}

// NewShopHandler creates a new ShopHandler
func NewShopHandler(shopService *service.ShopService, sessionService *service.SessionService) *ShopHandler {
	return &ShopHandler{
		shopService:    shopService,
		sessionService: sessionService,
	}
}

// panel renders the sender's shop.
func (h *ShopHandler) panel(ctx context.Context, sender *tele.User) (string, *tele.ReplyMarkup, error) {
	res, err := h.sessionService.StartTelegramSession(ctx, sender.ID, senderName(sender))
	if err != nil {
		return "", nil, err
	}
	offers, p, err := h.shopService.Catalog(ctx, res.Profile.ID)
	if err != nil {
		return "", nil, err
	}
	return shop.FormatShopMessage(p.Stars, offers), shop.BuildShopPanel(offers), nil
}

// HandleShop handles /shop.
func (h *ShopHandler) HandleShop(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	msg, markup, err := h.panel(context.Background(), sender)
	if err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to load shop")
		return c.Reply("❌ Something went wrong, please try again later")
	}
	return c.Reply(msg, markup)
}

// HandleShopCallback handles the buy and refresh buttons.
func (h *ShopHandler) HandleShopCallback(c tele.Context) error {
	ctx := context.Background()
	callback := c.Callback()
	sender := c.Sender()
	if callback == nil || sender == nil {
		return nil
	}

	unique, payload := ParseCallback(callback.Data)

	switch unique {
	case shop.CallbackShopRefresh:
		_ = c.Respond()

	case shop.CallbackShopBuy:
		res, err := h.sessionService.StartTelegramSession(ctx, sender.ID, senderName(sender))
		if err != nil {
			log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to start session")
			return c.Respond(&tele.CallbackResponse{Text: "❌ Something went wrong", ShowAlert: true})
		}

		purchase, err := h.shopService.Purchase(ctx, res.Profile.ID, shop.ItemID(payload))
		switch {
		case err == nil:
			_ = c.Respond(&tele.CallbackResponse{Text: "✅ Upgraded to level " + strconv.Itoa(purchase.Purchase.Level)})
		case errors.Is(err, service.ErrInsufficientFunds):
			return c.Respond(&tele.CallbackResponse{Text: "❌ Not enough stars", ShowAlert: true})
		case errors.Is(err, service.ErrUnknownUpgrade), errors.Is(err, service.ErrMaxLevel):
			return c.Respond(&tele.CallbackResponse{Text: "❌ This upgrade is not available", ShowAlert: true})
		default:
			log.Error().Err(err).Int64("user_id", sender.ID).Str("item", payload).Msg("Purchase failed")
			return c.Respond(&tele.CallbackResponse{Text: "❌ Purchase failed, please try again later", ShowAlert: true})
		}

	default:
		return nil
	}

	msg, markup, err := h.panel(ctx, sender)
	if err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to load shop")
		return nil
	}
	return c.Edit(msg, markup)
}

// ParseCallback splits telebot callback data into the button unique and
// its payload.
func ParseCallback(data string) (unique, payload string) {
	data = strings.TrimPrefix(data, "\f")
	unique, payload, _ = strings.Cut(data, "|")
	return unique, payload
}
