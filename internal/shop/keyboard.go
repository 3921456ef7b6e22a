package shop

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v3"
)

// Inline button uniques; the buy button carries the item id as data.
const (
	CallbackShopBuy     = "shop_buy"
	CallbackShopRefresh = "shop_refresh"
)

// Offer is an item as seen by one player: owned level and next price.
type Offer struct {
	Item       Item            `json:"item"`
	Level      int             `json:"level"`
	Price      decimal.Decimal `json:"price"`
	Affordable bool            `json:"affordable"`
	Maxed      bool            `json:"maxed"`
}

// BuildShopPanel creates the inline keyboard with one buy button per offer.
func BuildShopPanel(offers []Offer) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}

	var rows []tele.Row
	for _, offer := range offers {
		if offer.Maxed {
			continue
		}
		btn := markup.Data(
			fmt.Sprintf("%s %s Lv.%d (%s⭐)", offer.Item.Emoji, offer.Item.Name, offer.Level+1, offer.Price.String()),
			CallbackShopBuy,
			string(offer.Item.ID),
		)
		rows = append(rows, markup.Row(btn))
	}

	rows = append(rows, markup.Row(markup.Data("🔄 Refresh", CallbackShopRefresh)))

	markup.Inline(rows...)
	return markup
}

// FormatShopMessage renders the shop header and one line per offer.
func FormatShopMessage(stars decimal.Decimal, offers []Offer) string {
	var b strings.Builder
	b.WriteString("🏪 Upgrades\n")
	b.WriteString("━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&b, "⭐ Balance: %s\n", stars.String())
	b.WriteString("━━━━━━━━━━━━━━━\n")
	for _, offer := range offers {
		fmt.Fprintf(&b, "%s %s (Lv.%d)\n", offer.Item.Emoji, offer.Item.Name, offer.Level)
		fmt.Fprintf(&b, "   %s\n", offer.Item.Description)
		switch {
		case offer.Maxed:
			b.WriteString("   max level reached\n")
		case offer.Affordable:
			fmt.Fprintf(&b, "   next: %s⭐\n", offer.Price.String())
		default:
			fmt.Fprintf(&b, "   next: %s⭐ (not enough stars)\n", offer.Price.String())
		}
	}
	return b.String()
}
