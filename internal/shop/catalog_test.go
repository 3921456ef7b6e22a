package shop

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"star-clicker/internal/economy"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()

	items := c.Items()
	require.Len(t, items, 2)
	assert.Equal(t, ItemMultitap, items[0].ID)
	assert.Equal(t, ItemEnergyLimit, items[1].ID)

	multitap, ok := c.Get(ItemMultitap)
	require.True(t, ok)
	assert.Equal(t, EffectClickValue, multitap.Effect)
	assert.True(t, multitap.BasePrice.Equal(decimal.NewFromInt(1000)))
	assert.False(t, multitap.AtMaxLevel(1000))
	assert.Zero(t, multitap.EffectAmount)
	assert.Equal(t, "Stars per click equal the multitap level", multitap.Description)

	energy, ok := c.Get(ItemEnergyLimit)
	require.True(t, ok)
	assert.Equal(t, 100, energy.EffectAmount)

	_, ok = c.Get("rocket")
	assert.False(t, ok)
}

func TestParseCatalog_PriceAt(t *testing.T) {
	c, err := ParseCatalog([]byte(`
items:
  - id: multitap
    name: Multitap
    base_price: "0.001"
    effect: click_value
    max_level: 5
`))
	require.NoError(t, err)

	item, ok := c.Get(ItemMultitap)
	require.True(t, ok)
	assert.True(t, item.PriceAt(3, economy.DefaultGrowth).Equal(decimal.RequireFromString("0.003375")))
	assert.True(t, item.AtMaxLevel(5))
	assert.False(t, item.AtMaxLevel(4))
}

func TestParseCatalog_Invalid(t *testing.T) {
	cases := map[string]string{
		"empty":         "items: []",
		"no id":         "items:\n  - name: x\n    base_price: \"1\"\n    effect: click_value\n",
		"zero price":    "items:\n  - id: a\n    base_price: \"0\"\n    effect: click_value\n",
		"bad effect":    "items:\n  - id: a\n    base_price: \"1\"\n    effect: teleport\n",
		"click amount":  "items:\n  - id: a\n    base_price: \"1\"\n    effect: click_value\n    effect_amount: 1\n",
		"energy amount": "items:\n  - id: a\n    base_price: \"1\"\n    effect: max_energy\n",
		"duplicate ids": "items:\n  - id: a\n    base_price: \"1\"\n    effect: click_value\n  - id: a\n    base_price: \"1\"\n    effect: max_energy\n    effect_amount: 1\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestFormatShopMessage(t *testing.T) {
	item, _ := DefaultCatalog().Get(ItemMultitap)
	msg := FormatShopMessage(decimal.NewFromInt(50), []Offer{
		{Item: item, Level: 2, Price: decimal.NewFromInt(2250)},
	})
	assert.Contains(t, msg, "Balance: 50")
	assert.Contains(t, msg, "Multitap (Lv.2)")
	assert.Contains(t, msg, "not enough stars")

	panel := BuildShopPanel([]Offer{{Item: item, Level: 2, Price: decimal.NewFromInt(2250)}})
	require.Len(t, panel.InlineKeyboard, 2)
	assert.Equal(t, CallbackShopBuy, panel.InlineKeyboard[0][0].Unique)
	assert.Equal(t, string(ItemMultitap), panel.InlineKeyboard[0][0].Data)
}
