package handler

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"star-clicker/internal/economy"
	"star-clicker/internal/model"
	"star-clicker/internal/shop"
)

func TestParseCallback(t *testing.T) {
	tests := []struct {
		data    string
		unique  string
		payload string
	}{
		{"\fshop_buy|multitap", shop.CallbackShopBuy, "multitap"},
		{"shop_buy|energy_limit", shop.CallbackShopBuy, "energy_limit"},
		{"\fshop_refresh", shop.CallbackShopRefresh, ""},
		{"", "", ""},
	}

	for _, tt := range tests {
		unique, payload := ParseCallback(tt.data)
		assert.Equal(t, tt.unique, unique, tt.data)
		assert.Equal(t, tt.payload, payload, tt.data)
	}
}

func TestFormatLeaderboard(t *testing.T) {
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	entries := []model.RankedEntry{
		{Rank: 1, PlayerID: uuid.New(), DisplayName: "Alpha", ClicksCount: 300, Reward: decimal.NewFromInt(10000)},
		{Rank: 2, PlayerID: uuid.New(), DisplayName: "Bravo", ClicksCount: 200, Reward: decimal.NewFromInt(5000)},
		{Rank: 3, PlayerID: uuid.New(), DisplayName: "Charlie", ClicksCount: 100, Reward: decimal.NewFromInt(2500)},
		{Rank: 4, PlayerID: uuid.New(), DisplayName: "Delta", ClicksCount: 50, Reward: decimal.Zero},
	}

	out := FormatLeaderboard(date, entries)
	lines := strings.Split(out, "\n")

	assert.Contains(t, lines[0], "2025-03-10")
	assert.Equal(t, "🥇 Alpha: 300 (🎁 10000⭐)", lines[2])
	assert.Equal(t, "🥈 Bravo: 200 (🎁 5000⭐)", lines[3])
	assert.Equal(t, "🥉 Charlie: 100 (🎁 2500⭐)", lines[4])
	assert.Equal(t, "4. Delta: 50", lines[5])
}

func TestFormatLeaderboard_Empty(t *testing.T) {
	out := FormatLeaderboard(time.Now(), nil)
	assert.Contains(t, out, "No clicks yet today")
}

func TestFormatProfile(t *testing.T) {
	p := &model.Profile{
		DisplayName: "StarHunter",
		Stars:       decimal.RequireFromString("12.5"),
		Energy:      940,
		MaxEnergy:   1000,
		DailyClicks: 60,
		TotalClicks: 1200,
		StreakDays:  4,
	}

	out := FormatProfile(p, "ABCD1234")
	assert.Contains(t, out, "👤 StarHunter")
	assert.Contains(t, out, "⭐ Stars: 12.5")
	assert.Contains(t, out, "⚡ Energy: 940/1000")
	assert.Contains(t, out, "Today: 60 clicks (total 1200)")
	assert.Contains(t, out, "Streak: 4 days")
	assert.Contains(t, out, "Referral code: ABCD1234")

	assert.NotContains(t, FormatProfile(p, ""), "Referral code")
}

func TestStreakLine(t *testing.T) {
	assert.Contains(t, streakLine(economy.TransitionContinued, 5), "5 days")
	assert.Contains(t, streakLine(economy.TransitionBroken, 1), "reset")
	assert.Contains(t, streakLine(economy.TransitionFresh, 1), "Day 1")
	assert.Contains(t, streakLine(economy.TransitionSameDay, 3), "3 days")
}

func TestShopPanelCallbacksRouteToShop(t *testing.T) {
	offers := []shop.Offer{
		{Item: shop.Item{ID: shop.ItemMultitap, Name: "Multitap"}, Level: 1, Price: decimal.NewFromInt(1500)},
	}
	markup := shop.BuildShopPanel(offers)

	buy := markup.InlineKeyboard[0][0]
	unique, payload := ParseCallback("\f" + buy.Unique + "|" + buy.Data)
	assert.Equal(t, shop.CallbackShopBuy, unique)
	assert.Equal(t, string(shop.ItemMultitap), payload)
}
