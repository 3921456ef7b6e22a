package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"star-clicker/internal/model"
	"star-clicker/internal/service"
)

// RankingHandler handles ranking-related commands.
type RankingHandler struct {
	leaderboardService *service.LeaderboardService
}

// NewRankingHandler creates a new RankingHandler.
func NewRankingHandler(leaderboardService *service.LeaderboardService) *RankingHandler {
	return &RankingHandler{
		leaderboardService: leaderboardService,
	}
}

// HandleTop handles /top, today's click leaderboard.
func (h *RankingHandler) HandleTop(c tele.Context) error {
	ctx := context.Background()

	entries, err := h.leaderboardService.GetToday(ctx, 0)
	if err != nil {
		return c.Reply("❌ Failed to load the leaderboard, please try again later")
	}

	return c.Reply(FormatLeaderboard(h.leaderboardService.Today(), entries))
}

// FormatLeaderboard renders a daily ranking.
func FormatLeaderboard(date time.Time, entries []model.RankedEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏆 Top clickers %s\n", date.Format(model.DateLayout))
	b.WriteString("━━━━━━━━━━━━━━━\n")

	if len(entries) == 0 {
		b.WriteString("No clicks yet today")
		return b.String()
	}

	medals := []string{"🥇", "🥈", "🥉"}
	for i, e := range entries {
		rank := fmt.Sprintf("%d.", e.Rank)
		if i < len(medals) && e.Rank == i+1 {
			rank = medals[i]
		}
		fmt.Fprintf(&b, "%s %s: %d", rank, e.DisplayName, e.ClicksCount)
		if e.Reward.IsPositive() {
			fmt.Fprintf(&b, " (🎁 %s⭐)", e.Reward.String())
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
