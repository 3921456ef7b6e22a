package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"star-clicker/internal/model"
)

// HistoryWriter persists aggregated click history.
type HistoryWriter interface {
	InsertClickHistory(ctx context.Context, rows []model.ClickHistory) error
}

var errInvalidEvent = errors.New("invalid click event")

// decodeEvent parses a message value into a click event.
func decodeEvent(value []byte) (model.ClickEvent, error) {
	var event model.ClickEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return event, fmt.Errorf("failed to unmarshal click event: %w", err)
	}
	if event.PlayerID == uuid.Nil || event.OccurredAt.IsZero() {
		return event, errInvalidEvent
	}
	return event, nil
}

// Aggregate folds events into one history row per player, in order of
// first appearance. Each row carries the time of the player's last click.
func Aggregate(events []model.ClickEvent) []model.ClickHistory {
	index := make(map[uuid.UUID]int)
	rows := make([]model.ClickHistory, 0)

	for _, e := range events {
		i, ok := index[e.PlayerID]
		if !ok {
			i = len(rows)
			index[e.PlayerID] = i
			rows = append(rows, model.ClickHistory{
				PlayerID:    e.PlayerID,
				StarsEarned: decimal.Zero,
				CreatedAt:   e.OccurredAt,
			})
		}
		r := &rows[i]
		r.ClicksCount++
		r.StarsEarned = r.StarsEarned.Add(e.ClickValue)
		if e.OccurredAt.After(r.CreatedAt) {
			r.CreatedAt = e.OccurredAt
		}
	}
	return rows
}
