package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"star-clicker/internal/model"
)

// ListPurchases returns every upgrade a player owns.
func (s *PostgresStore) ListPurchases(ctx context.Context, playerID uuid.UUID) ([]model.ShopPurchase, error) {
	const query = `
		SELECT player_id, item_id, level, total_spent, created_at, updated_at
		FROM shop_purchases
		WHERE player_id = $1
		ORDER BY item_id
	`

	rows, err := s.pool.Query(ctx, query, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	defer rows.Close()

	var purchases []model.ShopPurchase
	for rows.Next() {
		var p model.ShopPurchase
		if err := rows.Scan(&p.PlayerID, &p.ItemID, &p.Level, &p.TotalSpent, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		purchases = append(purchases, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating purchases: %w", err)
	}

	return purchases, nil
}

func (t *pgTx) GetPurchase(ctx context.Context, playerID uuid.UUID, itemID string) (*model.ShopPurchase, error) {
	const query = `
		SELECT player_id, item_id, level, total_spent, created_at, updated_at
		FROM shop_purchases
		WHERE player_id = $1 AND item_id = $2
	`

	var p model.ShopPurchase
	err := t.q.QueryRow(ctx, query, playerID, itemID).Scan(
		&p.PlayerID, &p.ItemID, &p.Level, &p.TotalSpent, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("failed to get purchase: %w", err)
	}
	return &p, nil
}

func (t *pgTx) SavePurchase(ctx context.Context, p *model.ShopPurchase) error {
	const query = `
		INSERT INTO shop_purchases (player_id, item_id, level, total_spent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (player_id, item_id) DO UPDATE
		SET level = EXCLUDED.level, total_spent = EXCLUDED.total_spent, updated_at = EXCLUDED.updated_at
	`

	_, err := t.q.Exec(ctx, query, p.PlayerID, p.ItemID, p.Level, p.TotalSpent, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save purchase: %w", err)
	}
	return nil
}
