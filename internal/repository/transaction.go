package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"star-clicker/internal/model"
)

// CreateTransaction appends a ledger row and fills in its id.
func (t *pgTx) CreateTransaction(ctx context.Context, tx *model.StarTransaction) error {
	const query = `
		INSERT INTO star_transactions (player_id, amount, type, description, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	if err := t.q.QueryRow(ctx, query, tx.PlayerID, tx.Amount, tx.Type, tx.Description, tx.CreatedAt).Scan(&tx.ID); err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// ListTransactions retrieves a player's ledger, newest first.
func (s *PostgresStore) ListTransactions(ctx context.Context, playerID uuid.UUID, limit int) ([]model.StarTransaction, error) {
	const query = `
		SELECT id, player_id, amount, type, description, created_at
		FROM star_transactions
		WHERE player_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	defer rows.Close()

	var transactions []model.StarTransaction
	for rows.Next() {
		var tx model.StarTransaction
		err := rows.Scan(
			&tx.ID,
			&tx.PlayerID,
			&tx.Amount,
			&tx.Type,
			&tx.Description,
			&tx.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

// InsertClickHistory writes aggregated click batches in one round trip.
func (s *PostgresStore) InsertClickHistory(ctx context.Context, rows []model.ClickHistory) error {
	if len(rows) == 0 {
		return nil
	}

	const query = `
		INSERT INTO click_history (player_id, clicks_count, stars_earned, created_at)
		VALUES ($1, $2, $3, $4)
	`

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(query, r.PlayerID, r.ClicksCount, r.StarsEarned, r.CreatedAt)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert click history: %w", err)
		}
	}
	return nil
}
