// Package ledger provides the PostgreSQL-backed transaction ledger. Rows are
// only ever inserted; the schema rejects updates and deletes.
package ledger

import (
	"context"
	"fmt"

	"github.com/spacetask/spacetask/internal/dbx"
	"github.com/spacetask/spacetask/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append records one coin movement and fills in its id and timestamp.
func (r *PostgresRepository) Append(ctx context.Context, e *models.LedgerEntry) error {
	query := `
		INSERT INTO transactions (from_user_id, to_user_id, amount, transaction_type, task_id, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, e.FromUserID, e.ToUserID, e.Amount, e.Type, e.TaskID, e.Description).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return nil
}

// ListByUser returns the entries the user sent or received, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.LedgerEntry, error) {
	query := `
		SELECT id, from_user_id, to_user_id, amount, transaction_type, task_id, description, created_at
		FROM transactions
		WHERE to_user_id = $1 OR from_user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select transactions: %w", err)
	}
	defer rows.Close()

	var result []*models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.FromUserID, &e.ToUserID, &e.Amount, &e.Type, &e.TaskID,
			&e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Drift returns every user whose stored balance differs from the sum of
// credits minus debits in the ledger. An empty result means the books balance.
func (r *PostgresRepository) Drift(ctx context.Context) ([]*models.BalanceDrift, error) {
	query := `
		WITH credits AS (
			SELECT to_user_id AS user_id, SUM(amount) AS total
			FROM transactions
			GROUP BY to_user_id
		), debits AS (
			SELECT from_user_id AS user_id, SUM(amount) AS total
			FROM transactions
			WHERE from_user_id IS NOT NULL
			GROUP BY from_user_id
		)
		SELECT u.id, u.username, u.coin_balance,
			COALESCE(c.total, 0) - COALESCE(d.total, 0) AS ledger_balance
		FROM users u
		LEFT JOIN credits c ON c.user_id = u.id
		LEFT JOIN debits d ON d.user_id = u.id
		WHERE u.coin_balance <> COALESCE(c.total, 0) - COALESCE(d.total, 0)
		ORDER BY u.username
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to compute drift: %w", err)
	}
	defer rows.Close()

	var result []*models.BalanceDrift
	for rows.Next() {
		var d models.BalanceDrift
		if err := rows.Scan(&d.UserID, &d.UserName, &d.CoinBalance, &d.LedgerBalance); err != nil {
			return nil, err
		}
		result = append(result, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
