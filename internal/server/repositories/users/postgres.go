// Package users provides the PostgreSQL-backed account repository, which
// owns the coin_balance column.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/spacetask/spacetask/internal/common"
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

// Create inserts a new user with the given balance. Duplicate usernames or
// emails yield common.ErrAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`INSERT INTO users (username, email, password_hash, coin_balance)
         VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.UserName, user.Email, user.PasswordHash, user.CoinBalance).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}

	return user, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, where string, arg any) (*models.User, error) {
	query :=
		`SELECT id, username, email, password_hash, coin_balance, created_at, updated_at FROM users
		 WHERE ` + where

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&user.ID, &user.UserName, &user.Email,
		&user.PasswordHash, &user.CoinBalance, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

// GetByID returns the user with the given id or common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, "id = $1", id)
}

// GetByEmail returns the user registered with email or common.ErrorNotFound.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "email = $1", email)
}

// GetBalance reads the current balance without locking.
func (r *PostgresRepository) GetBalance(ctx context.Context, id string) (int64, error) {
	var balance int64
	err := r.db.QueryRowContext(ctx, `SELECT coin_balance FROM users WHERE id = $1`, id).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return balance, nil
}

// LockBalances takes row locks on the given users in id order and returns
// their balances. It must run inside a transaction. Missing users yield
// common.ErrorNotFound.
func (r *PostgresRepository) LockBalances(ctx context.Context, ids ...string) (map[string]int64, error) {
	if len(ids) == 0 {
		return map[string]int64{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := `SELECT id, coin_balance FROM users
		 WHERE id IN (` + strings.Join(placeholders, ", ") + `)
		 ORDER BY id
		 FOR UPDATE`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	defer rows.Close()

	balances := make(map[string]int64, len(ids))
	for rows.Next() {
		var id string
		var balance int64
		if err := rows.Scan(&id, &balance); err != nil {
			return nil, err
		}
		balances[id] = balance
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}

	for _, id := range ids {
		if _, ok := balances[id]; !ok {
			return nil, common.ErrorNotFound
		}
	}
	return balances, nil
}

// AddBalance adds delta (which may be negative) to the user's balance and
// returns the new value. A result below zero violates the schema and is
// reported as common.ErrInsufficientFunds.
func (r *PostgresRepository) AddBalance(ctx context.Context, id string, delta int64) (int64, error) {
	query :=
		`UPDATE users SET coin_balance = coin_balance + $2, updated_at = now()
		 WHERE id = $1
		 RETURNING coin_balance
		 `

	var balance int64
	err := r.db.QueryRowContext(ctx, query, id, delta).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		err = dbx.Classify(err)
		if errors.Is(err, common.ErrValidation) {
			return 0, fmt.Errorf("%w: %w", common.ErrInsufficientFunds, err)
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return balance, nil
}

// Leaderboard ranks users by balance, then accepted submissions, then
// username, which is a total order.
func (r *PostgresRepository) Leaderboard(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error) {
	query := `
		WITH user_completions AS (
			SELECT submitter_id, COUNT(*) AS completed_tasks
			FROM task_submissions
			WHERE status = 'accepted'
			GROUP BY submitter_id
		)
		SELECT u.id, u.username, u.coin_balance, COALESCE(uc.completed_tasks, 0)
		FROM users u
		LEFT JOIN user_completions uc ON u.id = uc.submitter_id
		ORDER BY u.coin_balance DESC, COALESCE(uc.completed_tasks, 0) DESC, u.username ASC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select leaderboard: %w", err)
	}
	defer rows.Close()

	var result []*models.LeaderboardEntry
	for rows.Next() {
		var item models.LeaderboardEntry
		if err := rows.Scan(&item.UserID, &item.UserName, &item.CoinBalance, &item.CompletedTasks); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
