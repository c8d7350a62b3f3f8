package users

import (
	"context"

	"github.com/spacetask/spacetask/internal/server/models"
)

// Repository stores accounts and their coin balances.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetBalance(ctx context.Context, id string) (int64, error)
	LockBalances(ctx context.Context, ids ...string) (map[string]int64, error)
	AddBalance(ctx context.Context, id string, delta int64) (int64, error)
	Leaderboard(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error)
}
