package ledger

import (
	"context"

	"github.com/spacetask/spacetask/internal/server/models"
)

// Repository is the append-only store of coin movements.
type Repository interface {
	Append(ctx context.Context, entry *models.LedgerEntry) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.LedgerEntry, error)
	Drift(ctx context.Context) ([]*models.BalanceDrift, error)
}
