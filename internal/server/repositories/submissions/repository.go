package submissions

import (
	"context"

	"github.com/spacetask/spacetask/internal/server/models"
)

// Repository stores proofs of completion and their review status.
type Repository interface {
	Create(ctx context.Context, s *models.Submission) (*models.Submission, error)
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	ListByTask(ctx context.Context, taskID string) ([]*models.Submission, error)
	CountByTask(ctx context.Context, taskID string) (int64, error)
	LockForSettlement(ctx context.Context, id string) (*models.SettlementTarget, error)
	SetStatus(ctx context.Context, id string, from, to models.SubmissionStatus) (bool, error)
}
