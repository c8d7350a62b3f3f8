package tasks

import (
	"context"

	"github.com/spacetask/spacetask/internal/server/models"
)

// Repository stores tasks and their lifecycle status.
type Repository interface {
	Create(ctx context.Context, task *models.Task) (*models.Task, error)
	GetByID(ctx context.Context, id string) (*models.Task, error)
	GetForUpdate(ctx context.Context, id string) (*models.Task, error)
	GetForShare(ctx context.Context, id string) (*models.Task, error)
	List(ctx context.Context, status models.TaskStatus, limit, offset int) ([]*models.Task, error)
	ListByCreator(ctx context.Context, creatorID string) ([]*models.Task, error)
	ListCompletedBy(ctx context.Context, submitterID string) ([]*models.Task, error)
	FindInBox(ctx context.Context, box models.BoundingBox) ([]*models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	SetStatus(ctx context.Context, id string, from, to models.TaskStatus) (bool, error)
	Delete(ctx context.Context, id string) error
}
