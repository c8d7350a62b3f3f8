package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spacetask/spacetask/internal/common"
	"github.com/spacetask/spacetask/internal/dbx"
	"github.com/spacetask/spacetask/internal/logging"
	"github.com/spacetask/spacetask/internal/server/models"
	"github.com/spacetask/spacetask/internal/server/repositories/repomanager"
)

// NewTask carries the creator-supplied fields of a task.
type NewTask struct {
	Title              string
	Description        string
	Label              string
	CompletionCriteria string
	BountyAmount       int64
	Latitude           float64
	Longitude          float64
	LocationName       *string
}

func (n NewTask) validate() error {
	if err := requireText("title", n.Title); err != nil {
		return err
	}
	if err := requireText("description", n.Description); err != nil {
		return err
	}
	if err := requireText("completion criteria", n.CompletionCriteria); err != nil {
		return err
	}
	if n.BountyAmount <= 0 {
		return invalid("bounty must be positive")
	}
	return validateCoordinates(n.Latitude, n.Longitude)
}

func validatePatch(p models.TaskPatch) error {
	if p.Empty() {
		return invalid("no editable fields supplied")
	}
	for _, f := range []struct {
		name  string
		value *string
	}{
		{"title", p.Title},
		{"description", p.Description},
		{"completion criteria", p.CompletionCriteria},
	} {
		if f.value != nil {
			if err := requireText(f.name, *f.value); err != nil {
				return err
			}
		}
	}
	if p.BountyAmount != nil && *p.BountyAmount <= 0 {
		return invalid("bounty must be positive")
	}
	return nil
}

// TaskService owns the task lifecycle outside of settlement.
type TaskService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewTaskService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *TaskService {
	return &TaskService{db: db, repomanager: m, logger: logger.With("module", "tasks")}
}

// Create publishes an active task. The creator must hold at least the bounty
// right now; nothing is reserved, so settlement checks again.
func (s *TaskService) Create(ctx context.Context, creatorID string, in NewTask) (*models.Task, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	balance, err := s.repomanager.Users(s.db).GetBalance(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("error reading balance: %w", err)
	}
	if balance < in.BountyAmount {
		return nil, fmt.Errorf("%w: balance %d below bounty %d", common.ErrInsufficientFunds, balance, in.BountyAmount)
	}

	task, err := s.repomanager.Tasks(s.db).Create(ctx, &models.Task{
		CreatorID:          creatorID,
		Title:              in.Title,
		Description:        in.Description,
		Label:              in.Label,
		CompletionCriteria: in.CompletionCriteria,
		BountyAmount:       in.BountyAmount,
		Latitude:           in.Latitude,
		Longitude:          in.Longitude,
		LocationName:       in.LocationName,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating task: %w", err)
	}

	s.logger.Info(ctx, "task created", "task_id", task.ID, "creator_id", creatorID, "bounty", task.BountyAmount)
	return task, nil
}

func (s *TaskService) Get(ctx context.Context, taskID string) (*models.Task, error) {
	task, err := s.repomanager.Tasks(s.db).GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("error loading task: %w", err)
	}
	return task, nil
}

// List pages through tasks in one status, newest first. An empty status
// means active.
func (s *TaskService) List(ctx context.Context, status models.TaskStatus, limit, offset int) ([]*models.Task, error) {
	if status == "" {
		status = models.TaskStatusActive
	}
	if !status.Valid() {
		return nil, invalid("unknown status %q", status)
	}
	limit, err := clampLimit(limit, defaultListLimit, maxListLimit)
	if err != nil {
		return nil, err
	}
	if offset < 0 {
		return nil, invalid("offset must not be negative")
	}

	return s.repomanager.Tasks(s.db).List(ctx, status, limit, offset)
}

func (s *TaskService) ListCreatedBy(ctx context.Context, userID string) ([]*models.Task, error) {
	return s.repomanager.Tasks(s.db).ListByCreator(ctx, userID)
}

// ListCompletedBy returns the tasks the user was paid for.
func (s *TaskService) ListCompletedBy(ctx context.Context, userID string) ([]*models.Task, error) {
	return s.repomanager.Tasks(s.db).ListCompletedBy(ctx, userID)
}

// Update applies patch to an active task owned by actorID. Raising the
// bounty does not re-check the creator's balance.
func (s *TaskService) Update(ctx context.Context, taskID, actorID string, patch models.TaskPatch) (*models.Task, error) {
	var updated *models.Task

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Tasks(tx)

		task, err := s.ownedActiveTask(ctx, repo.GetForUpdate, taskID, actorID)
		if err != nil {
			return err
		}
		if err := validatePatch(patch); err != nil {
			return err
		}

		patch.Apply(task)
		if err := repo.Update(ctx, task); err != nil {
			return fmt.Errorf("error updating task: %w", err)
		}

		updated = task
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// Cancel withdraws an active task. Pending submissions stay as they are but
// can no longer be accepted.
func (s *TaskService) Cancel(ctx context.Context, taskID, actorID string) (*models.Task, error) {
	var cancelled *models.Task

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Tasks(tx)

		task, err := s.ownedActiveTask(ctx, repo.GetForUpdate, taskID, actorID)
		if err != nil {
			return err
		}

		ok, err := repo.SetStatus(ctx, taskID, models.TaskStatusActive, models.TaskStatusCancelled)
		if err != nil {
			return fmt.Errorf("error cancelling task: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: task is no longer active", common.ErrInvalidState)
		}

		task.Status = models.TaskStatusCancelled
		cancelled = task
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "task cancelled", "task_id", taskID)
	return cancelled, nil
}

// Delete removes a task that has never received a submission. The task row
// stays locked between the count and the delete so a concurrent Submit
// cannot slip in.
func (s *TaskService) Delete(ctx context.Context, taskID, actorID string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		tasks := s.repomanager.Tasks(tx)

		task, err := tasks.GetForUpdate(ctx, taskID)
		if err != nil {
			return fmt.Errorf("error loading task: %w", err)
		}
		if task.CreatorID != actorID {
			return fmt.Errorf("%w: only the creator may delete a task", common.ErrForbidden)
		}

		n, err := s.repomanager.Submissions(tx).CountByTask(ctx, taskID)
		if err != nil {
			return fmt.Errorf("error counting submissions: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("%w: task has %d submissions", common.ErrConflict, n)
		}

		if err := tasks.Delete(ctx, taskID); err != nil {
			return fmt.Errorf("error deleting task: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "task deleted", "task_id", taskID)
	return nil
}

// Nearby lists active tasks inside the bounding box around (lat, lng).
// A zero radius means DefaultNearbyRadiusKm.
func (s *TaskService) Nearby(ctx context.Context, lat, lng, radiusKm float64) ([]*models.Task, error) {
	box, err := NewBoundingBox(lat, lng, radiusKm)
	if err != nil {
		return nil, err
	}
	return s.repomanager.Tasks(s.db).FindInBox(ctx, box)
}

type taskLoader func(ctx context.Context, id string) (*models.Task, error)

func (s *TaskService) ownedActiveTask(ctx context.Context, load taskLoader, taskID, actorID string) (*models.Task, error) {
	task, err := load(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("error loading task: %w", err)
	}
	if task.CreatorID != actorID {
		return nil, fmt.Errorf("%w: only the creator may change a task", common.ErrForbidden)
	}
	if task.Status != models.TaskStatusActive {
		return nil, fmt.Errorf("%w: task is %s", common.ErrInvalidState, task.Status)
	}
	return task, nil
}
