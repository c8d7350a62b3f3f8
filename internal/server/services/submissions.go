package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spacetask/spacetask/internal/common"
	"github.com/spacetask/spacetask/internal/dbx"
	"github.com/spacetask/spacetask/internal/logging"
	"github.com/spacetask/spacetask/internal/server/config"
	"github.com/spacetask/spacetask/internal/server/models"
	"github.com/spacetask/spacetask/internal/server/repositories/repomanager"
)

// SubmissionService handles proofs of completion and their review,
// including the bounty settlement that follows an acceptance.
type SubmissionService struct {
	db                *sql.DB
	repomanager       repomanager.RepositoryManager
	logger            logging.Logger
	settlementTimeout time.Duration
	lockTimeout       time.Duration
}

func NewSubmissionService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *SubmissionService {
	return &SubmissionService{
		db:                db,
		repomanager:       m,
		logger:            logger.With("module", "submissions"),
		settlementTimeout: cfg.SettlementTimeout,
		lockTimeout:       cfg.LockTimeout,
	}
}

// Submit records a pending proof against an active task. The task row is
// share-locked until the insert commits, so it cannot be deleted or change
// status underneath the new submission.
func (s *SubmissionService) Submit(ctx context.Context, taskID, submitterID, imageRef string, note *string) (*models.Submission, error) {
	var created *models.Submission

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		task, err := s.repomanager.Tasks(tx).GetForShare(ctx, taskID)
		if err != nil {
			return fmt.Errorf("error loading task: %w", err)
		}
		if task.Status != models.TaskStatusActive {
			return fmt.Errorf("%w: task is %s", common.ErrInvalidState, task.Status)
		}
		if task.CreatorID == submitterID {
			return fmt.Errorf("%w: cannot submit to your own task", common.ErrForbidden)
		}
		if strings.TrimSpace(imageRef) == "" {
			return invalid("image reference must not be empty")
		}

		created, err = s.repomanager.Submissions(tx).Create(ctx, &models.Submission{
			TaskID:      taskID,
			SubmitterID: submitterID,
			ImageRef:    imageRef,
			Note:        note,
		})
		if err != nil {
			return fmt.Errorf("error creating submission: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "submission created", "submission_id", created.ID, "task_id", taskID, "submitter_id", submitterID)
	return created, nil
}

// ListForTask returns the task's submissions, newest first. Only the task
// creator may see them.
func (s *SubmissionService) ListForTask(ctx context.Context, taskID, actorID string) ([]*models.Submission, error) {
	task, err := s.repomanager.Tasks(s.db).GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("error loading task: %w", err)
	}
	if task.CreatorID != actorID {
		return nil, fmt.Errorf("%w: only the creator may list submissions", common.ErrForbidden)
	}
	return s.repomanager.Submissions(s.db).ListByTask(ctx, taskID)
}

// Reject marks a pending submission rejected. No coins move.
func (s *SubmissionService) Reject(ctx context.Context, submissionID, actorID string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		subs := s.repomanager.Submissions(tx)

		target, err := subs.LockForSettlement(ctx, submissionID)
		if err != nil {
			return fmt.Errorf("error loading submission: %w", err)
		}
		if target.CreatorID != actorID {
			return fmt.Errorf("%w: only the creator may review submissions", common.ErrForbidden)
		}

		ok, err := subs.SetStatus(ctx, submissionID, models.SubmissionStatusPending, models.SubmissionStatusRejected)
		if err != nil {
			return fmt.Errorf("error rejecting submission: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: submission is %s", common.ErrConflict, target.SubmissionStatus)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "submission rejected", "submission_id", submissionID)
	return nil
}

// settlementError folds the ways a settlement can lose a race into
// common.ErrConflict so callers see one retryable kind.
func settlementError(err error) error {
	switch {
	case err == nil, errors.Is(err, common.ErrConflict):
		return err
	case errors.Is(err, common.ErrAlreadyExists), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", common.ErrConflict, err)
	}
	return err
}
