package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spacetask/spacetask/internal/common"
	"github.com/spacetask/spacetask/internal/dbx"
	"github.com/spacetask/spacetask/internal/server/models"
)

const (
	bountyDescription     = "Task bounty payment"
	completionDescription = "Base task completion reward"
)

// Accept settles a submission: the creator pays the bounty, the system pays
// the base reward, both ledger rows are written and the submission and task
// reach their terminal states, all in one transaction.
//
// The submission and task rows are locked first, then both user rows in id
// order, so concurrent settlements on the same task serialize and
// settlements touching the same users cannot deadlock on each other.
func (s *SubmissionService) Accept(ctx context.Context, submissionID, actorID string) (*models.Settlement, error) {
	var result *models.Settlement

	opts := &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	err := dbx.WithTimeoutTx(ctx, s.db, s.settlementTimeout, opts, func(ctx context.Context, tx dbx.DBTX) error {
		if s.lockTimeout > 0 {
			// SET does not take bind parameters.
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("error setting lock timeout: %w", dbx.Classify(err))
			}
		}

		subs := s.repomanager.Submissions(tx)
		users := s.repomanager.Users(tx)
		ledger := s.repomanager.Ledger(tx)

		target, err := subs.LockForSettlement(ctx, submissionID)
		if err != nil {
			return fmt.Errorf("error locking submission: %w", err)
		}
		if target.CreatorID != actorID {
			return fmt.Errorf("%w: only the creator may accept submissions", common.ErrForbidden)
		}
		if target.SubmissionStatus != models.SubmissionStatusPending {
			return fmt.Errorf("%w: submission is %s", common.ErrConflict, target.SubmissionStatus)
		}
		if target.TaskStatus != models.TaskStatusActive {
			return fmt.Errorf("%w: task is %s", common.ErrInvalidState, target.TaskStatus)
		}

		bounty := target.BountyAmount

		balances, err := users.LockBalances(ctx, target.CreatorID, target.SubmitterID)
		if err != nil {
			return fmt.Errorf("error locking balances: %w", err)
		}
		if balances[target.CreatorID] < bounty {
			return fmt.Errorf("%w: creator balance %d below bounty %d",
				common.ErrInsufficientFunds, balances[target.CreatorID], bounty)
		}

		creatorBalance, err := users.AddBalance(ctx, target.CreatorID, -bounty)
		if err != nil {
			return fmt.Errorf("error debiting creator: %w", err)
		}
		submitterBalance, err := users.AddBalance(ctx, target.SubmitterID, bounty+common.BaseReward)
		if err != nil {
			return fmt.Errorf("error crediting submitter: %w", err)
		}

		creatorID, taskID := target.CreatorID, target.TaskID
		entries := []*models.LedgerEntry{
			{
				FromUserID:  &creatorID,
				ToUserID:    target.SubmitterID,
				Amount:      bounty,
				Type:        models.TransactionTaskBounty,
				TaskID:      &taskID,
				Description: bountyDescription,
			},
			{
				ToUserID:    target.SubmitterID,
				Amount:      common.BaseReward,
				Type:        models.TransactionTaskCompletion,
				TaskID:      &taskID,
				Description: completionDescription,
			},
		}
		for _, e := range entries {
			if err := ledger.Append(ctx, e); err != nil {
				return fmt.Errorf("error appending %s entry: %w", e.Type, err)
			}
		}

		ok, err := subs.SetStatus(ctx, submissionID, models.SubmissionStatusPending, models.SubmissionStatusAccepted)
		if err != nil {
			return fmt.Errorf("error accepting submission: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: submission changed during settlement", common.ErrConflict)
		}

		ok, err = s.repomanager.Tasks(tx).SetStatus(ctx, taskID, models.TaskStatusActive, models.TaskStatusCompleted)
		if err != nil {
			return fmt.Errorf("error completing task: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: task changed during settlement", common.ErrConflict)
		}

		result = &models.Settlement{
			SubmissionID:     submissionID,
			TaskID:           taskID,
			CreatorID:        creatorID,
			SubmitterID:      target.SubmitterID,
			Bounty:           bounty,
			BaseReward:       common.BaseReward,
			CreatorBalance:   creatorBalance,
			SubmitterBalance: submitterBalance,
		}
		return nil
	})

	if err = settlementError(err); err != nil {
		if dbx.IsRetryable(err) {
			s.logger.Warn(ctx, "settlement lost a race", "submission_id", submissionID, "error", err)
		}
		return nil, err
	}

	s.logger.Info(ctx, "submission accepted",
		"submission_id", submissionID,
		"task_id", result.TaskID,
		"bounty", result.Bounty,
		"transferred", result.Transferred(),
	)
	return result, nil
}
