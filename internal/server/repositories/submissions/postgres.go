// Package submissions provides the PostgreSQL-backed submission repository.
package submissions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

const selectSubmission = `
	SELECT s.id, s.task_id, s.submitter_id, u.username, s.image_ref, s.note, s.status,
		s.submitted_at, s.reviewed_at
	FROM task_submissions s
	JOIN users u ON s.submitter_id = u.id
`

// Create inserts a pending submission.
func (r *PostgresRepository) Create(ctx context.Context, s *models.Submission) (*models.Submission, error) {
	query := `
		INSERT INTO task_submissions (task_id, submitter_id, image_ref, note, status)
		VALUES ($1, $2, $3, $4, 'pending')
		RETURNING id, status, submitted_at
	`
	err := r.db.QueryRowContext(ctx, query, s.TaskID, s.SubmitterID, s.ImageRef, s.Note).
		Scan(&s.ID, &s.Status, &s.SubmittedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return s, nil
}

// GetByID returns the submission or common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	var s models.Submission
	err := r.db.QueryRowContext(ctx, selectSubmission+` WHERE s.id = $1`, id).Scan(
		&s.ID, &s.TaskID, &s.SubmitterID, &s.SubmitterName, &s.ImageRef, &s.Note, &s.Status,
		&s.SubmittedAt, &s.ReviewedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &s, nil
}

// ListByTask returns every submission of the task, newest first.
func (r *PostgresRepository) ListByTask(ctx context.Context, taskID string) ([]*models.Submission, error) {
	rows, err := r.db.QueryContext(ctx, selectSubmission+`
		WHERE s.task_id = $1
		ORDER BY s.submitted_at DESC, s.id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to select submissions: %w", err)
	}
	defer rows.Close()

	var result []*models.Submission
	for rows.Next() {
		var s models.Submission
		if err := rows.Scan(&s.ID, &s.TaskID, &s.SubmitterID, &s.SubmitterName, &s.ImageRef,
			&s.Note, &s.Status, &s.SubmittedAt, &s.ReviewedAt); err != nil {
			return nil, err
		}
		result = append(result, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// CountByTask counts submissions of any status for the task.
func (r *PostgresRepository) CountByTask(ctx context.Context, taskID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM task_submissions WHERE task_id = $1`, taskID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// LockForSettlement locks the submission row together with its task row and
// returns the state settlement decides on. Concurrent settlements of the
// same submission or of sibling submissions of the same task queue here.
func (r *PostgresRepository) LockForSettlement(ctx context.Context, id string) (*models.SettlementTarget, error) {
	query := `
		SELECT s.id, s.status, s.submitter_id, t.id, t.status, t.creator_id, t.bounty_amount
		FROM task_submissions s
		JOIN tasks t ON t.id = s.task_id
		WHERE s.id = $1
		FOR UPDATE OF s, t
	`
	var st models.SettlementTarget
	err := r.db.QueryRowContext(ctx, query, id).Scan(&st.SubmissionID, &st.SubmissionStatus,
		&st.SubmitterID, &st.TaskID, &st.TaskStatus, &st.CreatorID, &st.BountyAmount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return &st, nil
}

// SetStatus moves the submission from one status to another, stamping
// reviewed_at, and reports whether the row was in the expected status.
func (r *PostgresRepository) SetStatus(ctx context.Context, id string, from, to models.SubmissionStatus) (bool, error) {
	query := `
		UPDATE task_submissions SET status = $3, reviewed_at = now()
		WHERE id = $1 AND status = $2
	`
	res, err := r.db.ExecContext(ctx, query, id, from, to)
	if err != nil {
		return false, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("unexpected rows affected: %d", n)
	}
}
