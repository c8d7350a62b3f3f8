// Package tasks provides the PostgreSQL-backed task repository.
package tasks

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

const selectTask = `
	SELECT t.id, t.creator_id, u.username, t.title, t.description, t.label, t.completion_criteria,
		t.bounty_amount, t.latitude, t.longitude, t.location_name, t.status, t.created_at, t.updated_at
	FROM tasks t
	JOIN users u ON t.creator_id = u.id
`

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.CreatorID, &t.CreatorName, &t.Title, &t.Description, &t.Label,
		&t.CompletionCriteria, &t.BountyAmount, &t.Latitude, &t.Longitude, &t.LocationName,
		&t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PostgresRepository) selectMany(ctx context.Context, query string, args ...any) ([]*models.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select tasks: %w", err)
	}
	defer rows.Close()

	var result []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Create inserts an active task and fills in its id and timestamps.
func (r *PostgresRepository) Create(ctx context.Context, task *models.Task) (*models.Task, error) {
	query := `
		INSERT INTO tasks (creator_id, title, description, label, completion_criteria,
			bounty_amount, latitude, longitude, location_name, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'active')
		RETURNING id, status, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		task.CreatorID, task.Title, task.Description, task.Label, task.CompletionCriteria,
		task.BountyAmount, task.Latitude, task.Longitude, task.LocationName,
	).Scan(&task.ID, &task.Status, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return task, nil
}

// GetByID returns the task with its creator's username or common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	t, err := scanTask(r.db.QueryRowContext(ctx, selectTask+` WHERE t.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

// GetForUpdate reads the task and holds an exclusive row lock on it until the
// surrounding transaction ends.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*models.Task, error) {
	return r.getLocked(ctx, id, "FOR UPDATE OF t")
}

// GetForShare reads the task and holds a shared row lock on it, which blocks
// concurrent deletes and status changes but not other readers.
func (r *PostgresRepository) GetForShare(ctx context.Context, id string) (*models.Task, error) {
	return r.getLocked(ctx, id, "FOR SHARE OF t")
}

func (r *PostgresRepository) getLocked(ctx context.Context, id string, lock string) (*models.Task, error) {
	t, err := scanTask(r.db.QueryRowContext(ctx, selectTask+` WHERE t.id = $1 `+lock, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return t, nil
}

// List returns tasks in the given status, newest first.
func (r *PostgresRepository) List(ctx context.Context, status models.TaskStatus, limit, offset int) ([]*models.Task, error) {
	return r.selectMany(ctx, selectTask+`
		WHERE t.status = $1
		ORDER BY t.created_at DESC, t.id
		LIMIT $2 OFFSET $3`, status, limit, offset)
}

// ListByCreator returns every task created by creatorID, newest first.
func (r *PostgresRepository) ListByCreator(ctx context.Context, creatorID string) ([]*models.Task, error) {
	return r.selectMany(ctx, selectTask+`
		WHERE t.creator_id = $1
		ORDER BY t.created_at DESC, t.id`, creatorID)
}

// ListCompletedBy returns tasks where submitterID holds the accepted submission.
func (r *PostgresRepository) ListCompletedBy(ctx context.Context, submitterID string) ([]*models.Task, error) {
	return r.selectMany(ctx, selectTask+`
		JOIN task_submissions s ON s.task_id = t.id
		WHERE s.submitter_id = $1 AND s.status = 'accepted'
		ORDER BY s.submitted_at DESC, t.id`, submitterID)
}

// FindInBox returns active tasks whose coordinates fall inside box.
func (r *PostgresRepository) FindInBox(ctx context.Context, box models.BoundingBox) ([]*models.Task, error) {
	return r.selectMany(ctx, selectTask+`
		WHERE t.status = 'active'
		AND t.latitude BETWEEN $1 AND $2
		AND t.longitude BETWEEN $3 AND $4
		ORDER BY t.created_at DESC, t.id`, box.MinLat, box.MaxLat, box.MinLng, box.MaxLng)
}

// Update writes the editable fields of task.
func (r *PostgresRepository) Update(ctx context.Context, task *models.Task) error {
	query := `
		UPDATE tasks SET title = $2, description = $3, label = $4, completion_criteria = $5,
			bounty_amount = $6, updated_at = now()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		task.ID, task.Title, task.Description, task.Label, task.CompletionCriteria, task.BountyAmount)
	if err != nil {
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// SetStatus moves the task from one status to another and reports whether
// the row was in the expected status. It is the compare-and-swap that makes
// completion happen at most once.
func (r *PostgresRepository) SetStatus(ctx context.Context, id string, from, to models.TaskStatus) (bool, error) {
	query := `
		UPDATE tasks SET status = $3, updated_at = now()
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

// Delete removes the task. A task still referenced by submissions fails the
// foreign key and yields common.ErrConflict.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
