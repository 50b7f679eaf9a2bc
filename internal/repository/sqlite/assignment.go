package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tolkbridge/tolka/internal/models"
	"github.com/tolkbridge/tolka/pkg/repository"
)

const assignmentColumns = `id, job_id, translator_id, assigned_at, cancel_at, completed_at, completed_by`

func scanAssignment(scan func(...any) error) (*models.TranslatorAssignment, error) {
	var (
		a          models.TranslatorAssignment
		assignedAt int64
		cancelAt   sql.NullInt64
		completed  sql.NullInt64
	)
	if err := scan(&a.ID, &a.JobID, &a.TranslatorID, &assignedAt, &cancelAt, &completed, &a.CompletedBy); err != nil {
		return nil, err
	}
	a.AssignedAt = fromTS(assignedAt)
	a.CancelAt = scanNullTS(cancelAt)
	a.CompletedAt = scanNullTS(completed)
	return &a, nil
}

func (r *Repo) CreateAssignment(ctx context.Context, a *models.TranslatorAssignment) (int64, error) {
	if a == nil {
		return 0, fmt.Errorf("assignment is nil")
	}

	res, err := r.conn.Exec(ctx, `INSERT INTO translator_assignments (job_id, translator_id, assigned_at, cancel_at, completed_at, completed_by)
VALUES (?, ?, ?, ?, ?, ?)`,
		a.JobID, a.TranslatorID, ts(a.AssignedAt), nullTS(a.CancelAt), nullTS(a.CompletedAt), a.CompletedBy)
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (r *Repo) CancelAssignment(ctx context.Context, id int64, at time.Time) error {
	_, err := r.conn.Exec(ctx, `UPDATE translator_assignments SET cancel_at = ? WHERE id = ?`, ts(at), id)
	return err
}

func (r *Repo) CancelActiveAssignments(ctx context.Context, jobID int64, at time.Time) error {
	_, err := r.conn.Exec(ctx, `UPDATE translator_assignments SET cancel_at = ? WHERE job_id = ? AND cancel_at IS NULL`, ts(at), jobID)
	return err
}

func (r *Repo) CompleteAssignment(ctx context.Context, id int64, at time.Time, completedBy int64) error {
	_, err := r.conn.Exec(ctx, `UPDATE translator_assignments SET completed_at = ?, completed_by = ? WHERE id = ?`, ts(at), completedBy, id)
	return err
}

func (r *Repo) ActiveAssignment(ctx context.Context, jobID int64) (*models.TranslatorAssignment, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM translator_assignments
WHERE job_id = ? AND cancel_at IS NULL AND completed_at IS NULL LIMIT 1`, jobID)
	a, err := scanAssignment(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}

		return nil, err
	}

	return a, nil
}

func (r *Repo) LatestCompletedAssignment(ctx context.Context, jobID int64) (*models.TranslatorAssignment, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM translator_assignments
WHERE job_id = ? AND completed_at IS NOT NULL ORDER BY completed_at DESC LIMIT 1`, jobID)
	a, err := scanAssignment(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}

		return nil, err
	}

	return a, nil
}

func (r *Repo) Assignments(ctx context.Context, jobID int64) ([]models.TranslatorAssignment, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+assignmentColumns+` FROM translator_assignments WHERE job_id = ? ORDER BY id ASC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TranslatorAssignment
	for rows.Next() {
		a, err := scanAssignment(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}

	return out, rows.Err()
}

// SwapAssignment cancels the old assignment and inserts the replacement in
// one transaction so the at-most-one-active invariant holds at every
// observable point.
func (r *Repo) SwapAssignment(ctx context.Context, cancelID int64, a *models.TranslatorAssignment) (int64, error) {
	if a == nil {
		return 0, fmt.Errorf("assignment is nil")
	}

	tx, err := r.conn.GetConn().BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	if cancelID != 0 {
		if _, err := tx.ExecContext(ctx, `UPDATE translator_assignments SET cancel_at = ? WHERE id = ?`, ts(a.AssignedAt), cancelID); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO translator_assignments (job_id, translator_id, assigned_at, cancel_at, completed_at, completed_by)
VALUES (?, ?, ?, ?, ?, ?)`,
		a.JobID, a.TranslatorID, ts(a.AssignedAt), nullTS(a.CancelAt), nullTS(a.CompletedAt), a.CompletedBy)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}

	return id, tx.Commit()
}

func (r *Repo) HasActiveAssignmentAt(ctx context.Context, translatorID int64, due time.Time) (bool, error) {
	row := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM translator_assignments ta
JOIN jobs j ON j.id = ta.job_id
WHERE ta.translator_id = ? AND ta.cancel_at IS NULL AND ta.completed_at IS NULL AND j.due = ?`,
		translatorID, ts(due))
	var count int
	if err := row.Scan(&count); err != nil {
		return false, err
	}

	return count > 0, nil
}
