package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tolkbridge/tolka/internal/models"
	"github.com/tolkbridge/tolka/pkg/repository"
)

const jobColumns = `id, customer_id, from_language_id, due, immediate, duration, status, gender, certified,
customer_phone_type, customer_physical_type, town, job_type, admin_comments, user_email, reference,
address, instructions, specific_translator_id, will_expire_at, session_time, end_at, created_at`

func (r *Repo) CreateJob(ctx context.Context, j *models.Job) (int64, error) {
	if j == nil {
		return 0, fmt.Errorf("job is nil")
	}

	res, err := r.conn.Exec(ctx, `INSERT INTO jobs (customer_id, from_language_id, due, immediate, duration, status, gender, certified,
customer_phone_type, customer_physical_type, town, job_type, admin_comments, user_email, reference,
address, instructions, specific_translator_id, will_expire_at, session_time, end_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.CustomerID, j.FromLanguageID, ts(j.Due), boolInt(j.Immediate), j.Duration, string(j.Status),
		string(j.Gender), string(j.Certified), boolInt(j.CustomerPhoneType), boolInt(j.CustomerPhysicalType),
		j.Town, string(j.JobType), j.AdminComments, j.UserEmail, j.Reference, j.Address, j.Instructions,
		j.SpecificTranslatorID, ts(j.WillExpireAt), j.SessionTime, nullTS(j.EndAt), ts(j.CreatedAt))
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func scanJob(scan func(...any) error) (*models.Job, error) {
	var (
		j                  models.Job
		due, willExpire    int64
		createdAt          int64
		immediate          int
		phoneType          int
		physicalType       int
		status, gender     string
		certified, jobType string
		endAt              sql.NullInt64
	)
	if err := scan(&j.ID, &j.CustomerID, &j.FromLanguageID, &due, &immediate, &j.Duration, &status,
		&gender, &certified, &phoneType, &physicalType, &j.Town, &jobType, &j.AdminComments,
		&j.UserEmail, &j.Reference, &j.Address, &j.Instructions, &j.SpecificTranslatorID,
		&willExpire, &j.SessionTime, &endAt, &createdAt); err != nil {
		return nil, err
	}
	j.Due = fromTS(due)
	j.WillExpireAt = fromTS(willExpire)
	j.CreatedAt = fromTS(createdAt)
	j.Immediate = immediate != 0
	j.CustomerPhoneType = phoneType != 0
	j.CustomerPhysicalType = physicalType != 0
	j.Status = models.JobStatus(status)
	j.Gender = models.Gender(gender)
	j.Certified = models.CertifiedRequirement(certified)
	j.JobType = models.JobType(jobType)
	j.EndAt = scanNullTS(endAt)
	return &j, nil
}

func (r *Repo) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}

		return nil, err
	}

	return j, nil
}

func (r *Repo) UpdateJob(ctx context.Context, j *models.Job) error {
	if j == nil {
		return fmt.Errorf("job is nil")
	}

	_, err := r.conn.Exec(ctx, `UPDATE jobs SET customer_id = ?, from_language_id = ?, due = ?, immediate = ?, duration = ?,
status = ?, gender = ?, certified = ?, customer_phone_type = ?, customer_physical_type = ?, town = ?, job_type = ?,
admin_comments = ?, user_email = ?, reference = ?, address = ?, instructions = ?, specific_translator_id = ?,
will_expire_at = ?, session_time = ?, end_at = ?, created_at = ? WHERE id = ?`,
		j.CustomerID, j.FromLanguageID, ts(j.Due), boolInt(j.Immediate), j.Duration, string(j.Status),
		string(j.Gender), string(j.Certified), boolInt(j.CustomerPhoneType), boolInt(j.CustomerPhysicalType),
		j.Town, string(j.JobType), j.AdminComments, j.UserEmail, j.Reference, j.Address, j.Instructions,
		j.SpecificTranslatorID, ts(j.WillExpireAt), j.SessionTime, nullTS(j.EndAt), ts(j.CreatedAt), j.ID)
	return err
}

func (r *Repo) queryJobs(ctx context.Context, query string, args ...any) ([]models.Job, error) {
	rows, err := r.conn.QueryRows(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Job
	for rows.Next() {
		j, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}

	return out, rows.Err()
}

func (r *Repo) ListPending(ctx context.Context) ([]models.Job, error) {
	return r.queryJobs(ctx, `SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY due ASC`, string(models.StatusPending))
}

func (r *Repo) ListExpiredPending(ctx context.Context, now time.Time) ([]models.Job, error) {
	return r.queryJobs(ctx, `SELECT `+jobColumns+` FROM jobs WHERE status = ? AND will_expire_at > 0 AND will_expire_at <= ? ORDER BY will_expire_at ASC`,
		string(models.StatusPending), ts(now))
}

func statusPlaceholders(statuses []models.JobStatus) (string, []any) {
	ph := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, s := range statuses {
		ph[i] = "?"
		args[i] = string(s)
	}
	return strings.Join(ph, ","), args
}

func (r *Repo) ListByCustomer(ctx context.Context, customerID int64, statuses []models.JobStatus) ([]models.Job, error) {
	ph, args := statusPlaceholders(statuses)
	args = append([]any{customerID}, args...)
	return r.queryJobs(ctx, `SELECT `+jobColumns+` FROM jobs WHERE customer_id = ? AND status IN (`+ph+`) ORDER BY due ASC`, args...)
}

func (r *Repo) ListByTranslator(ctx context.Context, translatorID int64, statuses []models.JobStatus) ([]models.Job, error) {
	ph, args := statusPlaceholders(statuses)
	args = append([]any{translatorID}, args...)
	return r.queryJobs(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id IN
(SELECT job_id FROM translator_assignments WHERE translator_id = ? AND cancel_at IS NULL)
AND status IN (`+ph+`) ORDER BY due ASC`, args...)
}

// ClaimJob flips the job pending -> assigned and inserts the assignment in
// one transaction. The UPDATE is conditional on the status still being
// pending and no active assignment existing, so under concurrent claims at
// most one caller sees an affected row.
func (r *Repo) ClaimJob(ctx context.Context, jobID, translatorID int64, now time.Time) (bool, error) {
	tx, err := r.conn.GetConn().BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}

	res, err := tx.ExecContext(ctx, `UPDATE jobs SET status = ? WHERE id = ? AND status = ?
AND NOT EXISTS (SELECT 1 FROM translator_assignments WHERE job_id = ? AND cancel_at IS NULL AND completed_at IS NULL)`,
		string(models.StatusAssigned), jobID, string(models.StatusPending), jobID)
	if err != nil {
		_ = tx.Rollback()
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return false, err
	}
	if affected == 0 {
		_ = tx.Rollback()
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO translator_assignments (job_id, translator_id, assigned_at) VALUES (?, ?, ?)`,
		jobID, translatorID, ts(now)); err != nil {
		_ = tx.Rollback()
		return false, err
	}

	return true, tx.Commit()
}
