package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/profixion/internal/domain/audits"
)

type AuditRepository struct{ db *sql.DB }

func NewAuditRepository(db *sql.DB) *AuditRepository { return &AuditRepository{db: db} }

const auditColumns = `id, tracking_id, requester_id, profile_url, external_job_id, status,
       result_json, failure_reason, claimed_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAudit(row rowScanner) (*domain.Record, error) {
	var (
		rec     domain.Record
		jobID   sql.NullString
		result  []byte
		claimed sql.NullTime
	)
	if err := row.Scan(
		&rec.ID, &rec.TrackingID, &rec.RequesterID, &rec.ProfileURL, &jobID, &rec.Status,
		&result, &rec.FailureReason, &claimed, &rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	rec.ExternalJobID = jobID.String
	if len(result) > 0 {
		rec.ResultJSON = json.RawMessage(result)
	}
	if claimed.Valid {
		t := claimed.Time
		rec.ClaimedAt = &t
	}
	return &rec, nil
}

// CreateRunning relies on the partial unique index audits_running_uq.
func (r *AuditRepository) CreateRunning(ctx context.Context, rec *domain.Record) (*domain.Record, bool, error) {
	const insert = `
INSERT INTO audits (id, tracking_id, requester_id, profile_url, status, failure_reason, created_at, updated_at)
VALUES ($1,$2,$3,$4,'running','',$5,$5)
ON CONFLICT (requester_id, profile_url) WHERE status = 'running' DO NOTHING
RETURNING id;`
	const existing = `SELECT ` + auditColumns + `
FROM audits
WHERE requester_id=$1 AND profile_url=$2 AND status='running'
LIMIT 1;`

	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	// the running row we collided with may finish before we read it; retry
	for attempt := 0; attempt < 3; attempt++ {
		var id string
		err := r.db.QueryRowContext(ctx, insert,
			rec.ID, rec.TrackingID, rec.RequesterID, rec.ProfileURL, created,
		).Scan(&id)
		if err == nil {
			rec.Status = domain.StatusRunning
			return rec, true, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, false, err
		}
		found, err := scanAudit(r.db.QueryRowContext(ctx, existing, rec.RequesterID, rec.ProfileURL))
		if err == nil {
			return found, false, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, false, err
		}
	}
	return nil, false, fmt.Errorf("create running audit: contention on %s", rec.ProfileURL)
}

func (r *AuditRepository) SetExternalJobID(ctx context.Context, id domain.RecordID, jobID string) error {
	const q = `UPDATE audits SET external_job_id=$2, updated_at=now() WHERE id=$1;`
	res, err := r.db.ExecContext(ctx, q, id, nullString(jobID))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *AuditRepository) DeleteClaim(ctx context.Context, id domain.RecordID) error {
	const q = `DELETE FROM audits WHERE id=$1 AND status='running' AND external_job_id IS NULL;`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

func (r *AuditRepository) GetByTrackingID(ctx context.Context, trackingID string) (*domain.Record, error) {
	q := `SELECT ` + auditColumns + ` FROM audits WHERE tracking_id=$1 LIMIT 1;`
	return scanAudit(r.db.QueryRowContext(ctx, q, trackingID))
}

func (r *AuditRepository) FindByExternalJobID(ctx context.Context, jobID string) (*domain.Record, error) {
	q := `SELECT ` + auditColumns + `
FROM audits WHERE external_job_id=$1
ORDER BY created_at DESC LIMIT 1;`
	return scanAudit(r.db.QueryRowContext(ctx, q, jobID))
}

func (r *AuditRepository) FindRunningByProfileURL(ctx context.Context, profileURL string) (*domain.Record, error) {
	q := `SELECT ` + auditColumns + `
FROM audits WHERE profile_url=$1 AND status='running'
ORDER BY created_at DESC LIMIT 1;`
	return scanAudit(r.db.QueryRowContext(ctx, q, profileURL))
}

func (r *AuditRepository) ListByRequester(ctx context.Context, requesterID string, page, pageSize int) (domain.PaginatedResult, error) {
	page, pageSize = domain.NormalizePage(page, pageSize)

	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audits WHERE requester_id=$1;`, requesterID,
	).Scan(&total); err != nil {
		return domain.PaginatedResult{}, err
	}

	q := `SELECT ` + auditColumns + `
FROM audits WHERE requester_id=$1
ORDER BY created_at DESC, tracking_id DESC
LIMIT $2 OFFSET $3;`
	rows, err := r.db.QueryContext(ctx, q, requesterID, pageSize, (page-1)*pageSize)
	if err != nil {
		return domain.PaginatedResult{}, err
	}
	defer rows.Close()

	out := make([]*domain.Record, 0, pageSize)
	for rows.Next() {
		rec, err := scanAudit(rows)
		if err != nil {
			return domain.PaginatedResult{}, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return domain.PaginatedResult{}, err
	}
	return domain.PaginatedResult{
		Data:       out,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: domain.TotalPages(total, pageSize),
	}, nil
}

func (r *AuditRepository) Claim(ctx context.Context, id domain.RecordID, now time.Time, lease time.Duration) (bool, error) {
	const q = `
UPDATE audits SET claimed_at=$2
WHERE id=$1 AND status='running' AND (claimed_at IS NULL OR claimed_at <= $3);`
	return affected(r.db.ExecContext(ctx, q, id, now, now.Add(-lease)))
}

func (r *AuditRepository) ReleaseClaim(ctx context.Context, id domain.RecordID) error {
	const q = `UPDATE audits SET claimed_at=NULL WHERE id=$1 AND status='running';`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

func (r *AuditRepository) Complete(ctx context.Context, id domain.RecordID, result json.RawMessage, now time.Time) (bool, error) {
	const q = `
UPDATE audits SET status='ready', result_json=$2::jsonb, claimed_at=NULL, updated_at=$3
WHERE id=$1 AND status='running';`
	return affected(r.db.ExecContext(ctx, q, id, string(result), now))
}

func (r *AuditRepository) Fail(ctx context.Context, id domain.RecordID, reason string, now time.Time) (bool, error) {
	const q = `
UPDATE audits SET status='failed', failure_reason=$2, claimed_at=NULL, updated_at=$3
WHERE id=$1 AND status='running';`
	return affected(r.db.ExecContext(ctx, q, id, reason, now))
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
