package mysql

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
		reason  sql.NullString
		claimed sql.NullTime
	)
	if err := row.Scan(
		&rec.ID, &rec.TrackingID, &rec.RequesterID, &rec.ProfileURL, &jobID, &rec.Status,
		&result, &reason, &claimed, &rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	rec.ExternalJobID = jobID.String
	rec.FailureReason = reason.String
	if len(result) > 0 {
		rec.ResultJSON = json.RawMessage(result)
	}
	if claimed.Valid {
		t := claimed.Time
		rec.ClaimedAt = &t
	}
	return &rec, nil
}

// CreateRunning relies on uq_audits_running, a unique key over a generated
// column that is NULL for terminal rows.
func (r *AuditRepository) CreateRunning(ctx context.Context, rec *domain.Record) (*domain.Record, bool, error) {
	const insert = `
INSERT INTO audits (id, tracking_id, requester_id, profile_url, status, created_at, updated_at)
VALUES (?,?,?,?,'running',?,?)`
	const existing = `SELECT ` + auditColumns + `
FROM audits
WHERE requester_id=? AND profile_url=? AND status='running'
LIMIT 1`

	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	for attempt := 0; attempt < 3; attempt++ {
		_, err := r.db.ExecContext(ctx, insert,
			rec.ID, rec.TrackingID, rec.RequesterID, rec.ProfileURL, created, created)
		if err == nil {
			rec.Status = domain.StatusRunning
			return rec, true, nil
		}
		if !isDuplicate(err) {
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
	const q = `UPDATE audits SET external_job_id=?, updated_at=UTC_TIMESTAMP(6) WHERE id=?`
	res, err := r.db.ExecContext(ctx, q, nullString(jobID), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *AuditRepository) DeleteClaim(ctx context.Context, id domain.RecordID) error {
	const q = `DELETE FROM audits WHERE id=? AND status='running' AND external_job_id IS NULL`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

func (r *AuditRepository) GetByTrackingID(ctx context.Context, trackingID string) (*domain.Record, error) {
	q := `SELECT ` + auditColumns + ` FROM audits WHERE tracking_id=? LIMIT 1`
	return scanAudit(r.db.QueryRowContext(ctx, q, trackingID))
}

func (r *AuditRepository) FindByExternalJobID(ctx context.Context, jobID string) (*domain.Record, error) {
	q := `SELECT ` + auditColumns + `
FROM audits WHERE external_job_id=?
ORDER BY created_at DESC LIMIT 1`
	return scanAudit(r.db.QueryRowContext(ctx, q, jobID))
}

func (r *AuditRepository) FindRunningByProfileURL(ctx context.Context, profileURL string) (*domain.Record, error) {
	q := `SELECT ` + auditColumns + `
FROM audits WHERE profile_url=? AND status='running'
ORDER BY created_at DESC LIMIT 1`
	return scanAudit(r.db.QueryRowContext(ctx, q, profileURL))
}

func (r *AuditRepository) ListByRequester(ctx context.Context, requesterID string, page, pageSize int) (domain.PaginatedResult, error) {
	page, pageSize = domain.NormalizePage(page, pageSize)

	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audits WHERE requester_id=?`, requesterID,
	).Scan(&total); err != nil {
		return domain.PaginatedResult{}, err
	}

	q := `SELECT ` + auditColumns + `
FROM audits WHERE requester_id=?
ORDER BY created_at DESC, tracking_id DESC
LIMIT ? OFFSET ?`
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
UPDATE audits SET claimed_at=?
WHERE id=? AND status='running' AND (claimed_at IS NULL OR claimed_at <= ?)`
	return affected(r.db.ExecContext(ctx, q, now, id, now.Add(-lease)))
}

func (r *AuditRepository) ReleaseClaim(ctx context.Context, id domain.RecordID) error {
	const q = `UPDATE audits SET claimed_at=NULL WHERE id=? AND status='running'`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

func (r *AuditRepository) Complete(ctx context.Context, id domain.RecordID, result json.RawMessage, now time.Time) (bool, error) {
	const q = `
UPDATE audits SET status='ready', result_json=?, claimed_at=NULL, updated_at=?
WHERE id=? AND status='running'`
	return affected(r.db.ExecContext(ctx, q, string(result), now, id))
}

func (r *AuditRepository) Fail(ctx context.Context, id domain.RecordID, reason string, now time.Time) (bool, error) {
	const q = `
UPDATE audits SET status='failed', failure_reason=?, claimed_at=NULL, updated_at=?
WHERE id=? AND status='running'`
	return affected(r.db.ExecContext(ctx, q, reason, now, id))
}

// affected treats exactly one changed row as success. MySQL reports changed
// rows, not matched ones, which is what the conditional updates need.
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
