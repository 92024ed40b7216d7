package mysql

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/bryanwahyu/profixion/internal/domain/failures"
)

type FailureRepository struct {
	db *sql.DB
}

func NewFailureRepository(db *sql.DB) *FailureRepository { return &FailureRepository{db: db} }

func (r *FailureRepository) Save(ctx context.Context, f *failures.Failure) error {
	const q = `
INSERT INTO audit_failures
  (tracking_id, job_id, phase, message, details_json, created_at)
VALUES (?,?,?,?,?,?)
`
	msg := f.Message
	if strings.TrimSpace(msg) == "" {
		msg = "-"
	}
	created := f.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, q,
		stringOrDash(f.TrackingID), stringOrDash(f.JobID), stringOrDash(string(f.Phase)),
		msg, jsonOrEmpty(f.DetailsJSON), created)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		f.ID = id
	}
	return nil
}

func (r *FailureRepository) ListByTracking(ctx context.Context, trackingID string, limit int) ([]*failures.Failure, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, tracking_id, job_id, phase, message, details_json, created_at
FROM audit_failures
WHERE tracking_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?;`
	rows, err := r.db.QueryContext(ctx, q, trackingID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*failures.Failure
	for rows.Next() {
		var f failures.Failure
		if err := rows.Scan(&f.ID, &f.TrackingID, &f.JobID, &f.Phase, &f.Message, &f.DetailsJSON, &f.CreatedAt); err != nil {
			return nil, err
		}
		if f.JobID == "-" {
			f.JobID = ""
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}
