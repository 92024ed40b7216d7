package audits

import (
	"context"
	"encoding/json"
	"time"
)

// Repository port for the audit record store.
type Repository interface {
	// CreateRunning inserts rec as running unless a running record already
	// exists for the same requester and profile URL. In that case the
	// existing record is returned and created is false.
	CreateRunning(ctx context.Context, rec *Record) (existing *Record, created bool, err error)
	SetExternalJobID(ctx context.Context, id RecordID, jobID string) error
	// DeleteClaim removes a running record that never received a job id.
	DeleteClaim(ctx context.Context, id RecordID) error

	GetByTrackingID(ctx context.Context, trackingID string) (*Record, error)
	FindByExternalJobID(ctx context.Context, jobID string) (*Record, error)
	FindRunningByProfileURL(ctx context.Context, profileURL string) (*Record, error)
	ListByRequester(ctx context.Context, requesterID string, page, pageSize int) (PaginatedResult, error)

	// Claim marks a running record as being completed. It reports false when
	// the record is terminal or held by an unexpired claim.
	Claim(ctx context.Context, id RecordID, now time.Time, lease time.Duration) (bool, error)
	// ReleaseClaim clears the claim of a still-running record.
	ReleaseClaim(ctx context.Context, id RecordID) error
	// Complete and Fail only transition running records; they report false
	// when the record was already terminal.
	Complete(ctx context.Context, id RecordID, result json.RawMessage, now time.Time) (bool, error)
	Fail(ctx context.Context, id RecordID, reason string, now time.Time) (bool, error)
}

// Scraper port for the profile scraping provider.
type Scraper interface {
	Trigger(ctx context.Context, profileURL, callbackURL string) (jobID string, err error)
	FetchSnapshot(ctx context.Context, jobID string) (json.RawMessage, error)
	Progress(ctx context.Context, jobID string) (string, error)
}

// ReportInput is everything a rendered report shows.
type ReportInput struct {
	TrackingID  string
	ProfileURL  string
	DisplayName string
	Date        time.Time
	Analysis    AnalysisResult
}

// Renderer port for the report document renderer.
type Renderer interface {
	Render(ctx context.Context, in ReportInput) ([]byte, error)
}

// DocumentStore port for rendered report storage.
type DocumentStore interface {
	PutReport(ctx context.Context, key string, data []byte) (url string, expiresAt time.Time, err error)
}
