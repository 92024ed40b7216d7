package failures

import "time"

// Phase of webhook processing in which a failure happened.
type Phase string

const (
	PhaseProvider Phase = "provider"
	PhaseSnapshot Phase = "snapshot"
	PhaseAnalyze  Phase = "analyze"
	PhasePersist  Phase = "persist"
)

// Failure represents a persisted audit processing failure entry
type Failure struct {
	ID          int64     `json:"id"`
	TrackingID  string    `json:"tracking_id"`
	JobID       string    `json:"job_id,omitempty"`
	Phase       Phase     `json:"phase"`
	Message     string    `json:"message"`
	DetailsJSON string    `json:"details_json,omitempty"` // raw JSON string
	CreatedAt   time.Time `json:"created_at"`
}
