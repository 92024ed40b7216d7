package audits

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RecordID is the store-assigned identifier of an audit row.
type RecordID string

// Status of an audit attempt.
type Status string

const (
	StatusRunning Status = "running"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusReady || s == StatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusRunning, StatusReady, StatusFailed:
		return true
	}
	return false
}

// TrackingIDPrefix is prepended to every caller-facing tracking id.
const TrackingIDPrefix = "audit_"

// Parameters scored by the analysis, in report order.
var Parameters = []string{
	"Headline",
	"About Section",
	"Experience Details",
	"Skills & Certifications",
}

// ParameterScore scores one profile parameter from 0 to 10.
type ParameterScore struct {
	ParameterName string  `json:"parameterName"`
	Score         float64 `json:"score"`
	Justification string  `json:"justification"`
}

// AnalysisResult is the structured output of the generative analysis.
type AnalysisResult struct {
	URL             string           `json:"url"`
	Name            string           `json:"name"`
	Headline        string           `json:"headline"`
	OverallScore    float64          `json:"overallScore"`
	Strengths       []string         `json:"strengths"`
	Weaknesses      []string         `json:"weaknesses"`
	Recommendations []string         `json:"recommendations"`
	ParameterScores []ParameterScore `json:"parameterScores"`
}

// Sanitize fills absent lists with empty ones, trims blank entries and
// clamps every score into its range. It never fails.
func (r AnalysisResult) Sanitize() AnalysisResult {
	out := r
	out.URL = strings.TrimSpace(r.URL)
	out.Name = strings.TrimSpace(r.Name)
	out.Headline = strings.TrimSpace(r.Headline)
	out.OverallScore = clamp(r.OverallScore, 0, 100)
	out.Strengths = compact(r.Strengths)
	out.Weaknesses = compact(r.Weaknesses)
	out.Recommendations = compact(r.Recommendations)

	out.ParameterScores = make([]ParameterScore, 0, len(r.ParameterScores))
	for _, p := range r.ParameterScores {
		name := strings.TrimSpace(p.ParameterName)
		if name == "" {
			continue
		}
		out.ParameterScores = append(out.ParameterScores, ParameterScore{
			ParameterName: name,
			Score:         clamp(p.Score, 0, 10),
			Justification: strings.TrimSpace(p.Justification),
		})
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Record is one audit attempt.
type Record struct {
	ID            RecordID        `json:"id"`
	TrackingID    string          `json:"trackingId"`
	RequesterID   string          `json:"requesterId"`
	ProfileURL    string          `json:"profileUrl"`
	ExternalJobID string          `json:"externalJobId,omitempty"`
	Status        Status          `json:"status"`
	ResultJSON    json.RawMessage `json:"-"` // analysis as stored; decode with Analysis
	FailureReason string          `json:"failureReason,omitempty"`
	ClaimedAt     *time.Time      `json:"-"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Claimable reports whether a completion may take the record at now.
func (r *Record) Claimable(now time.Time, lease time.Duration) bool {
	if r.Status != StatusRunning {
		return false
	}
	return r.ClaimedAt == nil || now.Sub(*r.ClaimedAt) >= lease
}

// Analysis decodes the stored analysis. It returns nil, nil when the record
// is not ready and ErrCorruptedData when the stored bytes do not decode.
func (r *Record) Analysis() (*AnalysisResult, error) {
	if r.Status != StatusReady {
		return nil, nil
	}
	if len(r.ResultJSON) == 0 {
		return nil, fmt.Errorf("%w: ready audit %s has no analysis", ErrCorruptedData, r.TrackingID)
	}
	var res AnalysisResult
	if err := json.Unmarshal(r.ResultJSON, &res); err != nil {
		return nil, fmt.Errorf("%w: audit %s: %v", ErrCorruptedData, r.TrackingID, err)
	}
	return &res, nil
}
