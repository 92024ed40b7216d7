// Package memory holds process-local stores used in development and tests.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	domain "github.com/bryanwahyu/profixion/internal/domain/audits"
)

// AuditRepository is a mutex-guarded audit store.
type AuditRepository struct {
	mu      sync.Mutex
	records map[domain.RecordID]*domain.Record
}

func NewAuditRepository() *AuditRepository {
	return &AuditRepository{records: make(map[domain.RecordID]*domain.Record)}
}

func clone(r *domain.Record) *domain.Record {
	c := *r
	if r.ResultJSON != nil {
		c.ResultJSON = append(json.RawMessage(nil), r.ResultJSON...)
	}
	if r.ClaimedAt != nil {
		t := *r.ClaimedAt
		c.ClaimedAt = &t
	}
	return &c
}

func (r *AuditRepository) CreateRunning(_ context.Context, rec *domain.Record) (*domain.Record, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.records {
		if existing.Status == domain.StatusRunning &&
			existing.RequesterID == rec.RequesterID &&
			existing.ProfileURL == rec.ProfileURL {
			return clone(existing), false, nil
		}
	}
	stored := clone(rec)
	stored.Status = domain.StatusRunning
	r.records[stored.ID] = stored
	return clone(stored), true, nil
}

func (r *AuditRepository) SetExternalJobID(_ context.Context, id domain.RecordID, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	rec.ExternalJobID = jobID
	return nil
}

func (r *AuditRepository) DeleteClaim(_ context.Context, id domain.RecordID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[id]; ok && rec.Status == domain.StatusRunning && rec.ExternalJobID == "" {
		delete(r.records, id)
	}
	return nil
}

func (r *AuditRepository) GetByTrackingID(_ context.Context, trackingID string) (*domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.TrackingID == trackingID {
			return clone(rec), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *AuditRepository) FindByExternalJobID(_ context.Context, jobID string) (*domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if jobID != "" && rec.ExternalJobID == jobID {
			return clone(rec), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *AuditRepository) FindRunningByProfileURL(_ context.Context, profileURL string) (*domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.Record
	for _, rec := range r.records {
		if rec.Status != domain.StatusRunning || rec.ProfileURL != profileURL {
			continue
		}
		if latest == nil || rec.CreatedAt.After(latest.CreatedAt) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return clone(latest), nil
}

func (r *AuditRepository) ListByRequester(_ context.Context, requesterID string, page, pageSize int) (domain.PaginatedResult, error) {
	page, pageSize = domain.NormalizePage(page, pageSize)
	r.mu.Lock()
	var all []*domain.Record
	for _, rec := range r.records {
		if rec.RequesterID == requesterID {
			all = append(all, clone(rec))
		}
	}
	r.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].TrackingID > all[j].TrackingID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := int64(len(all))
	start := (page - 1) * pageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return domain.PaginatedResult{
		Data:       append([]*domain.Record{}, all[start:end]...),
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: domain.TotalPages(total, pageSize),
	}, nil
}

func (r *AuditRepository) Claim(_ context.Context, id domain.RecordID, now time.Time, lease time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || !rec.Claimable(now, lease) {
		return false, nil
	}
	t := now
	rec.ClaimedAt = &t
	return true, nil
}

func (r *AuditRepository) ReleaseClaim(_ context.Context, id domain.RecordID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[id]; ok && rec.Status == domain.StatusRunning {
		rec.ClaimedAt = nil
	}
	return nil
}

func (r *AuditRepository) Complete(_ context.Context, id domain.RecordID, result json.RawMessage, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.Status != domain.StatusRunning {
		return false, nil
	}
	rec.Status = domain.StatusReady
	rec.ResultJSON = append(json.RawMessage(nil), result...)
	rec.UpdatedAt = now
	return true, nil
}

func (r *AuditRepository) Fail(_ context.Context, id domain.RecordID, reason string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.Status != domain.StatusRunning {
		return false, nil
	}
	rec.Status = domain.StatusFailed
	rec.FailureReason = reason
	rec.UpdatedAt = now
	return true, nil
}

// Put stores rec as-is. It exists for seeding tests and fixtures.
func (r *AuditRepository) Put(rec *domain.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = clone(rec)
}
