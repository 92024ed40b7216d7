package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/bryanwahyu/profixion/internal/domain/failures"
)

// FailureRepository keeps the failure log in memory.
type FailureRepository struct {
	mu     sync.Mutex
	nextID int64
	items  []*failures.Failure
}

func NewFailureRepository() *FailureRepository { return &FailureRepository{} }

func (r *FailureRepository) Save(_ context.Context, f *failures.Failure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c := *f
	c.ID = r.nextID
	f.ID = c.ID
	r.items = append(r.items, &c)
	return nil
}

func (r *FailureRepository) ListByTracking(_ context.Context, trackingID string, limit int) ([]*failures.Failure, error) {
	if limit <= 0 {
		limit = 20
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*failures.Failure
	for _, f := range r.items {
		if f.TrackingID == trackingID {
			c := *f
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
