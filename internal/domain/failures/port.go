package failures

import "context"

// Repository defines persistence for audit failures
type Repository interface {
	Save(ctx context.Context, f *Failure) error
	ListByTracking(ctx context.Context, trackingID string, limit int) ([]*Failure, error)
}
