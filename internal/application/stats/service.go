package stats

import (
	"context"
	"fmt"

	domain "github.com/bryanwahyu/profixion/internal/domain/stats"
)

type Service struct {
	Counter domain.Counter
}

type Visits struct {
	Visits int64 `json:"visits"`
}

// RecordVisit bumps the visit counter and returns the new total.
func (s *Service) RecordVisit(ctx context.Context) (Visits, error) {
	n, err := s.Counter.Incr(ctx, domain.VisitsKey)
	if err != nil {
		return Visits{}, fmt.Errorf("record visit: %w", err)
	}
	return Visits{Visits: n}, nil
}

// Visits returns the current total.
func (s *Service) Visits(ctx context.Context) (Visits, error) {
	n, err := s.Counter.Get(ctx, domain.VisitsKey)
	if err != nil {
		return Visits{}, fmt.Errorf("read visits: %w", err)
	}
	return Visits{Visits: n}, nil
}
