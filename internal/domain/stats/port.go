// Package stats covers the public visit counter.
package stats

import "context"

// VisitsKey names the site-wide visit counter.
const VisitsKey = "stats:visits"

// Counter port for a monotonically increasing named counter.
type Counter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
}
