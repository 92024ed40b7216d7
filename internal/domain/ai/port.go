package ai

import (
	"context"
	"encoding/json"

	"github.com/bryanwahyu/profixion/internal/domain/audits"
)

// Client analyzes scraped profile data and returns structured output only.
type Client interface {
	Analyze(ctx context.Context, profile json.RawMessage) (audits.AnalysisResult, error)
}
