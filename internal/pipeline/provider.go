// Package pipeline runs the property research workflow: lookup, web search,
// synthesis and report formatting, folded into one result envelope.
package pipeline

import (
	"context"

	"github.com/sells-group/property-research/internal/model"
)

// PropertyLookup fetches the structured record for an address. A record with
// Successful=false means the portal had no match; an error means the lookup
// itself broke.
type PropertyLookup interface {
	Search(ctx context.Context, addr model.AddressParts) (*model.PropertyRecord, error)
}

// WebSearch gathers supplementary results for an address.
type WebSearch interface {
	Search(ctx context.Context, address string, depth model.AnalysisDepth) ([]model.SearchResult, error)
}

// Synthesizer turns the gathered data into analysis text.
type Synthesizer interface {
	Analyze(ctx context.Context, record *model.PropertyRecord, results []model.SearchResult) (string, error)
}

// ReportFormatter derives the short display report from an envelope.
type ReportFormatter interface {
	Format(ctx context.Context, env *model.Envelope) (*model.FormattedReport, error)
}

// ProgressSink receives progress notifications. Implementations must not block.
type ProgressSink func(percent int, message string)

func (s ProgressSink) report(percent int, message string) {
	if s != nil {
		s(percent, message)
	}
}
