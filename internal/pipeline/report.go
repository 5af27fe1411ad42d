package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/property-research/internal/model"
)

const maxReportFindings = 3

// SummaryFormatter builds the formatted report from an envelope's summary.
type SummaryFormatter struct {
	now func() time.Time
}

// NewSummaryFormatter creates a formatter. A nil clock uses time.Now.
func NewSummaryFormatter(now func() time.Time) *SummaryFormatter {
	if now == nil {
		now = time.Now
	}
	return &SummaryFormatter{now: now}
}

// Format implements ReportFormatter.
func (f *SummaryFormatter) Format(_ context.Context, env *model.Envelope) (*model.FormattedReport, error) {
	if env == nil {
		return nil, eris.New("pipeline: format nil envelope")
	}

	address := env.Address
	if address == "" {
		address = "Unknown"
	}
	status := env.Status
	if status == "" {
		status = model.TaskStatusCompleted
	}

	rep := &model.FormattedReport{
		Title:         "Property Analysis Report - " + address,
		GeneratedDate: f.now(),
		Status:        status,
		DataQuality:   "Unknown",
	}
	if s := env.Summary; s != nil {
		rep.DataQuality = s.AnalysisCompleteness
		rep.PropertyLookupSuccessful = s.PropertyLookupSuccessful
		rep.SectionsFound = len(s.SectionsFound)
		rep.KeyFindings = s.KeyFindings[:min(len(s.KeyFindings), maxReportFindings)]
	}
	return rep, nil
}

// RenderText renders an envelope as a human-readable report.
func RenderText(env *model.Envelope) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Property Analysis: %s\n", env.Address)
	fmt.Fprintf(&b, "Status: %s\n", env.Status)
	if env.Message != "" {
		fmt.Fprintf(&b, "Message: %s\n", env.Message)
	}
	if env.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", env.Error)
	}
	if env.StepFailed != "" {
		fmt.Fprintf(&b, "Failed at: %s\n", env.StepFailed)
	}
	b.WriteString("\n")

	if s := env.Summary; s != nil {
		b.WriteString("## Summary\n")
		fmt.Fprintf(&b, "- Data sources: %s\n", strings.Join(s.DataSources, ", "))
		fmt.Fprintf(&b, "- Lookup successful: %t\n", s.PropertyLookupSuccessful)
		fmt.Fprintf(&b, "- Fields extracted: %d\n", s.PropertyFieldsExtracted)
		fmt.Fprintf(&b, "- Completeness: %s\n", s.AnalysisCompleteness)
		if len(s.SectionsFound) > 0 {
			fmt.Fprintf(&b, "- Sections: %s\n", strings.Join(s.SectionsFound, ", "))
		}
		b.WriteString("\n## Key Findings\n")
		for _, f := range s.KeyFindings {
			fmt.Fprintf(&b, "- %s\n", f)
		}
		b.WriteString("\n")
	}

	if a := env.Analysis; a != nil {
		b.WriteString("## Analysis\n")
		if !a.IsStructured() {
			b.WriteString(strings.TrimSpace(a.Text))
			b.WriteString("\n")
			return b.String()
		}
		for _, s := range a.Sections {
			fmt.Fprintf(&b, "### %s\n", s.Name)
			switch s.Kind {
			case model.KindItems:
				for _, item := range s.Items {
					fmt.Fprintf(&b, "- %s\n", item)
				}
			case model.KindFields:
				for _, k := range keyFields {
					if v, ok := s.Fields[k]; ok {
						fmt.Fprintf(&b, "- %s: %s\n", k, v)
					}
				}
			default:
				if s.Text != "" {
					b.WriteString(s.Text)
					b.WriteString("\n")
				}
			}
		}
	}
	return b.String()
}
