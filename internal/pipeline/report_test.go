package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/property-research/internal/model"
)

func TestSummaryFormatter_Format(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	f := NewSummaryFormatter(func() time.Time { return now })

	env := &model.Envelope{
		Address: "1600 Vine",
		Status:  model.TaskStatusCompleted,
		Summary: &model.Summary{
			PropertyLookupSuccessful: true,
			SectionsFound:            []string{"Assessor", "Housing"},
			AnalysisCompleteness:     model.CompletenessMedium,
			KeyFindings:              []string{"a", "b", "c", "d"},
		},
	}

	rep, err := f.Format(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, "Property Analysis Report - 1600 Vine", rep.Title)
	assert.Equal(t, now, rep.GeneratedDate)
	assert.Equal(t, model.TaskStatusCompleted, rep.Status)
	assert.Equal(t, model.CompletenessMedium, rep.DataQuality)
	assert.True(t, rep.PropertyLookupSuccessful)
	assert.Equal(t, 2, rep.SectionsFound)
	assert.Equal(t, []string{"a", "b", "c"}, rep.KeyFindings)
}

func TestSummaryFormatter_Defaults(t *testing.T) {
	t.Parallel()

	rep, err := NewSummaryFormatter(nil).Format(context.Background(), &model.Envelope{})
	require.NoError(t, err)
	assert.Equal(t, "Property Analysis Report - Unknown", rep.Title)
	assert.Equal(t, model.TaskStatusCompleted, rep.Status)
	assert.Equal(t, model.Completeness("Unknown"), rep.DataQuality)

	_, err = NewSummaryFormatter(nil).Format(context.Background(), nil)
	assert.Error(t, err)
}

func TestRenderText_Text(t *testing.T) {
	t.Parallel()

	env := BuildEnvelope("1600 Vine", newRecord(2, 1), nil, model.TextAnalysis("- Zoned C4 along Vine Street\n"))
	out := RenderText(env)

	assert.Contains(t, out, "# Property Analysis: 1600 Vine")
	assert.Contains(t, out, "Status: completed")
	assert.Contains(t, out, "- Completeness: Low")
	assert.Contains(t, out, "- Sections: Address/Legal")
	assert.Contains(t, out, "## Key Findings\n- Zoned C4 along Vine Street")
	assert.Contains(t, out, "## Analysis\n- Zoned C4 along Vine Street")
}

func TestRenderText_StructuredAndFailed(t *testing.T) {
	t.Parallel()

	rec := newRecord(0, 0)
	rec.Fields["Zoning"] = "R1"
	env := BuildEnvelope("1 Elm", rec, nil, FallbackAnalysis(rec, nil))
	out := RenderText(env)
	assert.Contains(t, out, "### Property Data Summary\n- Zoning: R1")
	assert.Contains(t, out, "### Analysis Type\nFallback Analysis (No LLM)")

	failed := &model.Envelope{Address: "x", Status: model.TaskStatusFailed, Error: "boom", StepFailed: StepWebSearch}
	out = RenderText(failed)
	assert.Contains(t, out, "Error: boom")
	assert.Contains(t, out, "Failed at: web_search")
	assert.NotContains(t, out, "## Summary")
}
