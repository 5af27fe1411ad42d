package synth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/property-research/internal/model"
)

func TestBuildPrompt_FullRecord(t *testing.T) {
	rec := &model.PropertyRecord{
		Successful: true,
		Fields:     map[string]string{"Zoning": "C4-2D-SN", "APN": "5546-030-032"},
		Tables: []model.Table{
			{Name: "Assessor", Data: map[string]string{"Year Built": "1931"}},
			{Rows: [][]string{{"Case", "ZA-1998-123"}, {" ", ""}}},
		},
		Sections: map[model.SectionKey]map[string]string{
			model.SectionPlanningZoning: {"Zoning": "C4-2D-SN"},
			model.SectionAddressLegal:   {"Tract": "TR 1234"},
		},
		RawText: strings.Repeat("x", 1200),
	}
	results := []model.SearchResult{
		{Title: "Vine zoning", URL: "https://a.example", Content: strings.Repeat("c", 600), RelevanceScore: 0.91},
		{URL: "https://b.example", Content: "short"},
	}

	p := BuildPrompt(rec, results)

	assert.Contains(t, p, "ZIMAS Search: SUCCESSFUL")
	assert.Contains(t, p, "--- ALL EXTRACTED PROPERTY FIELDS (2 total) ---\nAPN: 5546-030-032\nZoning: C4-2D-SN\n")
	assert.Contains(t, p, "Table 1: Assessor\n  Year Built: 1931\n")
	assert.Contains(t, p, "Table 2: Unnamed\n  Raw rows:\n    Case | ZA-1998-123\n")
	assert.NotContains(t, p, "     | \n")
	assert.Less(t, strings.Index(p, "--- ADDRESS/LEGAL ---"), strings.Index(p, "--- PLANNING & ZONING ---"))
	assert.Contains(t, p, strings.Repeat("x", 1000)+"...")
	assert.NotContains(t, p, strings.Repeat("x", 1001))

	assert.Contains(t, p, "=== COMPLETE WEB SEARCH RESULTS (2 results) ===")
	assert.Contains(t, p, "Relevance Score: 0.91")
	assert.Contains(t, p, strings.Repeat("c", 500)+"...\n")
	assert.Contains(t, p, "Title: No title")
	assert.Contains(t, p, "Actionable investment insights")
}

func TestBuildPrompt_Empty(t *testing.T) {
	p := BuildPrompt(nil, nil)
	assert.Contains(t, p, "No ZIMAS data available")
	assert.Contains(t, p, "=== NO WEB SEARCH RESULTS AVAILABLE ===")
}

func TestBuildPrompt_ShortRawTextOmitted(t *testing.T) {
	p := BuildPrompt(&model.PropertyRecord{RawText: "tiny"}, nil)
	assert.Contains(t, p, "ZIMAS Search: FAILED")
	assert.NotContains(t, p, "RAW PAGE TEXT")
}
