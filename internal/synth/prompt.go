package synth

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/property-research/internal/model"
)

// SystemPrompt frames the model as a Los Angeles property analyst.
const SystemPrompt = `You are a real estate analysis expert specializing in Los Angeles properties.
Analyze the complete property data provided and generate comprehensive insights.
Focus on specific zoning details, development opportunities, regulatory requirements,
and actionable recommendations based on the actual data provided.`

const (
	rawTextMin     = 100
	rawTextLimit   = 1000
	contentLimit   = 500
	tableRowsLimit = 5
)

// BuildPrompt renders the full record and every search result into the user
// prompt. Nothing is filtered out; long text fields are truncated.
func BuildPrompt(record *model.PropertyRecord, results []model.SearchResult) string {
	var b strings.Builder
	b.WriteString("Analyze this Los Angeles property using ALL the available data below.\n")
	b.WriteString("Extract and synthesize insights from the complete dataset provided.\n\n")

	writeRecord(&b, record)
	b.WriteString("\n")
	writeResults(&b, results)

	b.WriteString(`
Provide a comprehensive property analysis using ALL relevant information from both sources.
Focus on:
- Specific zoning requirements and implications
- Development opportunities and constraints
- Transit and location advantages
- Historic preservation requirements
- Market context from web sources
- Actionable investment insights

Use the actual data values provided rather than general assumptions.
`)
	return b.String()
}

func writeRecord(b *strings.Builder, r *model.PropertyRecord) {
	if r == nil {
		b.WriteString("No ZIMAS data available\n")
		return
	}

	b.WriteString("=== COMPLETE ZIMAS PROPERTY DATA ===\n")
	if r.Successful {
		b.WriteString("ZIMAS Search: SUCCESSFUL\n")
	} else {
		b.WriteString("ZIMAS Search: FAILED\n")
	}

	if len(r.Fields) > 0 {
		fmt.Fprintf(b, "\n--- ALL EXTRACTED PROPERTY FIELDS (%d total) ---\n", len(r.Fields))
		writePairs(b, r.Fields, "")
	}

	if len(r.Tables) > 0 {
		fmt.Fprintf(b, "\n--- ALL TABLE DATA (%d tables) ---\n", len(r.Tables))
		for i, t := range r.Tables {
			name := t.Name
			if name == "" {
				name = "Unnamed"
			}
			fmt.Fprintf(b, "\nTable %d: %s\n", i+1, name)
			if len(t.Data) > 0 {
				writePairs(b, t.Data, "  ")
				continue
			}
			if len(t.Rows) > 0 {
				b.WriteString("  Raw rows:\n")
				for _, row := range t.Rows[:min(len(t.Rows), tableRowsLimit)] {
					if strings.TrimSpace(strings.Join(row, "")) == "" {
						continue
					}
					fmt.Fprintf(b, "    %s\n", strings.Join(row, " | "))
				}
			}
		}
	}

	for _, s := range model.Sections {
		fields := r.Sections[s.Key]
		if len(fields) == 0 {
			continue
		}
		fmt.Fprintf(b, "\n--- %s ---\n", strings.ToUpper(s.Label))
		writePairs(b, fields, "")
	}

	if len(r.RawText) > rawTextMin {
		fmt.Fprintf(b, "\n--- RAW PAGE TEXT (first %d chars) ---\n", rawTextLimit)
		b.WriteString(truncate(r.RawText, rawTextLimit))
		b.WriteString("\n")
	}
}

func writeResults(b *strings.Builder, results []model.SearchResult) {
	if len(results) == 0 {
		b.WriteString("=== NO WEB SEARCH RESULTS AVAILABLE ===\n")
		return
	}
	fmt.Fprintf(b, "=== COMPLETE WEB SEARCH RESULTS (%d results) ===\n", len(results))
	for i, r := range results {
		fmt.Fprintf(b, "\n--- RESULT %d ---\n", i+1)
		fmt.Fprintf(b, "Title: %s\n", orDefault(r.Title, "No title"))
		fmt.Fprintf(b, "URL: %s\n", orDefault(r.URL, "No URL"))
		fmt.Fprintf(b, "Relevance Score: %.2f\n", r.RelevanceScore)
		fmt.Fprintf(b, "Content: %s\n", truncate(orDefault(r.Content, "No content"), contentLimit))
	}
}

func writePairs(b *strings.Builder, m map[string]string, indent string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "%s%s: %s\n", indent, k, m[k])
	}
}

// truncate cuts s to limit runes, marking the cut with "...".
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
