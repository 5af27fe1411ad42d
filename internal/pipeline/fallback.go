package pipeline

import (
	"fmt"
	"strings"

	"github.com/sells-group/property-research/internal/model"
)

// Fallback analysis section names.
const (
	SectionPropertyOverview = "Property Overview"
	SectionLookupResults    = "ZIMAS Search Results"
	SectionWebResults       = "Web Search Results"
	SectionDataSummary      = "Property Data Summary"
	SectionSectionsFound    = "Sections Found"
	SectionKeyFindings      = "Key Findings"
	SectionRecommendations  = "Recommendations"
	SectionDataQuality      = "Data Quality"
	SectionAnalysisType     = "Analysis Type"

	fallbackAnalysisType = "Fallback Analysis (No LLM)"
	fallbackDefaultNote  = "Basic property search completed with available data sources"
	highRelevanceScore   = 0.7
	maxTitlesListed      = 5
)

// keyFields is the allow-list copied into the property data summary.
var keyFields = []string{
	"Site Address",
	"ZIP Code",
	"Zoning",
	"General Plan Land Use",
	"Community Plan Area",
	"Council District",
	"PIN Number",
}

// FallbackAnalysis builds a structured analysis from the raw data alone. It is
// used when synthesis fails and is fully deterministic.
func FallbackAnalysis(record *model.PropertyRecord, results []model.SearchResult) *model.Analysis {
	succeeded := record != nil && record.Successful

	var (
		lookupLines     []string
		summary         = map[string]string{}
		sections        []string
		findings        []string
		recommendations []string
	)

	if record != nil {
		status := "Failed"
		if succeeded {
			status = "Successful"
		}
		lookupLines = append(lookupLines, "Search Status: "+status)

		if succeeded {
			lookupLines = append(lookupLines,
				fmt.Sprintf("• Extracted %d property data fields", record.FieldCount()),
				fmt.Sprintf("• Processed %d data tables", len(record.Tables)),
			)
			for _, f := range keyFields {
				if v, ok := record.Fields[f]; ok {
					summary[f] = v
				}
			}
			if len(summary) > 0 {
				findings = append(findings, "Retrieved comprehensive property data including zoning and planning information")
			}
			sections = SectionsFound(record)
			if len(sections) > 5 {
				findings = append(findings, fmt.Sprintf("Found data in %d ZIMAS sections", len(sections)))
			}
		}
	}

	var webText string
	if len(results) > 0 {
		webText = fmt.Sprintf("Found %d web search results", len(results))
		var titles []string
		for _, r := range results[:min(len(results), maxTitlesListed)] {
			if r.Title != "" {
				titles = append(titles, r.Title)
			}
		}
		if len(titles) > 0 {
			webText += "\nTop results: " + strings.Join(titles, "; ")
		}

		relevant := 0
		for _, r := range results {
			if r.RelevanceScore > highRelevanceScore {
				relevant++
			}
		}
		if relevant > 0 {
			findings = append(findings, fmt.Sprintf("Found %d highly relevant web results", relevant))
		}
	}

	address := "Unknown address"
	if record != nil {
		address = record.Address.HouseNumber + " " + record.Address.StreetName
	}
	overview := "Property analysis for " + address
	if succeeded {
		overview += "\nComprehensive property data successfully retrieved from ZIMAS"
	} else {
		overview += "\nLimited property data available"
	}

	if succeeded {
		recommendations = append(recommendations, "Review ZIMAS property data for comprehensive planning and zoning information")
		if len(sections) > 0 {
			recommendations = append(recommendations, "Examine specific ZIMAS sections for detailed property characteristics")
		}
	}
	if len(results) > 0 {
		recommendations = append(recommendations, "Review web search results for additional property context")
	}
	if !succeeded {
		recommendations = append(recommendations, "Consider alternative data sources or verify address format for property analysis")
	}

	if len(findings) == 0 {
		findings = []string{fallbackDefaultNote}
	}

	return model.StructuredAnalysis(
		model.AnalysisSection{Name: SectionPropertyOverview, Kind: model.KindText, Text: overview},
		model.AnalysisSection{Name: SectionLookupResults, Kind: model.KindText, Text: strings.Join(lookupLines, "\n")},
		model.AnalysisSection{Name: SectionWebResults, Kind: model.KindText, Text: webText},
		model.AnalysisSection{Name: SectionDataSummary, Kind: model.KindFields, Fields: summary},
		model.AnalysisSection{Name: SectionSectionsFound, Kind: model.KindItems, Items: sections},
		model.AnalysisSection{Name: SectionKeyFindings, Kind: model.KindItems, Items: findings},
		model.AnalysisSection{Name: SectionRecommendations, Kind: model.KindItems, Items: recommendations},
		model.AnalysisSection{Name: SectionDataQuality, Kind: model.KindText, Text: dataQuality(record, results)},
		model.AnalysisSection{Name: SectionAnalysisType, Kind: model.KindText, Text: fallbackAnalysisType},
	)
}

func dataQuality(record *model.PropertyRecord, results []model.SearchResult) string {
	score := 0
	if record != nil && record.Successful {
		score += 60
		if record.FieldCount() > 50 {
			score += 20
		}
	}
	if len(results) > 0 {
		score += 20
	}

	switch {
	case score >= 80:
		return "High - Comprehensive ZIMAS data available"
	case score >= 50:
		return "Medium - Partial data available"
	default:
		return "Low - Limited data available"
	}
}
