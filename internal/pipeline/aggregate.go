package pipeline

import (
	"github.com/sells-group/property-research/internal/model"
)

// BuildEnvelope assembles the completed-path envelope from the gathered data.
// It has no side effects.
func BuildEnvelope(address string, record *model.PropertyRecord, results []model.SearchResult, analysis *model.Analysis) *model.Envelope {
	return &model.Envelope{
		Address:  address,
		Status:   model.TaskStatusCompleted,
		Message:  MsgCompleted,
		RawData:  model.NewRawData(record, results),
		Analysis: analysis,
		Summary: &model.Summary{
			DataSources:              []string{model.SourcePropertyLookup, model.SourceWebSearch},
			PropertyLookupSuccessful: record != nil && record.Successful,
			PropertyFieldsExtracted:  record.FieldCount(),
			SectionsFound:            SectionsFound(record),
			AnalysisCompleteness:     Completeness(record, results),
			KeyFindings:              KeyFindings(analysis),
		},
	}
}

// SectionsFound lists the labels of non-empty record sections in fixed order.
func SectionsFound(record *model.PropertyRecord) []string {
	found := []string{}
	for _, s := range model.Sections {
		if record.HasSection(s.Key) {
			found = append(found, s.Label)
		}
	}
	return found
}

// CompletenessScore computes the additive data-completeness score. Field and
// section points only count when the lookup succeeded.
func CompletenessScore(record *model.PropertyRecord, results []model.SearchResult) int {
	score := 0
	if record != nil && record.Successful {
		score += 50

		switch fields := record.FieldCount(); {
		case fields > 50:
			score += 20
		case fields > 20:
			score += 10
		}

		switch sections := len(SectionsFound(record)); {
		case sections > 8:
			score += 15
		case sections > 4:
			score += 10
		}
	}
	if len(results) > 0 {
		score += 15
	}
	return score
}

// Completeness buckets CompletenessScore into a grade.
func Completeness(record *model.PropertyRecord, results []model.SearchResult) model.Completeness {
	switch score := CompletenessScore(record, results); {
	case score >= 85:
		return model.CompletenessHigh
	case score >= 65:
		return model.CompletenessMedium
	default:
		return model.CompletenessLow
	}
}
