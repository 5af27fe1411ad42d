package model

import "time"

// Completeness grades how much data a run gathered.
type Completeness string

const (
	CompletenessHigh   Completeness = "High"
	CompletenessMedium Completeness = "Medium"
	CompletenessLow    Completeness = "Low"
	CompletenessFailed Completeness = "Failed"
	CompletenessError  Completeness = "Error"
)

// Data source labels reported in an envelope summary.
const (
	SourcePropertyLookup = "ZIMAS Property Search"
	SourceWebSearch      = "Web Search"
)

// Envelope is the complete, self-describing result of one pipeline run.
// Address and Status are always set; the remaining fields depend on which
// terminal path the run took. Envelopes are not mutated once stored.
type Envelope struct {
	Address         string           `json:"address" yaml:"address"`
	Status          TaskStatus       `json:"status" yaml:"status"`
	Message         string           `json:"message,omitempty" yaml:"message,omitempty"`
	Error           string           `json:"error,omitempty" yaml:"error,omitempty"`
	StepFailed      string           `json:"step_failed,omitempty" yaml:"step_failed,omitempty"`
	AnalysisID      string           `json:"analysis_id,omitempty" yaml:"analysis_id,omitempty"`
	AnalysisDepth   AnalysisDepth    `json:"analysis_depth,omitempty" yaml:"analysis_depth,omitempty"`
	Timestamp       time.Time        `json:"timestamp,omitzero" yaml:"timestamp,omitempty"`
	RawData         *RawData         `json:"raw_data,omitempty" yaml:"raw_data,omitempty"`
	Analysis        *Analysis        `json:"analysis,omitempty" yaml:"analysis,omitempty"`
	Summary         *Summary         `json:"summary,omitempty" yaml:"summary,omitempty"`
	FormattedReport *FormattedReport `json:"formatted_report,omitempty" yaml:"formatted_report,omitempty"`
	PartialData     *RawData         `json:"partial_data,omitempty" yaml:"partial_data,omitempty"`
}

// RawData carries unprocessed provider outputs.
type RawData struct {
	PropertyRecord *PropertyRecord `json:"property_record" yaml:"property_record"`
	SearchResults  []SearchResult  `json:"search_results" yaml:"search_results"`
}

// NewRawData builds RawData with a non-nil results slice so it encodes as [].
func NewRawData(record *PropertyRecord, results []SearchResult) *RawData {
	if results == nil {
		results = []SearchResult{}
	}
	return &RawData{PropertyRecord: record, SearchResults: results}
}

// Summary holds fields derived from the raw data and analysis.
type Summary struct {
	DataSources              []string     `json:"data_sources" yaml:"data_sources"`
	PropertyLookupSuccessful bool         `json:"property_lookup_successful" yaml:"property_lookup_successful"`
	PropertyFieldsExtracted  int          `json:"property_fields_extracted" yaml:"property_fields_extracted"`
	SectionsFound            []string     `json:"sections_found" yaml:"sections_found"`
	AnalysisCompleteness     Completeness `json:"analysis_completeness" yaml:"analysis_completeness"`
	KeyFindings              []string     `json:"key_findings" yaml:"key_findings"`
}

// FormattedReport is the short display summary attached after aggregation.
// Only Error is set when formatting failed.
type FormattedReport struct {
	Title                    string       `json:"title,omitempty" yaml:"title,omitempty"`
	GeneratedDate            time.Time    `json:"generated_date,omitzero" yaml:"generated_date,omitempty"`
	Status                   TaskStatus   `json:"status,omitempty" yaml:"status,omitempty"`
	DataQuality              Completeness `json:"data_quality,omitempty" yaml:"data_quality,omitempty"`
	PropertyLookupSuccessful bool         `json:"property_lookup_successful" yaml:"property_lookup_successful"`
	SectionsFound            int          `json:"sections_found" yaml:"sections_found"`
	KeyFindings              []string     `json:"key_findings,omitempty" yaml:"key_findings,omitempty"`
	Error                    string       `json:"error,omitempty" yaml:"error,omitempty"`
}
