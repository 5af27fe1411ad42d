package model

import "time"

// AddressParts is a street address split the way the records portal's search
// form expects it.
type AddressParts struct {
	HouseNumber string `json:"house_number" yaml:"house_number"`
	StreetName  string `json:"street_name" yaml:"street_name"`
}

// String joins the parts back into a single line.
func (a AddressParts) String() string {
	if a.HouseNumber == "" {
		return a.StreetName
	}
	return a.HouseNumber + " " + a.StreetName
}

// SectionKey names one of the fixed property-record categories.
type SectionKey string

const (
	SectionAddressLegal        SectionKey = "address_legal"
	SectionJurisdictional      SectionKey = "jurisdictional"
	SectionPermittingZoning    SectionKey = "permitting_zoning"
	SectionPlanningZoning      SectionKey = "planning_zoning"
	SectionAssessor            SectionKey = "assessor"
	SectionCaseNumbers         SectionKey = "case_numbers"
	SectionAdditional          SectionKey = "additional"
	SectionEnvironmental       SectionKey = "environmental"
	SectionSeismicHazards      SectionKey = "seismic_hazards"
	SectionEconomicDevelopment SectionKey = "economic_development"
	SectionHousing             SectionKey = "housing"
	SectionPublicSafety        SectionKey = "public_safety"
)

// Section pairs a key with its display label.
type Section struct {
	Key   SectionKey
	Label string
}

// Sections lists every section in display order.
var Sections = []Section{
	{SectionAddressLegal, "Address/Legal"},
	{SectionJurisdictional, "Jurisdictional"},
	{SectionPermittingZoning, "Permitting & Zoning"},
	{SectionPlanningZoning, "Planning & Zoning"},
	{SectionAssessor, "Assessor"},
	{SectionCaseNumbers, "Case Numbers"},
	{SectionAdditional, "Additional"},
	{SectionEnvironmental, "Environmental"},
	{SectionSeismicHazards, "Seismic Hazards"},
	{SectionEconomicDevelopment, "Economic Development"},
	{SectionHousing, "Housing"},
	{SectionPublicSafety, "Public Safety"},
}

// Table is one two-column data table lifted from the records portal.
type Table struct {
	Name string            `json:"table_name" yaml:"table_name"`
	Rows [][]string        `json:"rows,omitempty" yaml:"rows,omitempty"`
	Data map[string]string `json:"data,omitempty" yaml:"data,omitempty"`
}

// PropertyRecord is the structured output of a property lookup.
type PropertyRecord struct {
	Address     AddressParts                     `json:"address_data" yaml:"address_data"`
	Successful  bool                             `json:"search_successful" yaml:"search_successful"`
	Error       string                           `json:"error,omitempty" yaml:"error,omitempty"`
	Fields      map[string]string                `json:"all_extracted_fields,omitempty" yaml:"all_extracted_fields,omitempty"`
	Tables      []Table                          `json:"all_tables,omitempty" yaml:"all_tables,omitempty"`
	RawText     string                           `json:"raw_text,omitempty" yaml:"raw_text,omitempty"`
	Sections    map[SectionKey]map[string]string `json:"sections,omitempty" yaml:"sections,omitempty"`
	RetrievedAt time.Time                        `json:"retrieved_at,omitzero" yaml:"retrieved_at,omitempty"`
}

// FieldCount returns the number of flattened fields, tolerating a nil record.
func (r *PropertyRecord) FieldCount() int {
	if r == nil {
		return 0
	}
	return len(r.Fields)
}

// HasSection reports whether the named section holds any fields.
func (r *PropertyRecord) HasSection(key SectionKey) bool {
	if r == nil {
		return false
	}
	return len(r.Sections[key]) > 0
}

// SearchResult is one ranked web search hit.
type SearchResult struct {
	Title          string  `json:"title" yaml:"title"`
	URL            string  `json:"url" yaml:"url"`
	Content        string  `json:"content" yaml:"content"`
	RelevanceScore float64 `json:"relevance_score" yaml:"relevance_score"`
}
