package zimas

import (
	"fmt"
	"iter"
	"slices"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/sells-group/property-research/internal/model"
)

// Outcome classifies a results page.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeFound
	OutcomeNoResults
)

var noResultsIndicators = []string{
	"your search return no results",
	"no results found",
	"below are some suggestions",
	"suggestions of what you might have been looking for",
}

var foundIndicators = []string{"address/legal", "site address", "assessor"}

// DetectOutcome inspects the page after an address search. The no-results
// markers win over the success markers, since the suggestions page may also
// mention "assessor".
func DetectOutcome(page string) Outcome {
	lower := strings.ToLower(page)
	for _, s := range noResultsIndicators {
		if strings.Contains(lower, s) {
			return OutcomeNoResults
		}
	}
	for _, s := range foundIndicators {
		if strings.Contains(lower, s) {
			return OutcomeFound
		}
	}
	return OutcomeUnknown
}

const maxKeyLen = 100

// ExtractTables parses every <table> in doc. Rows keep their non-empty cell
// text; two-cell rows with both cells filled also become key/value data, with
// colons stripped from the key. Tables without any non-empty row are dropped.
func ExtractTables(doc string) ([]model.Table, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return nil, eris.Wrap(err, "zimas: parse html")
	}

	var tables []model.Table
	n := 0
	for t := range findAll(root, atom.Table) {
		n++
		tbl := model.Table{Name: fmt.Sprintf("Table_%d", n)}
		for tr := range findAll(t, atom.Tr) {
			var row []string
			filled := false
			for c := tr.FirstChild; c != nil; c = c.NextSibling {
				if c.Type != html.ElementNode || (c.DataAtom != atom.Td && c.DataAtom != atom.Th) {
					continue
				}
				text := nodeText(c)
				row = append(row, text)
				filled = filled || text != ""
			}
			if !filled {
				continue
			}
			tbl.Rows = append(tbl.Rows, row)

			if len(row) == 2 && row[0] != "" && row[1] != "" {
				key := strings.TrimSpace(strings.ReplaceAll(row[0], ":", ""))
				if key != "" && len(key) < maxKeyLen {
					if tbl.Data == nil {
						tbl.Data = map[string]string{}
					}
					tbl.Data[key] = row[1]
				}
			}
		}
		if len(tbl.Rows) > 0 {
			tables = append(tables, tbl)
		}
	}
	return tables, nil
}

// Flatten merges every table's key/value data. Later tables win on
// duplicate keys.
func Flatten(tables []model.Table) map[string]string {
	out := map[string]string{}
	for _, t := range tables {
		for k, v := range t.Data {
			out[k] = v
		}
	}
	return out
}

// sectionKeywords is checked in order; a field lands in the first section
// whose keyword appears in its lower-cased name. Entries in words must match
// a whole word of the name, so "lot" does not claim "Allotment".
var sectionKeywords = []struct {
	key      model.SectionKey
	keywords []string
	words    []string
}{
	{model.SectionAddressLegal, []string{"address", "legal", "parcel", "tract", "block", "map reference"}, []string{"pin", "ain", "lot"}},
	{model.SectionJurisdictional, []string{"council district", "community plan", "neighborhood council", "jurisdiction", "area planning commission"}, nil},
	{model.SectionPermittingZoning, []string{"permit", "compliance", "building line"}, nil},
	{model.SectionPlanningZoning, []string{"zoning", "plan", "land use", "specific", "height district"}, nil},
	{model.SectionAssessor, []string{"assessor", "assessed", "tax", "roll", "year built", "land value", "improvement"}, nil},
	{model.SectionCaseNumbers, []string{"case", "hearing", "decision", "appeal"}, nil},
	{model.SectionAdditional, []string{"amendment", "ordinance", "airport", "hillside"}, nil},
	{model.SectionEnvironmental, []string{"environmental", "coastal", "flood", "oak", "biological", "methane"}, nil},
	{model.SectionSeismicHazards, []string{"fault", "seismic", "earthquake", "liquefaction", "landslide", "tsunami"}, nil},
	{model.SectionEconomicDevelopment, []string{"enterprise", "empowerment", "redevelopment", "renewal", "opportunity zone", "business improvement"}, nil},
	{model.SectionHousing, []string{"housing", "affordable", "density", "rent stabilization", "overlay"}, nil},
	{model.SectionPublicSafety, []string{"police", "fire", "station"}, nil},
}

// Categorize buckets fields into sections by keyword. Fields matching no
// keyword stay only in the flat field map.
func Categorize(fields map[string]string) map[model.SectionKey]map[string]string {
	out := map[model.SectionKey]map[string]string{}
	for k, v := range fields {
		lower := strings.ToLower(k)
		words := strings.FieldsFunc(lower, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, s := range sectionKeywords {
			if !matchesSection(lower, words, s.keywords, s.words) {
				continue
			}
			if out[s.key] == nil {
				out[s.key] = map[string]string{}
			}
			out[s.key][k] = v
			break
		}
	}
	return out
}

func matchesSection(lower string, words, keywords, whole []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	for _, w := range whole {
		if slices.Contains(words, w) {
			return true
		}
	}
	return false
}

// findAll yields every descendant element of n with the given atom, in
// document order.
func findAll(n *html.Node, a atom.Atom) iter.Seq[*html.Node] {
	return func(yield func(*html.Node) bool) {
		var walk func(*html.Node) bool
		walk = func(parent *html.Node) bool {
			for c := parent.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && c.DataAtom == a {
					if !yield(c) {
						return false
					}
				}
				if !walk(c) {
					return false
				}
			}
			return true
		}
		walk(n)
	}
}

// nodeText concatenates the trimmed text nodes under n, separated by spaces.
func nodeText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			if s := strings.TrimSpace(c.Data); s != "" {
				parts = append(parts, s)
			}
			return
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}
