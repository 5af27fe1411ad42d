package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/property-research/internal/model"
)

// --- PropertyLookup Mock ---

type mockLookup struct {
	mock.Mock
}

func (m *mockLookup) Search(ctx context.Context, addr model.AddressParts) (*model.PropertyRecord, error) {
	args := m.Called(ctx, addr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PropertyRecord), args.Error(1)
}

// --- WebSearch Mock ---

type mockSearch struct {
	mock.Mock
}

func (m *mockSearch) Search(ctx context.Context, address string, depth model.AnalysisDepth) ([]model.SearchResult, error) {
	args := m.Called(ctx, address, depth)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SearchResult), args.Error(1)
}

// --- Synthesizer Mock ---

type mockSynth struct {
	mock.Mock
}

func (m *mockSynth) Analyze(ctx context.Context, record *model.PropertyRecord, results []model.SearchResult) (string, error) {
	args := m.Called(ctx, record, results)
	return args.String(0), args.Error(1)
}

// --- ReportFormatter Mock ---

type mockFormatter struct {
	mock.Mock
}

func (m *mockFormatter) Format(ctx context.Context, env *model.Envelope) (*model.FormattedReport, error) {
	args := m.Called(ctx, env)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FormattedReport), args.Error(1)
}

// --- Progress recorder ---

type progressEvent struct {
	Pct int
	Msg string
}

type recorder struct {
	mu     sync.Mutex
	events []progressEvent
}

func (r *recorder) sink() ProgressSink {
	return func(pct int, msg string) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, progressEvent{pct, msg})
	}
}

func (r *recorder) percents() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.events))
	for i, e := range r.events {
		out[i] = e.Pct
	}
	return out
}

// --- Fixtures ---

// newRecord builds a successful record with the given number of fields
// spread across the first n sections.
func newRecord(fields, sections int) *model.PropertyRecord {
	rec := &model.PropertyRecord{
		Address:    model.AddressParts{HouseNumber: "1600", StreetName: "VINE"},
		Successful: true,
		Fields:     map[string]string{},
		Sections:   map[model.SectionKey]map[string]string{},
	}
	for i := range fields {
		rec.Fields[fmt.Sprintf("Field %02d", i)] = fmt.Sprintf("value %d", i)
	}
	for i := range sections {
		rec.Sections[model.Sections[i].Key] = map[string]string{"k": "v"}
	}
	return rec
}

func threeResults() []model.SearchResult {
	return []model.SearchResult{
		{Title: "Vine St zoning", URL: "https://a.example", Content: "C4", RelevanceScore: 0.9},
		{Title: "Hollywood plan", URL: "https://b.example", Content: "plan", RelevanceScore: 0.6},
		{Title: "", URL: "https://c.example", Content: "misc", RelevanceScore: 0.2},
	}
}
