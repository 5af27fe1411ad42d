package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/property-research/internal/model"
)

// Progress milestones reported during a run.
const (
	PctLookupStart  = 20
	PctLookupDone   = 40
	PctSearchStart  = 50
	PctSearchDone   = 65
	PctAnalyzeStart = 70
	PctAnalyzeDone  = 80
	PctFormatStart  = 85
	PctFormatDone   = 95
	PctDone         = 100
)

// User-facing messages for terminal envelopes.
const (
	MsgCompleted    = "Analysis completed successfully"
	MsgNotFound     = "No data found in ZIMAS for this address. Please verify the address and try again."
	MsgLookupError  = "An error occurred during ZIMAS search. Please try again later."
	FindingNotFound = "ZIMAS search failed - no data found for this address"

	defaultNotFoundError = "No data found for this address"
)

// Deps holds the already-constructed providers a run calls.
type Deps struct {
	Lookup    PropertyLookup
	Search    WebSearch
	Synth     Synthesizer
	Formatter ReportFormatter
}

// Request is one analysis to run.
type Request struct {
	Address string
	Depth   model.AnalysisDepth
}

// Orchestrator sequences the four steps of a run and always yields a single
// envelope.
type Orchestrator struct {
	deps Deps
}

// New creates an Orchestrator. A nil Formatter falls back to SummaryFormatter.
func New(deps Deps) *Orchestrator {
	if deps.Formatter == nil {
		deps.Formatter = NewSummaryFormatter(nil)
	}
	return &Orchestrator{deps: deps}
}

// Run executes the pipeline for req, reporting progress to sink. It never
// panics and never returns nil.
func (o *Orchestrator) Run(ctx context.Context, req Request, sink ProgressSink) (env *model.Envelope) {
	log := zap.L().With(zap.String("address", req.Address), zap.String("depth", string(req.Depth)))
	start := time.Now()

	tracked, last := lastProgress(sink)

	current := StepInitialization
	var (
		record  *model.PropertyRecord
		results []model.SearchResult
	)

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		cause := fmt.Sprint(r)
		log.Error("pipeline: run aborted",
			zap.String("step", current),
			zap.String("cause", cause),
			zap.ByteString("stack", debug.Stack()),
		)
		reportQuietly(sink, last(), fmt.Sprintf("Analysis failed at %s: %s", current, cause))
		env = &model.Envelope{
			Address:     req.Address,
			Status:      model.TaskStatusFailed,
			Message:     "Analysis failed: " + cause,
			Error:       cause,
			StepFailed:  current,
			PartialData: model.NewRawData(record, results),
		}
	}()

	log.Info("pipeline: starting analysis")
	parts := ParseAddress(req.Address)

	// Property lookup. Any failure ends the run.
	current = StepPropertyLookup
	lookup := execute(ctx, log, tracked, step[*model.PropertyRecord]{
		name:     StepPropertyLookup,
		startPct: PctLookupStart,
		startMsg: "Searching ZIMAS property records...",
		donePct:  PctLookupDone,
		doneMsg: func(r *model.PropertyRecord) string {
			return fmt.Sprintf("ZIMAS search completed: %d fields extracted", r.FieldCount())
		},
	}, func(ctx context.Context) (*model.PropertyRecord, error) {
		rec, err := o.deps.Lookup.Search(ctx, parts)
		if err != nil {
			return nil, err
		}
		if rec == nil || !rec.Successful {
			return rec, ErrNotFound
		}
		return rec, nil
	})
	if !lookup.OK() {
		env = lookupFailure(req.Address, parts, lookup)
		tracked(last(), "Analysis stopped: ZIMAS search failed")
		log.Warn("pipeline: analysis stopped", zap.String("status", string(env.Status)))
		return env
	}
	record = lookup.Value

	// Web search. Failure degrades to no results.
	current = StepWebSearch
	search := execute(ctx, log, tracked, step[[]model.SearchResult]{
		name:     StepWebSearch,
		startPct: PctSearchStart,
		startMsg: "Searching the web for additional property information...",
		donePct:  PctSearchDone,
		doneMsg: func(rs []model.SearchResult) string {
			return fmt.Sprintf("Found %d supplementary sources", len(rs))
		},
	}, func(ctx context.Context) ([]model.SearchResult, error) {
		return o.deps.Search.Search(model.WithZoning(ctx, record.Fields["Zoning"]), req.Address, req.Depth)
	})
	if search.OK() {
		results = search.Value
	} else {
		tracked(PctSearchDone, "Web search completed with limited results")
	}
	if results == nil {
		results = []model.SearchResult{}
	}

	// Synthesis. Failure degrades to the local fallback analysis.
	current = StepAnalysis
	synth := execute(ctx, log, tracked, step[string]{
		name:     StepAnalysis,
		startPct: PctAnalyzeStart,
		startMsg: "Generating property analysis...",
		donePct:  PctAnalyzeDone,
		doneMsg:  func(string) string { return "Property analysis generated" },
	}, func(ctx context.Context) (string, error) {
		text, err := o.deps.Synth.Analyze(ctx, record, results)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(text) == "" {
			return "", eris.New("pipeline: synthesizer returned empty analysis")
		}
		return text, nil
	})
	var analysis *model.Analysis
	if synth.OK() {
		analysis = model.TextAnalysis(synth.Value)
	} else {
		analysis = FallbackAnalysis(record, results)
		tracked(PctAnalyzeDone, "Analysis completed with fallback method")
	}

	env = BuildEnvelope(req.Address, record, results, analysis)

	// Report formatting. Failure attaches an error marker.
	current = StepReportFormatting
	formatted := execute(ctx, log, tracked, step[*model.FormattedReport]{
		name:     StepReportFormatting,
		startPct: PctFormatStart,
		startMsg: "Formatting report...",
		donePct:  PctFormatDone,
		doneMsg:  func(*model.FormattedReport) string { return "Report formatting completed" },
	}, func(ctx context.Context) (*model.FormattedReport, error) {
		return o.deps.Formatter.Format(ctx, env)
	})
	if formatted.OK() {
		env.FormattedReport = formatted.Value
	} else {
		env.FormattedReport = &model.FormattedReport{Error: "Formatting failed: " + formatted.Fault.Cause.Error()}
		tracked(PctFormatDone, "Using basic report format")
	}

	tracked(PctDone, "Analysis complete")
	log.Info("pipeline: analysis complete",
		zap.String("completeness", string(env.Summary.AnalysisCompleteness)),
		zap.Int("sections", len(env.Summary.SectionsFound)),
		zap.Int("results", len(results)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return env
}

// lookupFailure builds the terminal envelope for a failed property lookup.
func lookupFailure(address string, parts model.AddressParts, out Outcome[*model.PropertyRecord]) *model.Envelope {
	if out.Fault.Kind == FaultNotFound {
		rec := out.Value
		if rec == nil {
			rec = &model.PropertyRecord{Address: parts}
		}
		msg := rec.Error
		if msg == "" {
			msg = defaultNotFoundError
		}
		return &model.Envelope{
			Address: address,
			Status:  model.TaskStatusFailedZimasSearch,
			Message: MsgNotFound,
			Error:   msg,
			RawData: model.NewRawData(rec, nil),
			Summary: &model.Summary{
				DataSources:          []string{model.SourcePropertyLookup + " (Failed)"},
				SectionsFound:        []string{},
				AnalysisCompleteness: model.CompletenessFailed,
				KeyFindings:          []string{FindingNotFound},
			},
		}
	}

	cause := out.Fault.Cause.Error()
	return &model.Envelope{
		Address: address,
		Status:  model.TaskStatusErrorZimasSearch,
		Message: MsgLookupError,
		Error:   cause,
		RawData: model.NewRawData(&model.PropertyRecord{Address: parts, Error: cause}, nil),
		Summary: &model.Summary{
			DataSources:          []string{model.SourcePropertyLookup + " (Error)"},
			SectionsFound:        []string{},
			AnalysisCompleteness: model.CompletenessError,
			KeyFindings:          []string{"ZIMAS search error: " + cause},
		},
	}
}

// lastProgress wraps sink so the most recent percentage can be re-reported
// when a run stops early.
func lastProgress(sink ProgressSink) (ProgressSink, func() int) {
	pct := 0
	wrapped := func(p int, msg string) {
		pct = p
		sink.report(p, msg)
	}
	return wrapped, func() int { return pct }
}

// reportQuietly reports progress from the abort path, where a misbehaving
// sink must not panic a second time.
func reportQuietly(sink ProgressSink, pct int, msg string) {
	defer func() { _ = recover() }()
	sink.report(pct, msg)
}
