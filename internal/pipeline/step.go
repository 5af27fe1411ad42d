package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Step names, in run order.
const (
	StepInitialization   = "initialization"
	StepPropertyLookup   = "zimas_search"
	StepWebSearch        = "web_search"
	StepAnalysis         = "ai_analysis"
	StepReportFormatting = "report_formatting"
)

// FaultKind classifies why a step did not produce a usable value.
type FaultKind int

const (
	// FaultNotFound means the provider answered but had nothing for the input.
	FaultNotFound FaultKind = iota + 1
	// FaultTransport means the provider call returned an error.
	FaultTransport
	// FaultPanic means the provider call panicked.
	FaultPanic
)

func (k FaultKind) String() string {
	switch k {
	case FaultNotFound:
		return "not_found"
	case FaultTransport:
		return "transport"
	case FaultPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// ErrNotFound marks a provider answer that carried no usable data.
var ErrNotFound = eris.New("pipeline: no data found")

// Fault describes a failed step.
type Fault struct {
	Step  string
	Kind  FaultKind
	Cause error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s: %s: %v", f.Step, f.Kind, f.Cause)
}

func (f *Fault) Unwrap() error { return f.Cause }

// Outcome is the value-or-fault result of one step. Value may be populated
// alongside a NotFound fault when the provider returned a partial answer.
type Outcome[T any] struct {
	Value T
	Fault *Fault
}

// OK reports whether the step succeeded.
func (o Outcome[T]) OK() bool { return o.Fault == nil }

// step describes the progress milestones around one provider call.
type step[T any] struct {
	name     string
	startPct int
	startMsg string
	donePct  int
	doneMsg  func(T) string
}

// execute reports the start milestone, runs fn, and turns an error or panic
// into a Fault. The done milestone is reported only on success.
func execute[T any](ctx context.Context, log *zap.Logger, sink ProgressSink, st step[T], fn func(context.Context) (T, error)) Outcome[T] {
	sink.report(st.startPct, st.startMsg)

	val, err := callGuarded(ctx, fn)
	if err != nil {
		f := &Fault{Step: st.name, Kind: classify(err), Cause: err}
		log.Warn("pipeline: step failed",
			zap.String("step", st.name),
			zap.String("kind", f.Kind.String()),
			zap.Error(err),
		)
		return Outcome[T]{Value: val, Fault: f}
	}

	msg := st.startMsg
	if st.doneMsg != nil {
		msg = st.doneMsg(val)
	}
	sink.report(st.donePct, msg)
	return Outcome[T]{Value: val}
}

type panicError struct{ v any }

func (p panicError) Error() string { return fmt.Sprintf("panic: %v", p.v) }

func callGuarded[T any](ctx context.Context, fn func(context.Context) (T, error)) (val T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{v: r}
		}
	}()
	return fn(ctx)
}

func classify(err error) FaultKind {
	var pe panicError
	switch {
	case eris.Is(err, ErrNotFound):
		return FaultNotFound
	case errors.As(err, &pe):
		return FaultPanic
	default:
		return FaultTransport
	}
}
