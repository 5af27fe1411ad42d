// Package synth produces property analysis text from an LLM provider.
package synth

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/property-research/internal/model"
	"github.com/sells-group/property-research/internal/resilience"
)

// Completer sends one system + user exchange to an LLM and returns its text.
type Completer interface {
	Name() string
	Complete(ctx context.Context, system, user string) (string, error)
}

// Synthesizer implements the analysis and chat operations over a Completer.
type Synthesizer struct {
	llm   Completer
	guard *resilience.Guard
}

// New creates a Synthesizer. guard may be nil.
func New(llm Completer, guard *resilience.Guard) *Synthesizer {
	return &Synthesizer{llm: llm, guard: guard}
}

// Analyze builds the analysis prompt and returns the model's text.
func (s *Synthesizer) Analyze(ctx context.Context, record *model.PropertyRecord, results []model.SearchResult) (string, error) {
	prompt := BuildPrompt(record, results)
	zap.L().Debug("synth: sending analysis prompt",
		zap.String("provider", s.llm.Name()),
		zap.Int("prompt_chars", len(prompt)),
	)

	text, err := s.complete(ctx, "analyze", SystemPrompt, prompt)
	if err != nil {
		return "", eris.Wrap(err, "synth: analyze")
	}
	return text, nil
}

// Chat answers a free-form question with the given system prompt.
func (s *Synthesizer) Chat(ctx context.Context, system, message string) (string, error) {
	text, err := s.complete(ctx, "chat", system, message)
	if err != nil {
		return "", eris.Wrap(err, "synth: chat")
	}
	return text, nil
}

func (s *Synthesizer) complete(ctx context.Context, op, system, user string) (string, error) {
	return resilience.Do(ctx, s.guard, s.llm.Name(), op, func(ctx context.Context) (string, error) {
		return s.llm.Complete(ctx, system, user)
	})
}
