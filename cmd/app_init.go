package main

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/property-research/internal/analysis"
	"github.com/sells-group/property-research/internal/chat"
	"github.com/sells-group/property-research/internal/config"
	"github.com/sells-group/property-research/internal/model"
	"github.com/sells-group/property-research/internal/monitoring"
	"github.com/sells-group/property-research/internal/pipeline"
	"github.com/sells-group/property-research/internal/resilience"
	"github.com/sells-group/property-research/internal/search"
	"github.com/sells-group/property-research/internal/synth"
	"github.com/sells-group/property-research/internal/tracker"
	"github.com/sells-group/property-research/internal/zimas"
	"github.com/sells-group/property-research/pkg/anthropic"
	"github.com/sells-group/property-research/pkg/jina"
	"github.com/sells-group/property-research/pkg/perplexity"
	"github.com/sells-group/property-research/pkg/tavily"
)

// appEnv holds the wired service and everything the serve and analyze
// commands need.
type appEnv struct {
	Service      *analysis.Service
	Tasks        *tracker.Tracker
	Chat         *chat.Responder
	Guard        *resilience.Guard
	Collector    *monitoring.Collector
	DefaultDepth model.AnalysisDepth

	lookup *zimas.Client
}

// Close releases pooled browsers.
func (a *appEnv) Close() {
	if a.lookup != nil {
		if err := a.lookup.Close(); err != nil {
			zap.L().Warn("close zimas browsers", zap.Error(err))
		}
	}
}

// initApp validates c and builds every provider, the pipeline and the
// analysis service. Callers should defer env.Close().
func initApp(c *config.Config) (*appEnv, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	defaultDepth, err := model.ParseDepth(c.Analysis.DefaultDepth, model.DepthStandard)
	if err != nil {
		return nil, eris.Wrap(err, "analysis.default_depth")
	}

	guard := resilience.NewGuard(
		resilience.PolicyFrom(
			c.Resilience.RetryAttempts,
			c.Resilience.RetryInitialMs,
			c.Resilience.RetryMaxMs,
			c.Resilience.RetryMultiplier,
			c.Resilience.RetryJitter,
		),
		resilience.BreakerFrom(c.Resilience.CircuitThreshold, c.Resilience.CircuitCooldownSec),
	)

	backend, err := newSearchBackend(c)
	if err != nil {
		return nil, err
	}
	searcher := search.New(backend, search.Config{
		MaxResults:  c.Search.MaxResults,
		Concurrency: c.Search.Concurrency,
		RatePerSec:  c.Search.RatePerSec,
	}, guard)

	llm, err := newCompleter(c)
	if err != nil {
		return nil, err
	}
	synthesizer := synth.New(llm, guard)

	lookup := zimas.New(zimas.Config{
		BaseURL:     c.Zimas.BaseURL,
		Headless:    c.Zimas.Headless,
		PoolSize:    c.Zimas.PoolSize,
		PageTimeout: time.Duration(c.Zimas.PageTimeoutSecs) * time.Second,
		Settle:      time.Duration(c.Zimas.SettleMs) * time.Millisecond,
	})

	orch := pipeline.New(pipeline.Deps{
		Lookup:    lookup,
		Search:    searcher,
		Synth:     synthesizer,
		Formatter: pipeline.NewSummaryFormatter(nil),
	})

	tasks := tracker.New()
	collector := monitoring.NewCollector(tasks, guard.Breakers())
	svc := analysis.New(orch, tasks, analysis.Config{
		Workers:     c.Analysis.Workers,
		MaxActive:   c.Analysis.MaxActiveTasks,
		SyncTimeout: c.SyncTimeout(),
	}, analysis.WithObserver(collector))

	zap.L().Info("app initialized",
		zap.String("search_provider", backend.Name()),
		zap.String("llm_provider", llm.Name()),
		zap.Int("workers", c.Analysis.Workers),
		zap.Int("max_active_tasks", c.Analysis.MaxActiveTasks),
		zap.Int("zimas_pool_size", c.Zimas.PoolSize),
	)

	return &appEnv{
		Service:      svc,
		Tasks:        tasks,
		Chat:         chat.NewResponder(synthesizer),
		Guard:        guard,
		Collector:    collector,
		DefaultDepth: defaultDepth,
		lookup:       lookup,
	}, nil
}

func newSearchBackend(c *config.Config) (search.Backend, error) {
	switch c.Search.Provider {
	case "tavily":
		var opts []tavily.Option
		if c.Tavily.BaseURL != "" {
			opts = append(opts, tavily.WithBaseURL(c.Tavily.BaseURL))
		}
		return search.NewTavily(tavily.NewClient(c.Tavily.Key, opts...), c.Tavily.SearchDepth), nil
	case "jina":
		var opts []jina.Option
		if c.Jina.SearchBaseURL != "" {
			opts = append(opts, jina.WithBaseURL(c.Jina.SearchBaseURL))
		}
		return search.NewJina(jina.NewClient(c.Jina.Key, opts...)), nil
	default:
		return nil, eris.Errorf("unknown search provider %q", c.Search.Provider)
	}
}

func newCompleter(c *config.Config) (synth.Completer, error) {
	params := synth.Params{MaxTokens: c.LLM.MaxTokens, Temperature: c.LLM.Temperature}
	switch c.LLM.Provider {
	case "anthropic":
		params.Model = c.Anthropic.Model
		return synth.NewAnthropic(anthropic.NewClient(c.Anthropic.Key), params), nil
	case "openrouter":
		params.Model = c.OpenRouter.Model
		return synth.NewOpenRouter(c.OpenRouter.Key, c.OpenRouter.BaseURL, params), nil
	case "perplexity":
		params.Model = c.Perplexity.Model
		opts := []perplexity.Option{perplexity.WithModel(c.Perplexity.Model)}
		if c.Perplexity.BaseURL != "" {
			opts = append(opts, perplexity.WithBaseURL(c.Perplexity.BaseURL))
		}
		return synth.NewPerplexity(perplexity.NewClient(c.Perplexity.Key, opts...), params), nil
	default:
		return nil, eris.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
}
