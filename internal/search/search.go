// Package search gathers supplementary web results for a property address.
package search

import (
	"context"
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/property-research/internal/model"
	"github.com/sells-group/property-research/internal/resilience"
)

// Backend runs a single query against a search provider.
type Backend interface {
	Name() string
	Query(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error)
}

// Config tunes the fan-out.
type Config struct {
	MaxResults  int
	Concurrency int
	RatePerSec  float64
}

// Searcher fans address queries out to a Backend.
type Searcher struct {
	backend Backend
	cfg     Config
	guard   *resilience.Guard
	limiter *rate.Limiter
}

// New creates a Searcher. A nil guard calls the backend directly; a
// non-positive RatePerSec disables rate limiting.
func New(b Backend, cfg Config, guard *resilience.Guard) *Searcher {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	return &Searcher{
		backend: b,
		cfg:     cfg,
		guard:   guard,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Queries returns the queries run for address at the given depth.
func Queries(address string, depth model.AnalysisDepth, zoning string) []string {
	qs := []string{
		fmt.Sprintf("%s Los Angeles property information", address),
		fmt.Sprintf("%s zoning regulations", address),
		fmt.Sprintf("%s property value assessment", address),
		fmt.Sprintf("%s neighborhood development plans", address),
		fmt.Sprintf("%s recent sales comparable properties", address),
	}
	switch depth {
	case model.DepthBasic:
		return qs[:2]
	case model.DepthComprehensive:
		if zoning != "" {
			qs = append(qs, fmt.Sprintf("Los Angeles %s zoning requirements", zoning))
		}
	}
	return qs
}

// Search runs every query for address and merges the results by descending
// relevance. Failed queries are skipped; an error is returned only when all
// of them fail.
func (s *Searcher) Search(ctx context.Context, address string, depth model.AnalysisDepth) ([]model.SearchResult, error) {
	queries := Queries(address, depth, model.ZoningFrom(ctx))
	log := zap.L().With(zap.String("backend", s.backend.Name()), zap.String("address", address))

	perQuery := make([][]model.SearchResult, len(queries))
	errs := make([]error, len(queries))

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i, q := range queries {
		g.Go(func() error {
			if err := s.limiter.Wait(ctx); err != nil {
				errs[i] = eris.Wrap(err, "search: rate limiter")
				return nil
			}
			rs, err := resilience.Do(ctx, s.guard, s.backend.Name(), "search",
				func(ctx context.Context) ([]model.SearchResult, error) {
					return s.backend.Query(ctx, q, s.cfg.MaxResults)
				})
			if err != nil {
				log.Warn("search: query failed", zap.String("query", q), zap.Error(err))
				errs[i] = err
				return nil
			}
			perQuery[i] = rs
			return nil
		})
	}
	_ = g.Wait()

	var failed int
	var lastErr error
	out := make([]model.SearchResult, 0, len(queries)*s.cfg.MaxResults)
	for i := range queries {
		if errs[i] != nil {
			failed++
			lastErr = errs[i]
			continue
		}
		out = append(out, perQuery[i]...)
	}
	if failed == len(queries) {
		return nil, eris.Wrapf(lastErr, "search: all %d queries failed", failed)
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].RelevanceScore > out[b].RelevanceScore
	})

	log.Debug("search: completed",
		zap.Int("queries", len(queries)),
		zap.Int("failed", failed),
		zap.Int("results", len(out)),
	)
	return out, nil
}
