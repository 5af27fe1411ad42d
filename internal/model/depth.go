package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// AnalysisDepth controls how much supplementary research a run performs.
type AnalysisDepth string

const (
	DepthBasic         AnalysisDepth = "basic"
	DepthStandard      AnalysisDepth = "standard"
	DepthComprehensive AnalysisDepth = "comprehensive"
)

// depthAliases maps accepted input spellings to the canonical depth.
var depthAliases = map[string]AnalysisDepth{
	"basic":         DepthBasic,
	"standard":      DepthStandard,
	"comprehensive": DepthComprehensive,
	"detailed":      DepthComprehensive,
}

// ParseDepth normalizes a user-supplied depth. An empty string yields the
// provided fallback.
func ParseDepth(s string, fallback AnalysisDepth) (AnalysisDepth, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return fallback, nil
	}
	d, ok := depthAliases[s]
	if !ok {
		return "", eris.Errorf("model: unknown analysis depth %q", s)
	}
	return d, nil
}

// Valid reports whether d is one of the canonical depths.
func (d AnalysisDepth) Valid() bool {
	switch d {
	case DepthBasic, DepthStandard, DepthComprehensive:
		return true
	default:
		return false
	}
}
