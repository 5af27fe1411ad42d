package pipeline

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sells-group/property-research/internal/model"
)

const (
	maxKeyFindings     = 5
	maxSectionFindings = 3
	maxFallbackLines   = 3

	// DefaultFinding is used when no rule produced a finding.
	DefaultFinding = "Analysis completed - see full analysis for details"
)

var findingKeywords = []string{"key", "important", "finding", "recommend"}

// KeyFindings extracts up to five highlight lines from an analysis.
func KeyFindings(a *model.Analysis) []string {
	var findings []string
	if a.IsStructured() {
		findings = structuredFindings(a)
	} else if a != nil {
		findings = textFindings(a.Text)
	}

	if len(findings) == 0 {
		return []string{DefaultFinding}
	}
	if len(findings) > maxKeyFindings {
		findings = findings[:maxKeyFindings]
	}
	return findings
}

func textFindings(text string) []string {
	lines := strings.Split(text, "\n")

	var findings []string
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if hasKeyword(line) {
			if clean := strings.TrimSpace(strings.TrimLeft(line, "•-*0123456789. #")); runeLen(clean) > 20 {
				findings = append(findings, clean)
			}
			continue
		}
		if isListItem(line) {
			if clean := strings.TrimSpace(strings.TrimLeft(line, "•-*0123456789. ")); runeLen(clean) > 15 {
				findings = append(findings, clean)
			}
		}
	}
	if len(findings) > 0 {
		return findings
	}

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if runeLen(line) > 30 && !strings.HasPrefix(line, "#") {
			findings = append(findings, line)
			if len(findings) >= maxFallbackLines {
				break
			}
		}
	}
	return findings
}

func structuredFindings(a *model.Analysis) []string {
	var findings []string
	for _, s := range a.Sections {
		name := strings.ToLower(s.Name)
		if !strings.Contains(name, "finding") && !strings.Contains(name, "key") {
			continue
		}
		switch s.Kind {
		case model.KindItems:
			items := s.Items
			if len(items) > maxSectionFindings {
				items = items[:maxSectionFindings]
			}
			findings = append(findings, items...)
		case model.KindText:
			if t := strings.TrimSpace(s.Text); t != "" {
				findings = append(findings, t)
			}
		}
	}
	return findings
}

func hasKeyword(line string) bool {
	lower := strings.ToLower(line)
	for _, kw := range findingKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// isListItem matches bullet lines and numbered lines such as "3. foo".
func isListItem(line string) bool {
	r, _ := utf8.DecodeRuneInString(line)
	switch r {
	case '•', '-', '*':
		return true
	}
	if !unicode.IsDigit(r) {
		return false
	}
	head := line
	if len(head) > 5 {
		head = head[:5]
	}
	return strings.Contains(head, ".")
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
