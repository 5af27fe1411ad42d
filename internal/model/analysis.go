package model

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// SectionKind identifies the shape of an analysis section value.
type SectionKind int

const (
	KindText SectionKind = iota
	KindItems
	KindFields
)

// AnalysisSection is one named entry of a structured analysis.
type AnalysisSection struct {
	Name   string
	Kind   SectionKind
	Text   string
	Items  []string
	Fields map[string]string
}

// Analysis is either free text produced by a synthesizer or an ordered set of
// named sections built locally. A nil Sections slice means free text.
type Analysis struct {
	Text     string
	Sections []AnalysisSection
}

// TextAnalysis wraps synthesized text.
func TextAnalysis(text string) *Analysis {
	return &Analysis{Text: text}
}

// StructuredAnalysis builds an analysis from ordered sections.
func StructuredAnalysis(sections ...AnalysisSection) *Analysis {
	if sections == nil {
		sections = []AnalysisSection{}
	}
	return &Analysis{Sections: sections}
}

// IsStructured reports whether the analysis carries named sections.
func (a *Analysis) IsStructured() bool {
	return a != nil && a.Sections != nil
}

// Section returns the named section, if present.
func (a *Analysis) Section(name string) (AnalysisSection, bool) {
	if a == nil {
		return AnalysisSection{}, false
	}
	for _, s := range a.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return AnalysisSection{}, false
}

func (s AnalysisSection) value() any {
	switch s.Kind {
	case KindItems:
		if s.Items == nil {
			return []string{}
		}
		return s.Items
	case KindFields:
		if s.Fields == nil {
			return map[string]string{}
		}
		return s.Fields
	default:
		return s.Text
	}
}

// MarshalJSON encodes free text as a JSON string and structured analyses as
// an object whose keys keep section order.
func (a *Analysis) MarshalJSON() ([]byte, error) {
	if !a.IsStructured() {
		return json.Marshal(a.Text)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range a.Sections {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(s.Name)
		if err != nil {
			return nil, eris.Wrap(err, "model: marshal analysis key")
		}
		val, err := json.Marshal(s.value())
		if err != nil {
			return nil, eris.Wrapf(err, "model: marshal analysis section %q", s.Name)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts either a JSON string or an object of sections.
// Object keys come back in sorted order since JSON objects are unordered.
func (a *Analysis) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*a = Analysis{Text: text}
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "model: unmarshal analysis")
	}
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	sections := make([]AnalysisSection, 0, len(names))
	for _, name := range names {
		sec := AnalysisSection{Name: name}
		msg := raw[name]
		switch {
		case json.Unmarshal(msg, &sec.Text) == nil:
			sec.Kind = KindText
		case json.Unmarshal(msg, &sec.Items) == nil:
			sec.Kind = KindItems
		case json.Unmarshal(msg, &sec.Fields) == nil:
			sec.Kind = KindFields
		default:
			return eris.Errorf("model: unsupported value for analysis section %q", name)
		}
		sections = append(sections, sec)
	}
	*a = Analysis{Sections: sections}
	return nil
}

// MarshalYAML mirrors MarshalJSON for YAML output.
func (a *Analysis) MarshalYAML() (any, error) {
	if !a.IsStructured() {
		return a.Text, nil
	}
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, s := range a.Sections {
		var val yaml.Node
		if err := val.Encode(s.value()); err != nil {
			return nil, eris.Wrapf(err, "model: encode analysis section %q", s.Name)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s.Name},
			&val,
		)
	}
	return node, nil
}
