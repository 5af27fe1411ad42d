package main

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"
)

const analyzeRequestSchema = `{
  "type": "object",
  "required": ["address"],
  "properties": {
    "address": {"type": "string", "minLength": 1, "maxLength": 500},
    "analysis_depth": {"type": "string"},
    "include_market_analysis": {"type": "boolean"},
    "include_development_potential": {"type": "boolean"}
  }
}`

const chatRequestSchema = `{
  "type": "object",
  "required": ["message"],
  "properties": {
    "message": {"type": "string"},
    "context": {"type": ["string", "null"]},
    "address": {"type": ["string", "null"]},
    "session_id": {"type": "string"}
  }
}`

var (
	analyzeSchema = mustSchema(analyzeRequestSchema)
	chatSchema    = mustSchema(chatRequestSchema)
)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(err)
	}
	return s
}

// validateBody checks body against schema and joins every violation into a
// single error.
func validateBody(schema *gojsonschema.Schema, body []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return eris.Wrap(err, "invalid request body")
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return eris.New(strings.Join(msgs, "; "))
}
