// internal/common/validation/schema.go
package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// eventEnvelopeSchema describes the wire shape of an inbound push frame.
// Validation is advisory: a failing frame is reported, never discarded.
const eventEnvelopeSchema = `{
	"type": "object",
	"properties": {
		"event": {"type": "string", "minLength": 1},
		"payload": {
			"type": "object",
			"properties": {
				"id":       {"type": "string"},
				"type":     {"type": "string"},
				"title":    {"type": "string"},
				"message":  {"type": "string"},
				"icon":     {"type": "string"},
				"priority": {"type": "string", "enum": ["low", "medium", "high"]},
				"link":     {"type": "string"}
			},
			"additionalProperties": true
		}
	},
	"required": ["event"]
}`

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// Describe flattens the result into a single log-friendly string.
func (r *ValidationResult) Describe() string {
	if r.Valid {
		return ""
	}
	out := ""
	for i, e := range r.Errors {
		if i > 0 {
			out += "; "
		}
		out += fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return out
}

// EnvelopeValidator validates inbound push frames against the envelope schema.
type EnvelopeValidator struct {
	schema *gojsonschema.Schema
}

func NewEnvelopeValidator() (*EnvelopeValidator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(eventEnvelopeSchema))
	if err != nil {
		return nil, fmt.Errorf("compile envelope schema: %w", err)
	}
	return &EnvelopeValidator{schema: schema}, nil
}

// Validate checks a decoded frame. The caller decides what to do with an
// invalid result; the normalizer defaults missing fields instead of rejecting.
func (v *EnvelopeValidator) Validate(frame map[string]interface{}) *ValidationResult {
	result, err := v.schema.Validate(gojsonschema.NewGoLoader(frame))
	if err != nil {
		return &ValidationResult{
			Valid:  false,
			Errors: []ValidationError{{Field: "(document)", Message: err.Error()}},
		}
	}

	if result.Valid() {
		return &ValidationResult{Valid: true}
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		errs = append(errs, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
		})
	}
	return &ValidationResult{Valid: false, Errors: errs}
}
