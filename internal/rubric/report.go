// Package rubric defines the structured evaluation report returned by the
// analysis provider and the strict, fail-closed decoding of provider output.
package rubric

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed report_schema.json
var reportSchema string

// Report is the structured evaluation result for one media payload.
type Report struct {
	Score       float64   `json:"score" validate:"gte=0,lte=100"`
	Summary     string    `json:"summary" validate:"required"`
	Findings    []Finding `json:"findings" validate:"dive"`
	Suggestions []string  `json:"suggestions,omitempty"`
}

// Finding is a single rule evaluation within a report.
type Finding struct {
	Rule    string `json:"rule" validate:"required"`
	Verdict string `json:"verdict" validate:"required,oneof=pass warn fail"`
	Details string `json:"details,omitempty"`
}

// DecodeError reports that provider output could not be decoded into a valid
// Report. Decoding fails closed: a response that does not parse is never
// coerced into an empty report, so "nothing detected" cannot be confused with
// "could not parse".
type DecodeError struct {
	Cause error
	Raw   string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode evaluation report: %v (raw: %s)", e.Cause, snippet(e.Raw))
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

var validate = validator.New()

// Decode parses raw provider output into a Report. The output must already be
// free of markdown fences. Validation runs twice: structurally against the
// embedded JSON Schema, then field-level via struct tags.
func Decode(raw string) (*Report, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &DecodeError{Cause: fmt.Errorf("empty response"), Raw: raw}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(reportSchema),
		gojsonschema.NewStringLoader(raw),
	)
	if err != nil {
		return nil, &DecodeError{Cause: err, Raw: raw}
	}
	if !result.Valid() {
		return nil, &DecodeError{Cause: fmt.Errorf("schema violations: %s", describeViolations(result)), Raw: raw}
	}

	var report Report
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return nil, &DecodeError{Cause: err, Raw: raw}
	}

	if err := validate.Struct(&report); err != nil {
		return nil, &DecodeError{Cause: err, Raw: raw}
	}

	return &report, nil
}

func describeViolations(result *gojsonschema.Result) string {
	parts := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		parts = append(parts, fmt.Sprintf("%s: %s", field, desc.Description()))
	}
	return strings.Join(parts, "; ")
}

func snippet(raw string) string {
	const max = 200
	raw = strings.TrimSpace(raw)
	if len(raw) > max {
		return raw[:max] + "..."
	}
	return raw
}
