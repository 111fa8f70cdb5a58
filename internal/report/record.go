package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrMalformedRecord is returned when a response cannot be read as a record.
var ErrMalformedRecord = errors.New("malformed analysis record")

var validate = validator.New()

// AnalysisRecord is one parsed structured answer.
type AnalysisRecord struct {
	File      string  `json:"file"`
	Relevance float64 `json:"relevance"`
	Reason    string  `json:"reason"`
}

// SkippedFile is a file whose structured answer never parsed.
type SkippedFile struct {
	File         string `json:"file"`
	Attempts     int    `json:"attempts"`
	LastResponse string `json:"last_response"`
}

type rawRecord struct {
	Relevance *float64 `json:"relevance" validate:"required"`
	Reason    string   `json:"reason" validate:"required"`
}

// ParseRecord reads the first JSON object in text as {relevance, reason}.
// Prose or code fences around the object are ignored; values are not clamped.
func ParseRecord(file, text string) (AnalysisRecord, error) {
	start := strings.Index(text, "{")
	if start < 0 {
		return AnalysisRecord{}, fmt.Errorf("%w: no JSON object in response", ErrMalformedRecord)
	}

	var raw rawRecord
	dec := json.NewDecoder(strings.NewReader(text[start:]))
	if err := dec.Decode(&raw); err != nil {
		return AnalysisRecord{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if err := validate.Struct(raw); err != nil {
		return AnalysisRecord{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	return AnalysisRecord{
		File:      file,
		Relevance: *raw.Relevance,
		Reason:    strings.TrimSpace(raw.Reason),
	}, nil
}
