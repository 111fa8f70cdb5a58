package report

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecord(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		relevance float64
		reason    string
	}{
		{"plain", `{"relevance": 85, "reason": "implements the cache"}`, 85, "implements the cache"},
		{"fenced", "```json\n{\"relevance\": 12.5, \"reason\": \"helpers only\"}\n```", 12.5, "helpers only"},
		{"prose around", "Sure! Here you go: {\"reason\": \" parser \", \"relevance\": 0} hope it helps {x}", 0, "parser"},
		{"out of range kept", `{"relevance": 140, "reason": "very"}`, 140, "very"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := ParseRecord("/src/a.go", tt.text)
			require.NoError(t, err)
			assert.Equal(t, "/src/a.go", rec.File)
			assert.Equal(t, tt.relevance, rec.Relevance)
			assert.Equal(t, tt.reason, rec.Reason)
		})
	}
}

func TestParseRecord_Malformed(t *testing.T) {
	inputs := []string{
		"",
		"I think this file is quite relevant.",
		`{"relevance": "high", "reason": "x"}`,
		`{"reason": "no score"}`,
		`{"relevance": 50}`,
		`{"relevance": 50, "reason": ""}`,
		`{"relevance": 50, "reason": "truncated`,
	}
	for _, in := range inputs {
		_, err := ParseRecord("f", in)
		require.Error(t, err, "input %q", in)
		assert.True(t, errors.Is(err, ErrMalformedRecord), "input %q: %v", in, err)
	}
}
