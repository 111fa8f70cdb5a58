package analysis

import (
	"encoding/json"
	"fmt"
)

// Context is the opaque continuation token returned by the analysis service.
// It is immutable: every accessor hands out a copy, so a value can be shared
// freely while the orchestrator threads the latest one through each call.
type Context struct {
	tokens []int
}

// NewContext copies tokens into a new Context.
func NewContext(tokens []int) Context {
	if len(tokens) == 0 {
		return Context{}
	}
	cp := make([]int, len(tokens))
	copy(cp, tokens)
	return Context{tokens: cp}
}

// Tokens returns a copy of the underlying token sequence. Never nil.
func (c Context) Tokens() []int {
	cp := make([]int, len(c.tokens))
	copy(cp, c.tokens)
	return cp
}

// Len returns the number of tokens.
func (c Context) Len() int {
	return len(c.tokens)
}

// IsEmpty reports whether the context carries no tokens.
func (c Context) IsEmpty() bool {
	return len(c.tokens) == 0
}

// Equal reports whether both contexts hold the same token sequence.
func (c Context) Equal(other Context) bool {
	if len(c.tokens) != len(other.tokens) {
		return false
	}
	for i := range c.tokens {
		if c.tokens[i] != other.tokens[i] {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the context as an integer array; an empty context is [].
func (c Context) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Tokens())
}

// UnmarshalJSON decodes an integer array. null decodes to an empty context.
func (c *Context) UnmarshalJSON(data []byte) error {
	var tokens []int
	if err := json.Unmarshal(data, &tokens); err != nil {
		return fmt.Errorf("decode context: %w", err)
	}
	*c = NewContext(tokens)
	return nil
}
