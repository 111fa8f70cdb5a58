// Package analysis talks to the stateful completion service that backs every
// file analysis and interactive question.
package analysis

import (
	"context"
	"fmt"
)

// FormatJSON asks the service to constrain its answer to a JSON document.
const FormatJSON = "json"

// Request is a single synchronous generation call.
type Request struct {
	Model   string
	Prompt  string
	Context Context
	Format  string // "" or FormatJSON
}

// Response carries the answer text and the context that replaces the one sent.
type Response struct {
	Text    string
	Context Context
}

// Client is the contract the orchestrator depends on. Implementations keep no
// state between calls and never retry.
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// ServiceError is returned when the service answers with a non-2xx status.
type ServiceError struct {
	StatusCode int
	Body       string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("analysis service error: status %d: %s", e.StatusCode, e.Body)
}
