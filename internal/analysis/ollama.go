package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is where a local Ollama server listens.
const DefaultBaseURL = "http://localhost:11434"

const generateEndpoint = "/api/generate"

// OllamaClient implements Client against the Ollama generate API.
type OllamaClient struct {
	BaseURL string
	Client  *http.Client
}

// Ensure OllamaClient implements Client
var _ Client = (*OllamaClient)(nil)

// NewOllamaClient creates a client. A zero timeout means no deadline; local
// generations over large files routinely take minutes.
func NewOllamaClient(baseURL string, timeout time.Duration) *OllamaClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &OllamaClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Model   string  `json:"model"`
	Stream  bool    `json:"stream"`
	Prompt  string  `json:"prompt"`
	Context Context `json:"context"`
	Format  string  `json:"format,omitempty"`
}

type generateResponse struct {
	Model    string  `json:"model"`
	Response string  `json:"response"`
	Done     bool    `json:"done"`
	Context  Context `json:"context"`
}

// Generate posts one non-streaming generation request.
func (o *OllamaClient) Generate(ctx context.Context, req Request) (*Response, error) {
	payload, err := json.Marshal(generateRequest{
		Model:   req.Model,
		Stream:  false,
		Prompt:  strings.TrimSpace(req.Prompt),
		Context: req.Context,
		Format:  req.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+generateEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &Response{Text: out.Response, Context: out.Context}, nil
}
