package embedding

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

// HTTPProvider is a generic HTTP embedding backend: the "Primary"
// configuration from the spec's three-provider set. Request/response
// plumbing is adapted from the teacher's BaseProvider.DoRequest.
type HTTPProvider struct {
	name       string
	client     *http.Client
	baseURL    string
	apiKey     string
	model      string
	dimensions int
}

// HTTPProviderConfig configures an HTTPProvider.
type HTTPProviderConfig struct {
	Name       string
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// NewHTTPProvider constructs an HTTPProvider.
func NewHTTPProvider(cfg HTTPProviderConfig) *HTTPProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPProvider{
		name:       cfg.Name,
		client:     &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

func (p *HTTPProvider) Name() string    { return p.name }
func (p *HTTPProvider) Dimensions() int { return p.dimensions }

type embedRequestBody struct {
	Input []string `json:"input"`
	Model string   `json:"model,omitempty"`
	Mode  TaskMode `json:"input_type,omitempty"`
}

type embedResponseBody struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (p *HTTPProvider) Embed(ctx context.Context, text string, mode TaskMode) ([]float32, error) {
	body := embedRequestBody{Input: []string{text}, Model: p.model, Mode: mode}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: p.name, Retryable: true, Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embed response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &ProviderError{
			Provider:  p.name,
			Retryable: resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
			Cause:     fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	var parsed embedResponseBody
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal embed response: %w", err)
	}
	if len(parsed.Embeddings) == 0 {
		return nil, &ProviderError{Provider: p.name, Retryable: false, Cause: fmt.Errorf("no embeddings returned")}
	}
	return parsed.Embeddings[0], nil
}

// ProviderError wraps a provider failure with a retryability hint
// consumed by the retry policy.
type ProviderError struct {
	Provider  string
	Retryable bool
	Cause     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider %s: %v", e.Provider, e.Cause)
}

func (e *ProviderError) Unwrap() error { return e.Cause }
