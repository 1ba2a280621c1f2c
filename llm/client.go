// Package llm provides a provider-agnostic client for single-shot text
// completion: one prompt in, one generated text out, or an error. Provider
// implementations translate to and from each service's wire format.
package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// maxResponseSize limits the completion response body to prevent memory
// exhaustion on a misbehaving endpoint.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Client calls one completion service endpoint. Each Complete call is a
// single attempt; retry policy belongs to the caller.
type Client struct {
	provider   string
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// Request defines a completion request.
type Request struct {
	// Model is the model identifier to generate with.
	Model string

	// Prompt is the full rendered prompt text.
	Prompt string

	// Params are the sampling controls for this call.
	Params GenerationParams
}

// Response contains the completion result.
type Response struct {
	// Content is the generated text.
	Content string

	// Model is the model that produced the content.
	Model string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// NewClient creates a client for the named provider. baseURL may be empty to
// use the provider default; apiKey may be empty for unauthenticated local
// endpoints.
func NewClient(provider, baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		provider: provider,
		baseURL:  baseURL,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // allow time for long generations
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Complete sends one completion request and returns the generated text.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if req.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if req.Prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	provider := GetProvider(c.provider)
	if provider == nil {
		return nil, NewFatalError(fmt.Errorf("unknown provider: %s", c.provider))
	}

	url := provider.BuildURL(c.baseURL, req.Model)

	body, err := provider.BuildRequestBody(req.Model, req.Prompt, req.Params)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("build request body: %w", err))
	}

	c.logger.Debug("Sending completion request",
		"provider", c.provider,
		"model", req.Model,
		"prompt_len", len(req.Prompt))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	provider.SetHeaders(httpReq, c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Network errors are transient
		return nil, NewTransientError(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyStatus(httpResp.StatusCode, provider.ParseError(httpResp.StatusCode, respBody))
	}

	return provider.ParseResponse(respBody, req.Model)
}

// ListModels enumerates the models available behind the configured endpoint.
// Returns an error when the provider cannot list models.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	provider := GetProvider(c.provider)
	if provider == nil {
		return nil, fmt.Errorf("unknown provider: %s", c.provider)
	}

	lister, ok := provider.(ModelLister)
	if !ok {
		return nil, fmt.Errorf("provider %s does not support model listing", c.provider)
	}

	return lister.ListModels(ctx, c.httpClient, c.baseURL, c.apiKey)
}

// classifyStatus wraps a provider-parsed API error as transient or fatal
// based on the HTTP status.
func classifyStatus(statusCode int, err error) error {
	switch {
	case statusCode == http.StatusTooManyRequests:
		// Rate limiting is transient
		return NewTransientError(err)
	case statusCode >= 500:
		return NewTransientError(err)
	case statusCode == http.StatusUnauthorized,
		statusCode == http.StatusForbidden:
		// Auth errors are fatal
		return NewFatalError(err)
	default:
		return NewFatalError(err)
	}
}
