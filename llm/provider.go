package llm

import (
	"context"
	"net/http"
	"sync"
)

// GenerationParams are the sampling controls sent with every completion call.
type GenerationParams struct {
	// Temperature controls randomness. nil uses the service default,
	// a pointer to 0 is deterministic.
	Temperature *float64

	// MaxOutputTokens caps response length. 0 uses the service default.
	MaxOutputTokens int
}

// Provider adapts the client to one completion service's wire format.
type Provider interface {
	// Name returns the provider identifier (e.g. "gemini", "openai").
	Name() string

	// BuildURL constructs the full completion endpoint for the model.
	BuildURL(baseURL, model string) string

	// SetHeaders adds provider-specific headers, including authentication.
	SetHeaders(req *http.Request, apiKey string)

	// BuildRequestBody creates the JSON request body for a single prompt.
	BuildRequestBody(model, prompt string, params GenerationParams) ([]byte, error)

	// ParseResponse extracts the generated text from a success body.
	ParseResponse(body []byte, model string) (*Response, error)

	// ParseError extracts the service-reported message from a non-success
	// body. Implementations return an *APIError.
	ParseError(statusCode int, body []byte) error
}

// ModelLister is implemented by providers that can enumerate the models
// available behind their endpoint.
type ModelLister interface {
	ListModels(ctx context.Context, httpClient *http.Client, baseURL, apiKey string) ([]ModelInfo, error)
}

// ModelInfo describes one model advertised by the completion service.
type ModelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	Description string `json:"description,omitempty"`
}

var (
	providerRegistry = make(map[string]Provider)
	providerMu       sync.RWMutex
)

// RegisterProvider adds a provider to the registry. Providers register
// themselves from init() in the providers package.
func RegisterProvider(p Provider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	providerRegistry[p.Name()] = p
}

// GetProvider retrieves a provider by name, or nil if unregistered.
func GetProvider(name string) Provider {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return providerRegistry[name]
}

// ListProviders returns all registered provider names.
func ListProviders() []string {
	providerMu.RLock()
	defer providerMu.RUnlock()

	names := make([]string, 0, len(providerRegistry))
	for name := range providerRegistry {
		names = append(names, name)
	}
	return names
}
