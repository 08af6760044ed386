package agent

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider talks to any endpoint speaking the OpenAI chat completions
// protocol. Its defaults target DeepSeek.
type OpenAIProvider struct {
	info       Info
	defaults   Config
	chatPath   string
	modelsPath string
}

// NewOpenAIProvider creates the generic OpenAI-compatible provider.
func NewOpenAIProvider() *OpenAIProvider {
	return &OpenAIProvider{
		info: Info{
			Name:        "OpenAICompatible",
			Description: "OpenAI-compatible chat endpoint (DeepSeek by default)",
			Version:     "1.0.0",
		},
		defaults: Config{
			BaseURL: "https://api.deepseek.com",
			Model:   "deepseek-chat",
		},
		chatPath:   "/chat/completions",
		modelsPath: "",
	}
}

// Info returns the provider description
func (p *OpenAIProvider) Info() Info {
	return p.info
}

// DefaultConfig returns the vendor defaults merged over the neutral defaults
func (p *OpenAIProvider) DefaultConfig() Config {
	cfg := DefaultConfig()
	cfg.BaseURL = p.defaults.BaseURL
	cfg.APIKey = p.defaults.APIKey
	cfg.Model = p.defaults.Model
	return cfg
}

// BuildRequest posts body to the chat completions path
func (p *OpenAIProvider) BuildRequest(ctx context.Context, cfg Config, body ChatRequest) (*http.Request, error) {
	return newJSONRequest(ctx, ChatURL(cfg.BaseURL, p.chatPath), cfg, body)
}

// CheckResponseStatus maps non-2xx responses to HTTPStatusError
func (p *OpenAIProvider) CheckResponseStatus(resp *http.Response) error {
	return checkStatus(resp)
}

// ListModels lists the endpoint's models, sorted by id
func (p *OpenAIProvider) ListModels(ctx context.Context, cfg Config, httpClient *http.Client) ([]string, error) {
	return listModels(ctx, ChatURL(cfg.BaseURL, p.modelsPath), cfg.APIKey, httpClient)
}

func listModels(ctx context.Context, baseURL, apiKey string, httpClient *http.Client) ([]string, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	opts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	client := openai.NewClient(opts...)
	page, err := client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	models := make([]string, 0, len(page.Data))
	for _, model := range page.Data {
		models = append(models, model.ID)
	}
	sort.Strings(models)
	return models, nil
}
