package agent

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// OllamaProvider talks to a local Ollama server through its OpenAI-compatible API.
type OllamaProvider struct {
	*OpenAIProvider
}

// NewOllamaProvider creates the local Ollama provider.
func NewOllamaProvider() *OllamaProvider {
	return &OllamaProvider{
		OpenAIProvider: &OpenAIProvider{
			info: Info{
				Name:        "LocalOllama",
				Description: "Local Ollama client",
				Version:     "1.0.0",
			},
			defaults: Config{
				BaseURL: "http://localhost:11434",
				Model:   "llama3.2:3b",
			},
			chatPath:   "/v1/chat/completions",
			modelsPath: "/v1",
		},
	}
}

// CheckResponseStatus flags models that cannot call tools
func (p *OllamaProvider) CheckResponseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	statusErr := statusError(resp)
	if strings.Contains(statusErr.Message, "does not support tools") {
		log.Error().
			Str("message", statusErr.Message).
			Msg("The current model does not support tool calls, please switch models")
	}
	return statusErr
}
