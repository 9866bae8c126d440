package provider

import (
	"fmt"

	"blackia/model"
)

// BackendType selects the transport implementation.
type BackendType string

const (
	// BackendOllama is a native Ollama server.
	BackendOllama BackendType = "ollama"
	// BackendOpenAICompat is any local server speaking the OpenAI
	// chat-completions protocol (LM Studio, MLX, vLLM).
	BackendOpenAICompat BackendType = "openai-compat"
)

// Config selects and parameterizes one backend.
type Config struct {
	Type    BackendType
	BaseURL string
	APIKey  string
	Model   string
}

// NewTransport creates the transport for the configured backend.
func NewTransport(cfg Config) (model.Transport, error) {
	switch cfg.Type {
	case BackendOllama:
		return NewOllamaTransport(cfg.BaseURL, cfg.Model)
	case BackendOpenAICompat:
		return NewOpenAICompatTransport(cfg.BaseURL, cfg.APIKey)
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Type)
	}
}

// MapBackendID converts a user-facing backend id from the config file to a
// BackendType. LM Studio, MLX and vLLM all map to the OpenAI-compatible
// transport.
func MapBackendID(id string) BackendType {
	switch id {
	case "ollama", "":
		return BackendOllama
	case "openai-compat", "lmstudio", "mlx", "vllm":
		return BackendOpenAICompat
	default:
		return BackendType(id)
	}
}
