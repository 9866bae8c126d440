package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// Client wraps the Ollama API client for a locally hosted backend.
type Client struct {
	client  *api.Client
	model   string
	baseURL string
}

// StreamCallback is invoked once per streamed chat response chunk. done is
// true on the final chunk of the stream.
type StreamCallback func(chunk string, done bool, toolCalls []api.ToolCall) error

func NewClient(baseURL, model string) (*Client, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.1:latest"
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	client := api.NewClient(parsedURL, http.DefaultClient)

	return &Client{
		client:  client,
		model:   model,
		baseURL: baseURL,
	}, nil
}

// ChatOptions are the per-request sampling parameters forwarded to the
// backend. Zero values are omitted from the request.
type ChatOptions struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// Chat sends a streaming chat request without tools.
func (c *Client) Chat(ctx context.Context, model string, messages []api.Message, opts ChatOptions, callback StreamCallback) error {
	return c.ChatWithTools(ctx, model, messages, nil, opts, callback)
}

// ChatWithTools sends a streaming chat request with optional tool definitions.
// If model is empty the client's default model is used.
func (c *Client) ChatWithTools(ctx context.Context, model string, messages []api.Message, tools []api.Tool, opts ChatOptions, callback StreamCallback) error {
	if model == "" {
		model = c.model
	}

	options := map[string]any{}
	if opts.Temperature != 0 {
		options["temperature"] = opts.Temperature
	}
	if opts.TopP != 0 {
		options["top_p"] = opts.TopP
	}
	if opts.MaxTokens != 0 {
		options["num_predict"] = opts.MaxTokens
	}

	req := &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Tools:    tools,
		Options:  options,
		Stream:   func(b bool) *bool { return &b }(true),
	}

	respFunc := func(resp api.ChatResponse) error {
		if callback != nil {
			return callback(resp.Message.Content, resp.Done, resp.Message.ToolCalls)
		}
		return nil
	}

	return c.client.Chat(ctx, req, respFunc)
}

// ModelInfo describes one model available on a backend.
type ModelInfo struct {
	Name         string // Display name
	Size         int64
	Provider     string // Backend ID: "ollama", "openai-compat"
	InternalName string // Full API name used in requests
}

func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	resp, err := c.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	models := make([]ModelInfo, len(resp.Models))
	for i, model := range resp.Models {
		models[i] = ModelInfo{
			Name:         model.Name,
			Size:         model.Size,
			Provider:     "ollama",
			InternalName: model.Name,
		}
	}

	return models, nil
}

func (c *Client) SetModel(model string) {
	c.model = model
}

func (c *Client) GetModel() string {
	return c.model
}

func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := c.client.List(ctx)
	return err
}

// toolCallingModels tracks which model families support tool calling.
// Curated from Ollama documentation and community testing.
var toolCallingModels = map[string]bool{
	// Known working families
	"qwen":      true, // qwen2.5-coder, qwen3-coder
	"llama3.1":  true,
	"llama3.2":  true,
	"llama3.3":  true,
	"mistral":   true, // mistral:latest, mistral-nemo
	"command-r": true, // Cohere models
	"nemotron":  true, // NVIDIA models
	"granite3":  true, // IBM Granite 3 models

	// Families with issues or no tool support
	"llama3-gradient": false,
	"llama3":          false, // original llama3 (not 3.1/3.2/3.3)
	"phi":             false,
	"gemma":           false,
	"codellama":       false,
	"deepseek":        false, // DeepSeek v2/v3 don't support tools in Ollama
}

// orderedPrefixes defines the order to check model-family prefixes.
// Most specific prefixes come first so llama3.2 is not matched as llama3.
var orderedPrefixes = []string{
	"llama3.3", "llama3.2", "llama3.1",
	"llama3-gradient",
	"command-r", "qwen", "mistral", "nemotron", "granite3",
	"codellama",
	"llama3",
	"deepseek", "phi", "gemma",
}

// NormalizeModelID strips the tag/variant suffix from a model identifier
// ("llama3.1:8b-instruct-q4" becomes "llama3.1") and lowercases it.
func NormalizeModelID(name string) string {
	name = strings.ToLower(name)
	if idx := strings.Index(name, ":"); idx != -1 {
		name = name[:idx]
	}
	return name
}

// ModelSupportsToolCalling reports whether a model identifier belongs to a
// family known to support Ollama's tool calling API. Unknown families are
// assumed unsupported.
func ModelSupportsToolCalling(modelName string) bool {
	normalized := NormalizeModelID(modelName)

	for _, prefix := range orderedPrefixes {
		if strings.HasPrefix(normalized, prefix) {
			if supported, exists := toolCallingModels[prefix]; exists {
				return supported
			}
		}
	}

	return false
}

// SupportsToolCalling reports tool-calling support for the client's current
// default model.
func (c *Client) SupportsToolCalling() bool {
	return ModelSupportsToolCalling(c.model)
}
