package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"blackia/config"
	"blackia/mcp"
	"blackia/model"
	"blackia/ollama"
)

// OpenAICompatTransport streams generations from any local server speaking
// the OpenAI chat-completions protocol (LM Studio, MLX, vLLM).
type OpenAICompatTransport struct {
	client  openai.Client
	baseURL string
	sink    model.EventSink
	streams *streamRegistry
}

// NewOpenAICompatTransport creates a transport for an OpenAI-compatible
// server. Local servers usually ignore the key but the SDK requires one, so
// an empty key is replaced with a placeholder.
func NewOpenAICompatTransport(baseURL, apiKey string) (*OpenAICompatTransport, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required for an OpenAI-compatible backend")
	}
	if apiKey == "" {
		apiKey = "not-needed"
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)
	return &OpenAICompatTransport{
		client:  client,
		baseURL: baseURL,
		streams: newStreamRegistry(),
	}, nil
}

func (t *OpenAICompatTransport) SetSink(sink model.EventSink) {
	t.sink = sink
}

// StartStream assigns a fresh stream id and launches the streaming
// goroutine; all events arrive asynchronously from it.
func (t *OpenAICompatTransport) StartStream(_ context.Context, req model.Request) (string, error) {
	if t.sink == nil {
		return "", fmt.Errorf("no event sink registered")
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	t.streams.add(id, cancel)

	params := openai.ChatCompletionNewParams{
		Messages: ToOpenAIMessages(req.Messages),
		Model:    openai.ChatModel(req.Model),
	}
	if req.Options.Temperature != 0 {
		params.Temperature = openai.Float(req.Options.Temperature)
	}
	if req.Options.TopP != 0 {
		params.TopP = openai.Float(req.Options.TopP)
	}
	if req.Options.MaxTokens != 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.Options.MaxTokens))
	}
	if len(req.Tools) > 0 {
		params.Tools = mcp.ToOpenAITools(req.Tools)
	}

	go t.run(ctx, id, params)
	return id, nil
}

func (t *OpenAICompatTransport) run(ctx context.Context, id string, params openai.ChatCompletionNewParams) {
	defer t.streams.remove(id)

	t.sink(model.Event{StreamID: id, Kind: model.EventStart})

	stream := t.client.Chat.Completions.NewStreaming(ctx, params)
	acc := openai.ChatCompletionAccumulator{}

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if tool, ok := acc.JustFinishedToolCall(); ok {
			t.sink(model.Event{
				StreamID: id,
				Kind:     model.EventChunk,
				ToolCalls: []model.ToolCall{{
					Name:      tool.Name,
					Arguments: ParseToolArguments(tool.Arguments),
				}},
			})
		}

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			t.sink(model.Event{
				StreamID: id,
				Kind:     model.EventChunk,
				Delta:    chunk.Choices[0].Delta.Content,
			})
		}
	}

	err := stream.Err()
	switch {
	case err == nil:
		t.sink(model.Event{StreamID: id, Kind: model.EventEnd, Done: true})
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		t.sink(model.Event{StreamID: id, Kind: model.EventEnd, Stopped: true})
	default:
		if config.DebugLog != nil {
			config.DebugLog.Printf("[OpenAICompatTransport] stream %s failed: %v", id, err)
		}
		t.sink(model.Event{StreamID: id, Kind: model.EventError, Err: fmt.Errorf("streaming error: %w", err)})
	}
}

func (t *OpenAICompatTransport) StopStream(_ context.Context, streamID string) error {
	t.streams.cancel(streamID)
	return nil
}

// ListModels fetches the server's model list. Size is not reported by the
// OpenAI protocol.
func (t *OpenAICompatTransport) ListModels(ctx context.Context) ([]ollama.ModelInfo, error) {
	page, err := t.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	result := make([]ollama.ModelInfo, 0, len(page.Data))
	for _, m := range page.Data {
		result = append(result, ollama.ModelInfo{
			Name:         m.ID,
			InternalName: m.ID,
			Provider:     "openai-compat",
		})
	}
	return result, nil
}

func (t *OpenAICompatTransport) Ping(ctx context.Context) error {
	if _, err := t.client.Models.List(ctx); err != nil {
		return fmt.Errorf("backend ping failed: %w", err)
	}
	return nil
}
