// Package provider implements the generation transports. Each transport
// assigns the stream id at dispatch, streams the backend's output from a
// single goroutine and pushes events to the registered sink.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ollama/ollama/api"

	"blackia/config"
	"blackia/mcp"
	"blackia/model"
	"blackia/ollama"
)

// OllamaTransport streams generations from a native Ollama server.
type OllamaTransport struct {
	client  *ollama.Client
	sink    model.EventSink
	streams *streamRegistry
}

// NewOllamaTransport creates a transport for the given Ollama server.
// Defaults: http://localhost:11434 and llama3.1:latest.
func NewOllamaTransport(baseURL, defaultModel string) (*OllamaTransport, error) {
	client, err := ollama.NewClient(baseURL, defaultModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}
	return &OllamaTransport{
		client:  client,
		streams: newStreamRegistry(),
	}, nil
}

// SetSink registers the event consumer. Must be called before the first
// StartStream; the engine does this at construction.
func (t *OllamaTransport) SetSink(sink model.EventSink) {
	t.sink = sink
}

// StartStream assigns a fresh stream id, launches the streaming goroutine
// and returns immediately. All events for the stream, including the opening
// EventStart, are delivered asynchronously from that goroutine.
func (t *OllamaTransport) StartStream(_ context.Context, req model.Request) (string, error) {
	if t.sink == nil {
		return "", fmt.Errorf("no event sink registered")
	}

	id := uuid.NewString()
	// The stream outlives the dispatch call; cancellation goes through
	// StopStream, not through the caller's context.
	ctx, cancel := context.WithCancel(context.Background())
	t.streams.add(id, cancel)

	messages := ToOllamaMessages(req.Messages)
	tools := mcp.ToOllamaTools(req.Tools)
	opts := ollama.ChatOptions{
		Temperature: req.Options.Temperature,
		TopP:        req.Options.TopP,
		MaxTokens:   req.Options.MaxTokens,
	}

	go t.run(ctx, id, req.Model, messages, tools, opts)
	return id, nil
}

func (t *OllamaTransport) run(ctx context.Context, id, modelName string, messages []api.Message, tools []api.Tool, opts ollama.ChatOptions) {
	defer t.streams.remove(id)

	t.sink(model.Event{StreamID: id, Kind: model.EventStart})

	err := t.client.ChatWithTools(ctx, modelName, messages, tools, opts, func(chunk string, done bool, calls []api.ToolCall) error {
		if chunk != "" || len(calls) > 0 {
			t.sink(model.Event{
				StreamID:  id,
				Kind:      model.EventChunk,
				Delta:     chunk,
				Done:      done,
				ToolCalls: ToToolCalls(calls),
			})
		}
		return nil
	})

	switch {
	case err == nil:
		t.sink(model.Event{StreamID: id, Kind: model.EventEnd, Done: true})
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		t.sink(model.Event{StreamID: id, Kind: model.EventEnd, Stopped: true})
	default:
		if config.DebugLog != nil {
			config.DebugLog.Printf("[OllamaTransport] stream %s failed: %v", id, err)
		}
		t.sink(model.Event{StreamID: id, Kind: model.EventError, Err: err})
	}
}

// StopStream cancels the stream. The stopped stream still delivers its
// EventEnd with Stopped set from the streaming goroutine; unknown ids are a
// no-op.
func (t *OllamaTransport) StopStream(_ context.Context, streamID string) error {
	t.streams.cancel(streamID)
	return nil
}

// ListModels returns the models installed on the server.
func (t *OllamaTransport) ListModels(ctx context.Context) ([]ollama.ModelInfo, error) {
	return t.client.ListModels(ctx)
}

// Ping checks server reachability.
func (t *OllamaTransport) Ping(ctx context.Context) error {
	return t.client.Ping(ctx)
}
