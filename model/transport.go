package model

import (
	"context"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"blackia/ollama"
)

// EventKind identifies a stream event pushed by a transport.
type EventKind int

const (
	EventStart EventKind = iota
	EventChunk
	EventEnd
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventChunk:
		return "chunk"
	case EventEnd:
		return "end"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one push notification from a generation stream. StreamID is the
// correlation key assigned by the backend at start; consumers must match on
// it and never correlate by arrival order or timing.
type Event struct {
	StreamID string
	Kind     EventKind

	// Chunk fields
	Delta string
	Done  bool

	// ToolCalls carries tool invocations the model requested in this chunk,
	// already converted to the provider-agnostic form.
	ToolCalls []ToolCall

	// End fields
	Stopped bool

	// Error fields
	Err error
}

// EventSink receives stream events. A transport delivers events for a given
// stream sequentially, in send order, from a single goroutine.
type EventSink func(Event)

// SamplingOptions are the request-level generation knobs. MaxTokens caps the
// generated output; transports translate it to their backend's field.
type SamplingOptions struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// Request is a fully composed generation request ready for dispatch.
type Request struct {
	Model    string
	Messages []Message
	Tools    []mcptypes.Tool
	Options  SamplingOptions
}

// Transport abstracts the generation backend (native Ollama, or any
// OpenAI-compatible local server).
//
// This interface lives in the model package, not in provider, to avoid import
// cycles: transport implementations import model, and the engine depends on
// the interface alone.
type Transport interface {
	// StartStream sends the request and returns the backend-assigned stream
	// id. Events for the stream are pushed to the sink registered with
	// SetSink, beginning with an EventStart carrying the same id.
	StartStream(ctx context.Context, req Request) (string, error)

	// StopStream cancels a live stream. Stopping a stream that has already
	// finished is a no-op, not an error. A stopped stream still delivers an
	// EventEnd with Stopped set.
	StopStream(ctx context.Context, streamID string) error

	// SetSink registers the event consumer. Must be called before the first
	// StartStream.
	SetSink(sink EventSink)

	// ListModels returns the models available on the backend.
	ListModels(ctx context.Context) ([]ollama.ModelInfo, error)

	// Ping checks if the backend is reachable.
	Ping(ctx context.Context) error
}

// ToolCall is a provider-agnostic tool invocation requested by the model.
type ToolCall struct {
	Name      string
	Arguments map[string]any
}
