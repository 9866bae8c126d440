package engine

import (
	"context"

	"blackia/compose"
	"blackia/gate"
	"blackia/model"
)

// The engine reaches its external collaborators through these read-only
// interfaces. Calls are fire-and-await; partial failure on any of them
// degrades the turn gracefully instead of blocking it.

// PersonaSource looks up personas by id.
type PersonaSource interface {
	GetByID(ctx context.Context, id string) (model.Persona, error)
}

// Attachment is a resolved attached document.
type Attachment struct {
	ID            string
	OriginalName  string
	ExtractedText string
}

// AttachmentResolver resolves attachment ids to their extracted text.
type AttachmentResolver interface {
	GetByID(ctx context.Context, id string) (Attachment, error)
}

// ToolCatalog returns the permission-checked tool catalog for chat.
type ToolCatalog interface {
	ToolsForChat(ctx context.Context) ([]gate.CatalogEntry, error)
}

// WebSearcher runs a web search for the submitted message. The returned
// provenance is an opaque descriptor recorded in message metadata.
type WebSearcher interface {
	Search(ctx context.Context, query string) (snippets []compose.Snippet, provenance string, err error)
}

// UpdateKind identifies what an Update notification reports.
type UpdateKind int

const (
	// UpdateStatus: the session status changed.
	UpdateStatus UpdateKind = iota
	// UpdateDelta: a streamed chunk was accumulated.
	UpdateDelta
	// UpdateMessage: a message was committed to the history.
	UpdateMessage
)

// Update is a notification pushed to the engine's observer. Observers must
// not mutate engine state from the callback; all fields are copies.
type Update struct {
	Kind    UpdateKind
	Status  Status
	Delta   string
	Message model.Message
	Index   int
}
