package model

import "time"

// Role values for chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents one turn in a conversation. Messages are immutable once
// appended to a history; ordering is append-order and is the sole ordering key.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// MessageMetadata carries attribution for a single message: which personas
// produced or were addressed by it, which attachments were included, and
// provenance of retrieved context. Entries are sparse and keyed by the index
// the message occupied in the history at the moment it was appended; that key
// never changes afterwards.
type MessageMetadata struct {
	PersonaID           string    `json:"persona_id,omitempty"`  // first mentioned persona (primary)
	PersonaIDs          []string  `json:"persona_ids,omitempty"` // all mentioned personas, in mention order
	AttachmentIDs       []string  `json:"attachment_ids,omitempty"`
	RAGProvenance       string    `json:"rag_provenance,omitempty"`
	WebSearchProvenance string    `json:"web_search_provenance,omitempty"`
	Timestamp           time.Time `json:"timestamp"`
}
