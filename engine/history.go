package engine

import (
	"sort"

	"blackia/model"
)

// History is the append-only message list plus the sparse, index-keyed
// metadata map. A metadata entry's key always equals the index the referenced
// message occupied at append time; entries are never re-indexed when later
// messages are appended.
//
// History is not safe for concurrent use on its own; the Engine owns it and
// linearizes all mutation.
type History struct {
	messages []model.Message
	metadata map[int]model.MessageMetadata
}

func NewHistory() *History {
	return &History{metadata: make(map[int]model.MessageMetadata)}
}

// Append adds a message and returns the authoritative index it occupies.
// Callers attaching metadata must use this return value, never a recomputed
// length.
func (h *History) Append(msg model.Message) int {
	h.messages = append(h.messages, msg)
	return len(h.messages) - 1
}

// AttachMetadata records metadata for the message at index. The index must be
// the value returned by the Append call for that exact message.
func (h *History) AttachMetadata(index int, md model.MessageMetadata) {
	if index < 0 || index >= len(h.messages) {
		return
	}
	h.metadata[index] = md
}

// TruncateFrom removes the message at index and everything after it, along
// with their metadata. Used by edit and regenerate; messages are never
// mutated in place.
func (h *History) TruncateFrom(index int) {
	if index < 0 || index >= len(h.messages) {
		return
	}
	h.messages = h.messages[:index]
	for k := range h.metadata {
		if k >= index {
			delete(h.metadata, k)
		}
	}
}

// Messages returns a copy of the message list.
func (h *History) Messages() []model.Message {
	out := make([]model.Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// MetadataAt returns the metadata recorded for index, if any.
func (h *History) MetadataAt(index int) (model.MessageMetadata, bool) {
	md, ok := h.metadata[index]
	return md, ok
}

// Metadata returns a copy of the full metadata map.
func (h *History) Metadata() map[int]model.MessageMetadata {
	out := make(map[int]model.MessageMetadata, len(h.metadata))
	for k, v := range h.metadata {
		out[k] = v
	}
	return out
}

// MetadataIndices returns the populated indices in ascending order.
func (h *History) MetadataIndices() []int {
	indices := make([]int, 0, len(h.metadata))
	for k := range h.metadata {
		indices = append(indices, k)
	}
	sort.Ints(indices)
	return indices
}

func (h *History) Len() int {
	return len(h.messages)
}

// LastIndexOfRole returns the index of the last message with the given role,
// or -1 if none exists.
func (h *History) LastIndexOfRole(role string) int {
	for i := len(h.messages) - 1; i >= 0; i-- {
		if h.messages[i].Role == role {
			return i
		}
	}
	return -1
}

// Restore replaces the history contents, used when loading a persisted
// conversation.
func (h *History) Restore(messages []model.Message, metadata map[int]model.MessageMetadata) {
	h.messages = make([]model.Message, len(messages))
	copy(h.messages, messages)
	h.metadata = make(map[int]model.MessageMetadata, len(metadata))
	for k, v := range metadata {
		h.metadata[k] = v
	}
}
