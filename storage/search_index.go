package storage

import (
	"strings"
	"time"

	"github.com/sahilm/fuzzy"

	"blackia/model"
)

// ConversationMatch is one message hit from a full-text search.
type ConversationMatch struct {
	ConversationID   string
	ConversationName string
	MessageIndex     int
	Role             string
	Content          string
	Preview          string
	Timestamp        time.Time
}

// SearchIndex searches across stored conversations.
type SearchIndex struct {
	storage *ConversationStorage
}

func NewSearchIndex(storage *ConversationStorage) *SearchIndex {
	return &SearchIndex{storage: storage}
}

// SearchAllConversations finds messages containing the query, case
// insensitively. System messages are skipped.
func (si *SearchIndex) SearchAllConversations(query string) ([]ConversationMatch, error) {
	if query == "" {
		return []ConversationMatch{}, nil
	}

	list, err := si.storage.List()
	if err != nil {
		return nil, err
	}

	queryLower := strings.ToLower(query)
	var matches []ConversationMatch

	for _, meta := range list {
		conv, err := si.storage.Load(meta.ID)
		if err != nil {
			continue
		}

		for i, msg := range conv.Messages {
			if msg.Role == model.RoleSystem {
				continue
			}
			if !strings.Contains(strings.ToLower(msg.Content), queryLower) {
				continue
			}

			preview := msg.Content
			if len(preview) > 100 {
				preview = preview[:100] + "..."
			}
			matches = append(matches, ConversationMatch{
				ConversationID:   conv.ID,
				ConversationName: conv.Name,
				MessageIndex:     i,
				Role:             msg.Role,
				Content:          msg.Content,
				Preview:          preview,
				Timestamp:        msg.Timestamp,
			})
		}
	}
	return matches, nil
}

// FilterByName fuzzy-filters conversation metadata by name, best match
// first.
func (si *SearchIndex) FilterByName(query string, list []ConversationMetadata) []ConversationMetadata {
	if query == "" {
		return list
	}

	targets := make([]string, len(list))
	for i, meta := range list {
		targets[i] = meta.Name
	}

	found := fuzzy.Find(query, targets)
	filtered := make([]ConversationMetadata, len(found))
	for i, match := range found {
		filtered[i] = list[match.Index]
	}
	return filtered
}

// FilterPersonasByName fuzzy-filters personas by name, best match first.
func FilterPersonasByName(query string, personas []model.Persona) []model.Persona {
	if query == "" {
		return personas
	}

	targets := make([]string, len(personas))
	for i, p := range personas {
		targets[i] = p.Name
	}

	found := fuzzy.Find(query, targets)
	filtered := make([]model.Persona, len(found))
	for i, match := range found {
		filtered[i] = personas[match.Index]
	}
	return filtered
}
