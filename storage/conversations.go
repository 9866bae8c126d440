// Package storage persists conversations, personas and attachments under the
// data directory. Conversations are one JSON file each; personas and
// attachments live in sqlite databases.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"blackia/model"
)

// Conversation is one persisted chat: the ordered message list plus the
// sparse metadata map keyed by message index.
type Conversation struct {
	ID        string                        `json:"id"`
	Name      string                        `json:"name"`
	Model     string                        `json:"model"`
	PersonaID string                        `json:"persona_id,omitempty"`
	CreatedAt time.Time                     `json:"created_at"`
	UpdatedAt time.Time                     `json:"updated_at"`
	Messages  []model.Message               `json:"messages"`
	Metadata  map[int]model.MessageMetadata `json:"metadata,omitempty"`
}

// ConversationMetadata is a lightweight version of Conversation for listing.
type ConversationMetadata struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Model        string    `json:"model"`
	PersonaID    string    `json:"persona_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// ConversationStorage handles conversation persistence.
type ConversationStorage struct {
	conversationsDir string
}

// NewConversationStorage creates the storage, making the conversations
// directory if needed (0700, user-only access).
func NewConversationStorage(dataDir string) (*ConversationStorage, error) {
	dir := filepath.Join(dataDir, "conversations")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create conversations directory: %w", err)
	}
	return &ConversationStorage{conversationsDir: dir}, nil
}

// Save writes a conversation to disk, assigning an id and a name if missing.
func (s *ConversationStorage) Save(conv *Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	if conv.Name == "" {
		conv.Name = GenerateName(conv.Messages)
	}

	conv.UpdatedAt = time.Now()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = conv.UpdatedAt
	}

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	// 0600, conversation files contain sensitive chat history.
	path := filepath.Join(s.conversationsDir, conv.ID+".json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write conversation file: %w", err)
	}
	return nil
}

// Load reads one conversation from disk.
func (s *ConversationStorage) Load(id string) (*Conversation, error) {
	path := filepath.Join(s.conversationsDir, id+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation file: %w", err)
	}

	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation: %w", err)
	}
	return &conv, nil
}

// List returns metadata for all conversations, newest first. Corrupted files
// are skipped.
func (s *ConversationStorage) List() ([]ConversationMetadata, error) {
	entries, err := os.ReadDir(s.conversationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversations directory: %w", err)
	}

	var conversations []ConversationMetadata
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.conversationsDir, entry.Name()))
		if err != nil {
			continue
		}
		var conv Conversation
		if err := json.Unmarshal(data, &conv); err != nil {
			continue
		}

		conversations = append(conversations, ConversationMetadata{
			ID:           conv.ID,
			Name:         conv.Name,
			Model:        conv.Model,
			PersonaID:    conv.PersonaID,
			CreatedAt:    conv.CreatedAt,
			UpdatedAt:    conv.UpdatedAt,
			MessageCount: len(conv.Messages),
		})
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})
	return conversations, nil
}

// Delete removes a conversation from disk.
func (s *ConversationStorage) Delete(id string) error {
	path := filepath.Join(s.conversationsDir, id+".json")
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete conversation file: %w", err)
	}
	return nil
}

// Rename updates a conversation's name.
func (s *ConversationStorage) Rename(id, newName string) error {
	conv, err := s.Load(id)
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}
	conv.Name = newName
	if err := s.Save(conv); err != nil {
		return fmt.Errorf("failed to save renamed conversation: %w", err)
	}
	return nil
}

// SaveCurrentConversationID remembers the active conversation across runs.
func (s *ConversationStorage) SaveCurrentConversationID(id string) error {
	path := filepath.Join(filepath.Dir(s.conversationsDir), "current_conversation.id")
	return os.WriteFile(path, []byte(id), 0600)
}

// LoadCurrentConversationID returns the last active conversation id.
func (s *ConversationStorage) LoadCurrentConversationID() (string, error) {
	path := filepath.Join(filepath.Dir(s.conversationsDir), "current_conversation.id")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// GenerateName derives a default conversation name from the first user
// message, truncated to keep listings readable.
func GenerateName(messages []model.Message) string {
	for _, msg := range messages {
		if msg.Role != model.RoleUser {
			continue
		}
		name := strings.TrimSpace(msg.Content)
		name = strings.ReplaceAll(name, "\n", " ")
		if name == "" {
			continue
		}
		if len(name) > 50 {
			name = strings.TrimSpace(name[:50]) + "..."
		}
		return name
	}
	return "New conversation"
}
