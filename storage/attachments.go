package storage

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"blackia/engine"
)

// AttachmentStorage persists extracted attachment text in sqlite. It
// implements the engine's AttachmentResolver.
type AttachmentStorage struct {
	db *sql.DB
}

func NewAttachmentStorage(dataDir string) (*AttachmentStorage, error) {
	dbPath := filepath.Join(dataDir, "attachments.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	storage := &AttachmentStorage{db: db}
	if err := storage.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return storage, nil
}

func (as *AttachmentStorage) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS attachments (
		id TEXT PRIMARY KEY,
		original_name TEXT NOT NULL,
		mime_type TEXT NOT NULL DEFAULT '',
		extracted_text TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);
	`
	_, err := as.db.Exec(schema)
	return err
}

// Save stores an attachment's extracted text and returns its id.
func (as *AttachmentStorage) Save(originalName, mimeType, extractedText string) (string, error) {
	id := uuid.New().String()
	_, err := as.db.Exec(
		`INSERT INTO attachments (id, original_name, mime_type, extracted_text, size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, originalName, mimeType, extractedText, len(extractedText), time.Now())
	if err != nil {
		return "", fmt.Errorf("failed to save attachment: %w", err)
	}
	return id, nil
}

// GetByID loads one attachment.
func (as *AttachmentStorage) GetByID(ctx context.Context, id string) (engine.Attachment, error) {
	var att engine.Attachment
	err := as.db.QueryRowContext(ctx,
		`SELECT id, original_name, extracted_text FROM attachments WHERE id = ?`, id).
		Scan(&att.ID, &att.OriginalName, &att.ExtractedText)
	if err == sql.ErrNoRows {
		return engine.Attachment{}, fmt.Errorf("attachment not found: %s", id)
	}
	if err != nil {
		return engine.Attachment{}, fmt.Errorf("failed to load attachment %s: %w", id, err)
	}
	return att, nil
}

// Delete removes an attachment.
func (as *AttachmentStorage) Delete(id string) error {
	_, err := as.db.Exec(`DELETE FROM attachments WHERE id = ?`, id)
	return err
}

func (as *AttachmentStorage) Close() error {
	return as.db.Close()
}
