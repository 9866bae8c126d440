package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"blackia/model"
)

// PersonaStorage persists personas in sqlite. It implements the engine's
// PersonaSource.
type PersonaStorage struct {
	db *sql.DB
}

func NewPersonaStorage(dataDir string) (*PersonaStorage, error) {
	dbPath := filepath.Join(dataDir, "personas.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	storage := &PersonaStorage{db: db}
	if err := storage.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return storage, nil
}

func (ps *PersonaStorage) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS personas (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		system_prompt TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		temperature REAL,
		max_tokens INTEGER,
		few_shots TEXT NOT NULL DEFAULT '[]',
		category TEXT NOT NULL DEFAULT '',
		is_favorite INTEGER NOT NULL DEFAULT 0,
		usage_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_personas_name ON personas(name);
	CREATE INDEX IF NOT EXISTS idx_personas_category ON personas(category);
	`
	_, err := ps.db.Exec(schema)
	return err
}

// Save inserts or replaces a persona, assigning an id if missing.
func (ps *PersonaStorage) Save(p *model.Persona) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.UpdatedAt = time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = p.UpdatedAt
	}

	fewShots, err := json.Marshal(p.FewShotExamples)
	if err != nil {
		return fmt.Errorf("failed to marshal few-shot examples: %w", err)
	}

	query := `
	INSERT OR REPLACE INTO personas
		(id, name, description, system_prompt, model, temperature, max_tokens,
		 few_shots, category, is_favorite, usage_count, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = ps.db.Exec(query,
		p.ID,
		p.Name,
		p.Description,
		p.SystemPrompt,
		p.Model,
		p.Temperature,
		p.MaxTokens,
		string(fewShots),
		p.Category,
		boolToInt(p.IsFavorite),
		p.UsageCount,
		p.CreatedAt,
		p.UpdatedAt,
	)
	return err
}

const personaColumns = `id, name, description, system_prompt, model, temperature,
	max_tokens, few_shots, category, is_favorite, usage_count, created_at, updated_at`

// GetByID loads one persona.
func (ps *PersonaStorage) GetByID(ctx context.Context, id string) (model.Persona, error) {
	row := ps.db.QueryRowContext(ctx,
		`SELECT `+personaColumns+` FROM personas WHERE id = ?`, id)
	p, err := scanPersona(row)
	if err == sql.ErrNoRows {
		return model.Persona{}, fmt.Errorf("persona not found: %s", id)
	}
	if err != nil {
		return model.Persona{}, fmt.Errorf("failed to load persona %s: %w", id, err)
	}
	return p, nil
}

// List returns all personas ordered by name.
func (ps *PersonaStorage) List(ctx context.Context) ([]model.Persona, error) {
	return ps.query(ctx, `SELECT `+personaColumns+` FROM personas ORDER BY name`)
}

// ListByCategory returns the personas in one category, ordered by name.
func (ps *PersonaStorage) ListByCategory(ctx context.Context, category string) ([]model.Persona, error) {
	return ps.query(ctx,
		`SELECT `+personaColumns+` FROM personas WHERE category = ? ORDER BY name`, category)
}

// Favorites returns favorite personas, most used first.
func (ps *PersonaStorage) Favorites(ctx context.Context) ([]model.Persona, error) {
	return ps.query(ctx,
		`SELECT `+personaColumns+` FROM personas WHERE is_favorite = 1 ORDER BY usage_count DESC, name`)
}

func (ps *PersonaStorage) query(ctx context.Context, q string, args ...any) ([]model.Persona, error) {
	rows, err := ps.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query personas: %w", err)
	}
	defer rows.Close()

	var personas []model.Persona
	for rows.Next() {
		p, err := scanPersona(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan persona: %w", err)
		}
		personas = append(personas, p)
	}
	return personas, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPersona(row rowScanner) (model.Persona, error) {
	var p model.Persona
	var fewShots string
	var favorite int

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.SystemPrompt,
		&p.Model,
		&p.Temperature,
		&p.MaxTokens,
		&fewShots,
		&p.Category,
		&favorite,
		&p.UsageCount,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return model.Persona{}, err
	}

	p.IsFavorite = favorite != 0
	if err := json.Unmarshal([]byte(fewShots), &p.FewShotExamples); err != nil {
		return model.Persona{}, fmt.Errorf("corrupt few-shot examples for %s: %w", p.ID, err)
	}
	return p, nil
}

// IncrementUsage bumps a persona's usage counter.
func (ps *PersonaStorage) IncrementUsage(id string) error {
	_, err := ps.db.Exec(
		`UPDATE personas SET usage_count = usage_count + 1, updated_at = ? WHERE id = ?`,
		time.Now(), id)
	return err
}

// SetFavorite flips the favorite flag.
func (ps *PersonaStorage) SetFavorite(id string, favorite bool) error {
	_, err := ps.db.Exec(
		`UPDATE personas SET is_favorite = ?, updated_at = ? WHERE id = ?`,
		boolToInt(favorite), time.Now(), id)
	return err
}

// Delete removes a persona.
func (ps *PersonaStorage) Delete(id string) error {
	_, err := ps.db.Exec(`DELETE FROM personas WHERE id = ?`, id)
	return err
}

func (ps *PersonaStorage) Close() error {
	return ps.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
