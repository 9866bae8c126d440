package storage

import (
	"context"
	"testing"

	"blackia/model"
)

func newPersonaStorage(t *testing.T) *PersonaStorage {
	t.Helper()
	ps, err := NewPersonaStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewPersonaStorage() error = %v", err)
	}
	t.Cleanup(func() { ps.Close() })
	return ps
}

func TestPersonaSaveAndGetByID(t *testing.T) {
	ps := newPersonaStorage(t)

	temp := 0.3
	maxTokens := 2048
	p := &model.Persona{
		Name:         "Code Reviewer",
		Description:  "Reviews Go code",
		SystemPrompt: "You review code and point out defects.",
		Model:        "qwen2.5-coder:7b",
		Temperature:  &temp,
		MaxTokens:    &maxTokens,
		Category:     "engineering",
		FewShotExamples: []model.FewShotExample{
			{UserMessage: "review this", AssistantResponse: "looks fine"},
		},
	}
	if err := ps.Save(p); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if p.ID == "" {
		t.Fatal("Save() did not assign an id")
	}

	got, err := ps.GetByID(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "Code Reviewer" {
		t.Errorf("Name = %q, want Code Reviewer", got.Name)
	}
	if got.Temperature == nil || *got.Temperature != 0.3 {
		t.Errorf("Temperature = %v, want 0.3", got.Temperature)
	}
	if got.MaxTokens == nil || *got.MaxTokens != 2048 {
		t.Errorf("MaxTokens = %v, want 2048", got.MaxTokens)
	}
	if len(got.FewShotExamples) != 1 || got.FewShotExamples[0].UserMessage != "review this" {
		t.Errorf("FewShotExamples = %v, want the saved example", got.FewShotExamples)
	}
}

func TestPersonaNilOptionalFields(t *testing.T) {
	ps := newPersonaStorage(t)

	p := &model.Persona{Name: "Minimal", SystemPrompt: "Help."}
	if err := ps.Save(p); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := ps.GetByID(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Temperature != nil {
		t.Errorf("Temperature = %v, want nil", got.Temperature)
	}
	if got.MaxTokens != nil {
		t.Errorf("MaxTokens = %v, want nil", got.MaxTokens)
	}
	if got.FewShotExamples != nil && len(got.FewShotExamples) != 0 {
		t.Errorf("FewShotExamples = %v, want empty", got.FewShotExamples)
	}
}

func TestPersonaGetByIDNotFound(t *testing.T) {
	ps := newPersonaStorage(t)
	if _, err := ps.GetByID(context.Background(), "ghost"); err == nil {
		t.Error("GetByID() for missing persona returned nil error")
	}
}

func TestPersonaIncrementUsage(t *testing.T) {
	ps := newPersonaStorage(t)

	p := &model.Persona{Name: "Counter"}
	if err := ps.Save(p); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := ps.IncrementUsage(p.ID); err != nil {
			t.Fatalf("IncrementUsage() error = %v", err)
		}
	}

	got, err := ps.GetByID(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.UsageCount != 3 {
		t.Errorf("UsageCount = %d, want 3", got.UsageCount)
	}
}

func TestPersonaFavoritesOrderedByUsage(t *testing.T) {
	ps := newPersonaStorage(t)
	ctx := context.Background()

	rare := &model.Persona{Name: "Rare", IsFavorite: true}
	busy := &model.Persona{Name: "Busy", IsFavorite: true}
	plain := &model.Persona{Name: "Plain"}
	for _, p := range []*model.Persona{rare, busy, plain} {
		if err := ps.Save(p); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}
	for i := 0; i < 5; i++ {
		if err := ps.IncrementUsage(busy.ID); err != nil {
			t.Fatalf("IncrementUsage() error = %v", err)
		}
	}

	favs, err := ps.Favorites(ctx)
	if err != nil {
		t.Fatalf("Favorites() error = %v", err)
	}
	if len(favs) != 2 {
		t.Fatalf("len(favorites) = %d, want 2", len(favs))
	}
	if favs[0].Name != "Busy" {
		t.Errorf("favorites[0] = %q, want Busy (most used first)", favs[0].Name)
	}
}

func TestPersonaListByCategory(t *testing.T) {
	ps := newPersonaStorage(t)
	ctx := context.Background()

	for _, p := range []*model.Persona{
		{Name: "Z Engineer", Category: "engineering"},
		{Name: "A Engineer", Category: "engineering"},
		{Name: "Writer", Category: "writing"},
	} {
		if err := ps.Save(p); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	got, err := ps.ListByCategory(ctx, "engineering")
	if err != nil {
		t.Fatalf("ListByCategory() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Name != "A Engineer" {
		t.Errorf("first = %q, want A Engineer (name order)", got[0].Name)
	}
}

func TestPersonaDelete(t *testing.T) {
	ps := newPersonaStorage(t)

	p := &model.Persona{Name: "Doomed"}
	if err := ps.Save(p); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := ps.Delete(p.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := ps.GetByID(context.Background(), p.ID); err == nil {
		t.Error("GetByID() after delete returned nil error")
	}
}
