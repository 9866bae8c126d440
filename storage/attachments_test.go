package storage

import (
	"context"
	"testing"
)

func newAttachmentStorage(t *testing.T) *AttachmentStorage {
	t.Helper()
	as, err := NewAttachmentStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewAttachmentStorage() error = %v", err)
	}
	t.Cleanup(func() { as.Close() })
	return as
}

func TestAttachmentSaveAndGetByID(t *testing.T) {
	as := newAttachmentStorage(t)

	id, err := as.Save("report.pdf", "application/pdf", "extracted report text")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if id == "" {
		t.Fatal("Save() returned an empty id")
	}

	att, err := as.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if att.OriginalName != "report.pdf" {
		t.Errorf("OriginalName = %q, want report.pdf", att.OriginalName)
	}
	if att.ExtractedText != "extracted report text" {
		t.Errorf("ExtractedText = %q, want the saved text", att.ExtractedText)
	}
}

func TestAttachmentGetByIDNotFound(t *testing.T) {
	as := newAttachmentStorage(t)
	if _, err := as.GetByID(context.Background(), "ghost"); err == nil {
		t.Error("GetByID() for missing attachment returned nil error")
	}
}

func TestAttachmentDelete(t *testing.T) {
	as := newAttachmentStorage(t)

	id, err := as.Save("doomed.txt", "text/plain", "bye")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := as.Delete(id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := as.GetByID(context.Background(), id); err == nil {
		t.Error("GetByID() after delete returned nil error")
	}
}
