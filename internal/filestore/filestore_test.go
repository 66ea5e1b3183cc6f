package filestore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type record struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestOpenCreatesEmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "records.json")
	doc, err := Open[record](path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(data) != "[]" {
		t.Fatalf("expected empty array, got %q", data)
	}
	if err := doc.View(func(items []record) error {
		if len(items) != 0 {
			t.Fatalf("expected no items, got %d", len(items))
		}
		return nil
	}); err != nil {
		t.Fatalf("View error: %v", err)
	}
}

func TestUpdatePersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	doc, err := Open[record](path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if err := doc.Update(func(items []record) ([]record, error) {
		return append(items, record{ID: "1", Name: "Ana"}), nil
	}); err != nil {
		t.Fatalf("Update error: %v", err)
	}

	reopened, err := Open[record](path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	var got []record
	_ = reopened.View(func(items []record) error {
		got = items
		return nil
	})
	if len(got) != 1 || got[0].Name != "Ana" {
		t.Fatalf("unexpected records: %+v", got)
	}
}

func TestUpdateDiscardsOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	doc, err := Open[record](path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	boom := errors.New("boom")
	err = doc.Update(func(items []record) ([]record, error) {
		return append(items, record{ID: "1"}), boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	_ = doc.View(func(items []record) error {
		if len(items) != 0 {
			t.Fatalf("expected nothing written, got %+v", items)
		}
		return nil
	})
}
