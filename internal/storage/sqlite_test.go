package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/ruiji/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "db", "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStorage_Items(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	raw := `{"id":1535,"title":"Death Note","media_type":"tv","rating":"r","my_list_status":{}}`
	item, err := models.ParseItem([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.PutItem(ctx, item); err != nil {
		t.Fatal(err)
	}
	if err := store.PutItem(ctx, &models.Item{ID: 20, Title: "Naruto", MediaType: "tv"}); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetItem(ctx, 1535)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Death Note" || got.Rating != "r" {
		t.Errorf("got %+v", got)
	}
	if !strings.Contains(string(got.Raw), "my_list_status") {
		t.Errorf("raw payload not preserved: %s", got.Raw)
	}

	// Upsert replaces.
	if err := store.PutItem(ctx, &models.Item{ID: 20, Title: "Naruto Shippuden", MediaType: "tv"}); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetItem(ctx, 20)
	if got.Title != "Naruto Shippuden" {
		t.Errorf("expected upserted title, got %s", got.Title)
	}

	n, err := store.CountItems(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("CountItems = %d, want 2", n)
	}

	list, err := store.ListItems(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != 20 || list[1].ID != 1535 {
		t.Errorf("ListItems returned unexpected order: %v", list)
	}
	page, _ := store.ListItems(ctx, 1, 10)
	if len(page) != 1 || page[0].ID != 1535 {
		t.Errorf("offset not applied: %v", page)
	}

	if err := store.DeleteItem(ctx, 1535); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetItem(ctx, 1535); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSQLiteStorage_Imports(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	if _, err := store.GetImport(ctx, "src:missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	rec := &ImportRecord{Key: "src:abc", Path: "/data/a.json", ModTime: 1700000000123456789, Size: 42, Items: 3}
	if err := store.PutImport(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if rec.ImportedAt.IsZero() {
		t.Error("ImportedAt should be set")
	}
	got, err := store.GetImport(ctx, "src:abc")
	if err != nil {
		t.Fatal(err)
	}
	if got.Path != rec.Path || got.ModTime != rec.ModTime || got.Size != 42 || got.Items != 3 {
		t.Errorf("got %+v, want %+v", got, rec)
	}

	rec.Size = 50
	if err := store.PutImport(ctx, rec); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetImport(ctx, "src:abc")
	if got.Size != 50 {
		t.Errorf("expected replaced size 50, got %d", got.Size)
	}

	if err := store.DeleteImport(ctx, "src:abc"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetImport(ctx, "src:abc"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSQLiteStorage_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	store, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := store.PutItem(ctx, &models.Item{ID: 1, Title: "Cowboy Bebop"}); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	store, err = NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	got, err := store.GetItem(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Cowboy Bebop" {
		t.Errorf("got %s after reopen", got.Title)
	}
}
