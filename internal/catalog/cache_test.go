package catalog

import (
	"testing"

	"github.com/hyperjump/ruiji/internal/models"
)

func TestDetailCache_GetSet(t *testing.T) {
	c := NewDetailCache(2)
	if v, ok := c.Get(1); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set(&models.Item{ID: 1, Title: "a"})
	v, ok := c.Get(1)
	if !ok || v.Title != "a" {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set(&models.Item{ID: 2, Title: "b"})
	c.Get(1)                               // 1 is now most recent
	c.Set(&models.Item{ID: 3, Title: "c"}) // evicts 2
	if _, ok := c.Get(2); ok {
		t.Error("expected 2 to be evicted")
	}
	if _, ok := c.Get(1); !ok {
		t.Error("expected 1 to remain")
	}
	c.Set(&models.Item{ID: 3, Title: "c2"})
	if v, _ := c.Get(3); v.Title != "c2" {
		t.Errorf("expected update, got %s", v.Title)
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestDetailCache_Disabled(t *testing.T) {
	c := NewDetailCache(0)
	c.Set(&models.Item{ID: 1})
	c.Set(nil)
	if _, ok := c.Get(1); ok {
		t.Error("disabled cache should never hit")
	}
}

func TestDetailCache_Delete(t *testing.T) {
	c := NewDetailCache(4)
	c.Set(&models.Item{ID: 1, Title: "a"})
	c.Set(&models.Item{ID: 2, Title: "b"})
	c.Delete(1)
	c.Delete(99)
	if _, ok := c.Get(1); ok {
		t.Error("expected 1 to be deleted")
	}
	if _, ok := c.Get(2); !ok {
		t.Error("expected 2 to remain")
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}
