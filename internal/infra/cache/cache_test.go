package cache

import (
	"testing"
	"time"
)

func newTestCache(ttl time.Duration) (*InMemory[string], *time.Time) {
	c := New[string](ttl)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestCache_SetAndGet(t *testing.T) {
	c, _ := newTestCache(5 * time.Minute)
	defer c.Close()

	c.Set("weekly groceries", "Food & Groceries")
	val, ok := c.Get("weekly groceries")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != "Food & Groceries" {
		t.Errorf("expected 'Food & Groceries', got '%s'", val)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c, _ := newTestCache(5 * time.Minute)
	defer c.Close()

	if _, ok := c.Get("nonexistent"); ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCache_Expiration(t *testing.T) {
	c, now := newTestCache(time.Minute)
	defer c.Close()

	c.Set("rent", "Housing & Rent")
	*now = now.Add(2 * time.Minute)

	if _, ok := c.Get("rent"); ok {
		t.Fatal("expected cache entry to be expired")
	}

	c.sweep()
	if n := len(c.items); n != 0 {
		t.Errorf("expected sweep to drop expired entry, len=%d", n)
	}
}

func TestCache_Delete(t *testing.T) {
	c, _ := newTestCache(5 * time.Minute)
	defer c.Close()

	c.Set("a", "1")
	c.Set("b", "2")
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected key to be deleted")
	}
	if v, ok := c.Get("b"); !ok || v != "2" {
		t.Fatalf("expected b to survive, got %q %v", v, ok)
	}
}

func TestCache_CloseTwice(t *testing.T) {
	c := New[int](time.Minute)
	c.Close()
	c.Close()
}
