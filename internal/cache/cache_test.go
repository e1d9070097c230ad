package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryGetSetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("t", 0)

	if _, err := c.Get(ctx, "missing"); !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := c.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil || got != "v" {
		t.Fatalf("get: %q %v", got, err)
	}

	ok, err := c.Exists(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("exists: %v %v", ok, err)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.Get(ctx, "k"); !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryTTLExpires(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("", 0)

	if err := c.Set(ctx, "k", "v", 10*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, err := c.Get(ctx, "k"); !IsNotFound(err) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestNamespacedIsolation(t *testing.T) {
	ctx := context.Background()
	base := NewMemory("", 0)
	a := Namespaced(base, "sess:a")
	b := Namespaced(base, "sess:b")

	if err := a.Set(ctx, "k", "va", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := b.Get(ctx, "k"); !IsNotFound(err) {
		t.Fatalf("namespaces leaked: %v", err)
	}
	got, err := a.Get(ctx, "k")
	if err != nil || got != "va" {
		t.Fatalf("get: %q %v", got, err)
	}

	// Close del namespace no debe cerrar la conexión compartida
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := b.Set(ctx, "x", "y", 0); err != nil {
		t.Fatalf("shared client closed: %v", err)
	}
}
