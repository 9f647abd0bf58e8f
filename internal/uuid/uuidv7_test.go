package uuid

import (
	"testing"

	googleuuid "github.com/google/uuid"
)

func TestNew(t *testing.T) {
	id := New()
	parsed, err := googleuuid.Parse(id)
	if err != nil {
		t.Fatalf("expected valid uuid, got %q: %v", id, err)
	}
	if parsed.Version() != 7 {
		t.Errorf("expected version 7, got %d", parsed.Version())
	}
}

func TestNewIsTimeOrdered(t *testing.T) {
	prev := New()
	for i := 0; i < 100; i++ {
		next := New()
		if next <= prev {
			t.Fatalf("expected %s to sort after %s", next, prev)
		}
		prev = next
	}
}

func TestParse(t *testing.T) {
	t.Run("canonicalizes", func(t *testing.T) {
		got, err := Parse("0190A0B1-2C3D-7E4F-8A5B-6C7D8E9F0A1B")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "0190a0b1-2c3d-7e4f-8a5b-6c7d8e9f0a1b" {
			t.Errorf("expected lower-case form, got %s", got)
		}
	})

	t.Run("rejects_garbage", func(t *testing.T) {
		if _, err := Parse("not-a-uuid"); err == nil {
			t.Error("expected error")
		}
		if IsValid("inc-legacy-0") {
			t.Error("legacy category ids are not uuids")
		}
	})
}
