package sessions

import (
	"context"
	"errors"
	"testing"

	"github.com/beedev/sparky/pkg/models"
)

func TestMemoryStore_GetOrCreate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	s, err := m.GetOrCreate(ctx, "", "u1")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if s.ID == "" {
		t.Fatal("GetOrCreate() returned empty ID")
	}

	again, err := m.GetOrCreate(ctx, s.ID, "u1")
	if err != nil {
		t.Fatalf("GetOrCreate(existing) error = %v", err)
	}
	if again.ID != s.ID {
		t.Errorf("IDs differ: %s vs %s", again.ID, s.ID)
	}
	if len(m.IDs()) != 1 {
		t.Errorf("stored sessions = %d, want 1", len(m.IDs()))
	}
}

func TestMemoryStore_AppendTurn(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	s, _ := m.GetOrCreate(ctx, "", "")
	turn := models.ChatTurn{Query: "mig welder", Mode: "HYBRID", Confidence: 0.8, Packages: 3}
	if err := m.AppendTurn(ctx, s.ID, turn); err != nil {
		t.Fatalf("AppendTurn() error = %v", err)
	}

	loaded, _ := m.GetOrCreate(ctx, s.ID, "")
	if len(loaded.Turns) != 1 || loaded.Turns[0].Query != "mig welder" {
		t.Errorf("Turns = %+v, want the appended turn", loaded.Turns)
	}

	if err := m.AppendTurn(ctx, "nope", turn); !errors.Is(err, ErrNotFound) {
		t.Errorf("AppendTurn(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	s, _ := m.GetOrCreate(ctx, "", "")
	_ = m.AppendTurn(ctx, s.ID, models.ChatTurn{Query: "one"})

	loaded, _ := m.GetOrCreate(ctx, s.ID, "")
	loaded.Turns[0].Query = "mutated"

	fresh, _ := m.GetOrCreate(ctx, s.ID, "")
	if fresh.Turns[0].Query != "one" {
		t.Error("store leaked internal state to callers")
	}
}
