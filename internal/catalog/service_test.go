package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func boolPtr(b bool) *bool { return &b }

func TestServiceCRUD(t *testing.T) {
	svc := NewService()
	ctx := context.Background()

	created, err := svc.Create(ctx, Input{Name: "  Beverages ", Description: "Soft drinks"})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if created.ID != 1 || created.Name != "Beverages" || !created.IsActive {
		t.Fatalf("unexpected created category: %+v", created)
	}

	updated, err := svc.Update(ctx, created.ID, Input{Name: "Drinks", IsActive: boolPtr(false)})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if updated.Name != "Drinks" || updated.IsActive || updated.Description != "" {
		t.Fatalf("unexpected updated category: %+v", updated)
	}

	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got != updated {
		t.Fatalf("expected %+v, got %+v", updated, got)
	}

	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := svc.Get(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestServiceListOrdersByID(t *testing.T) {
	svc := NewService()
	ctx := context.Background()
	for _, name := range []string{"C", "A", "B"} {
		if _, err := svc.Create(ctx, Input{Name: name}); err != nil {
			t.Fatalf("Create(%s) error: %v", name, err)
		}
	}
	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(list) != 3 || list[0].Name != "C" || list[2].Name != "B" {
		t.Fatalf("unexpected order: %+v", list)
	}
}

func TestValidation(t *testing.T) {
	svc := NewService()
	ctx := context.Background()
	cases := []Input{
		{Name: "   "},
		{Name: strings.Repeat("n", 101)},
		{Name: "ok", Description: strings.Repeat("d", 501)},
	}
	for _, in := range cases {
		if _, err := svc.Create(ctx, in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	}
	if _, err := svc.Update(ctx, 99, Input{Name: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestServicePersistsToFile(t *testing.T) {
	stateFile := filepath.Join(t.TempDir(), "categories.json")
	ctx := context.Background()

	svc, err := NewServiceWithFile(stateFile)
	if err != nil {
		t.Fatalf("NewServiceWithFile() error: %v", err)
	}
	first, err := svc.Create(ctx, Input{Name: "Snacks"})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	raw, err := os.ReadFile(stateFile)
	if err != nil {
		t.Fatalf("read state file: %v", err)
	}
	var saved []Category
	if err := json.Unmarshal(raw, &saved); err != nil {
		t.Fatalf("decode state file: %v", err)
	}
	if len(saved) != 1 || saved[0].ID != first.ID {
		t.Fatalf("expected one persisted category with id %d, got %+v", first.ID, saved)
	}

	reloaded, err := NewServiceWithFile(stateFile)
	if err != nil {
		t.Fatalf("NewServiceWithFile() reload error: %v", err)
	}
	second, err := reloaded.Create(ctx, Input{Name: "Dairy"})
	if err != nil {
		t.Fatalf("Create() after reload error: %v", err)
	}
	if second.ID != first.ID+1 {
		t.Fatalf("expected id sequence to continue after reload, got %d", second.ID)
	}
}

func TestNewServiceWithFileRequiresPath(t *testing.T) {
	if _, err := NewServiceWithFile(" "); err == nil {
		t.Fatalf("expected error for blank state file")
	}
}
