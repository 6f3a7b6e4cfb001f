package profile

import (
	"context"
	"errors"
	"testing"
)

func TestGetByEmailCaseInsensitive(t *testing.T) {
	repo := NewInMemoryRepository()
	repo.Put(&Profile{ID: "u-1", Email: "Viewer@Example.com", FullName: "Test Viewer"})

	got, err := repo.GetByEmail(context.Background(), "viewer@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if got.ID != "u-1" {
		t.Errorf("ID = %q, want u-1", got.ID)
	}

	if _, err := repo.GetByEmail(context.Background(), "stranger@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown email error = %v", err)
	}
}

func TestGetByID(t *testing.T) {
	repo := NewInMemoryRepository()
	repo.Put(&Profile{ID: "u-1", Email: "viewer@example.com"})

	got, err := repo.GetByID(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	got.Email = "mutated@example.com"

	again, _ := repo.GetByID(context.Background(), "u-1")
	if again.Email != "viewer@example.com" {
		t.Errorf("stored profile mutated through returned copy: %q", again.Email)
	}

	if _, err := repo.GetByID(context.Background(), "u-2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id error = %v", err)
	}
}
