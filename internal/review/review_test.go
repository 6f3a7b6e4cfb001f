package review

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInMemoryRepositoryListByMovie(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	older := time.Now().Add(-time.Hour)
	newer := time.Now()
	repo.Insert(ctx, &Review{MovieID: "m-1", UserID: "u-1", Rating: 4, Content: "Solid.", CreatedAt: &older})
	repo.Insert(ctx, &Review{MovieID: "m-1", UserID: "u-2", Rating: 5, Content: "Great.", CreatedAt: &newer})
	repo.Insert(ctx, &Review{MovieID: "m-2", UserID: "u-1", Rating: 2})

	out, err := repo.ListByMovie(ctx, "m-1")
	if err != nil {
		t.Fatalf("ListByMovie: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d reviews, want 2", len(out))
	}
	if out[0].Rating != 5 || out[1].Rating != 4 {
		t.Errorf("order = %d, %d; want newest first", out[0].Rating, out[1].Rating)
	}

	if none, _ := repo.ListByMovie(ctx, "m-3"); len(none) != 0 {
		t.Errorf("unknown movie reviews = %+v", none)
	}
}

func TestInMemoryRepositoryDelete(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	rev := &Review{MovieID: "m-1", UserID: "u-1", Rating: 3}
	if err := repo.Insert(ctx, rev); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if rev.ID == "" {
		t.Fatal("Insert did not assign an ID")
	}

	if err := repo.Delete(ctx, rev.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, rev.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID after delete error = %v", err)
	}
	if err := repo.Delete(ctx, rev.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete error = %v", err)
	}
}
