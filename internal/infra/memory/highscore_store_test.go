package memory

import (
	"context"
	"testing"
	"time"
)

func TestHighScoreStoreNeverDecreases(t *testing.T) {
	ctx := context.Background()
	store := NewHighScoreStore()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := store.UpsertIfHigher(ctx, "sam", 30, t0); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.UpsertIfHigher(ctx, "sam", 20, t0.Add(time.Minute)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	top, err := store.Top(ctx, 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 1 || top[0].BestScore != 30 || !top[0].UpdatedAt.Equal(t0) {
		t.Fatalf("expected sam to stay at 30@t0, got %+v", top)
	}

	if err := store.UpsertIfHigher(ctx, "sam", 40, t0.Add(2*time.Minute)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	top, _ = store.Top(ctx, 10)
	if top[0].BestScore != 40 {
		t.Fatalf("expected 40 after improvement, got %+v", top[0])
	}
}

func TestHighScoreStoreTieBreaksByEarlierUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewHighScoreStore()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Second)

	_ = store.UpsertIfHigher(ctx, "alice", 50, t1)
	_ = store.UpsertIfHigher(ctx, "bob", 50, t0)
	_ = store.UpsertIfHigher(ctx, "carol", 10, t0)

	top, err := store.Top(ctx, 2)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(top))
	}
	if top[0].Username != "bob" || top[1].Username != "alice" {
		t.Fatalf("expected bob before alice on tie, got %+v", top)
	}
}
