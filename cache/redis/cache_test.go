package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/draftpad/sessionkit"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	cache, err := New("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis cache: %v", err)
	}
	return cache, s
}

func testSnapshot(documentID string) sessionkit.DraftSnapshot {
	return sessionkit.DraftSnapshot{
		DocumentID: documentID,
		Content:    "<p>draft body</p>",
		Version:    7,
		UpdatedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNew(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	cache, err := New("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer cache.Close()

	if err := cache.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New("not-a-url"); err == nil {
		t.Error("expected an error for a malformed url")
	}
}

func TestSaveAndLoad(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	defer s.Close()

	ctx := context.Background()
	snap := testSnapshot("doc-1")

	if err := cache.Save(ctx, snap); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, ok, err := cache.Load(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !ok {
		t.Fatal("snapshot not found after save")
	}
	if got.Content != snap.Content || got.Version != snap.Version {
		t.Errorf("loaded %+v, want %+v", got, snap)
	}
	if !got.UpdatedAt.Equal(snap.UpdatedAt) {
		t.Errorf("updated_at = %s, want %s", got.UpdatedAt, snap.UpdatedAt)
	}
}

func TestSaveOverwrites(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	defer s.Close()

	ctx := context.Background()
	if err := cache.Save(ctx, testSnapshot("doc-1")); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}

	newer := testSnapshot("doc-1")
	newer.Content = "<p>later draft</p>"
	newer.Version = 8
	if err := cache.Save(ctx, newer); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	got, ok, err := cache.Load(ctx, "doc-1")
	if err != nil || !ok {
		t.Fatalf("Load failed: ok=%t err=%v", ok, err)
	}
	if got.Content != "<p>later draft</p>" || got.Version != 8 {
		t.Errorf("overwrite not applied: %+v", got)
	}
}

func TestLoadMissing(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	defer s.Close()

	_, ok, err := cache.Load(context.Background(), "never-saved")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if ok {
		t.Error("missing snapshot reported as present")
	}
}

func TestSnapshotExpires(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	defer s.Close()

	cache.WithTTL(time.Minute)
	ctx := context.Background()
	if err := cache.Save(ctx, testSnapshot("doc-1")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	s.FastForward(2 * time.Minute)

	_, ok, err := cache.Load(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if ok {
		t.Error("snapshot should have expired")
	}
}

func TestDelete(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	defer s.Close()

	ctx := context.Background()
	if err := cache.Save(ctx, testSnapshot("doc-1")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := cache.Delete(ctx, "doc-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := cache.Load(ctx, "doc-1"); ok {
		t.Error("snapshot still present after delete")
	}

	// Deleting an absent key is a no-op.
	if err := cache.Delete(ctx, "ghost"); err != nil {
		t.Errorf("Delete of missing key failed: %v", err)
	}
}

func TestDocumentsAreIsolated(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	defer s.Close()

	ctx := context.Background()
	a := testSnapshot("doc-a")
	b := testSnapshot("doc-b")
	b.Content = "<p>other doc</p>"

	if err := cache.Save(ctx, a); err != nil {
		t.Fatalf("Save a failed: %v", err)
	}
	if err := cache.Save(ctx, b); err != nil {
		t.Fatalf("Save b failed: %v", err)
	}

	got, ok, _ := cache.Load(ctx, "doc-a")
	if !ok || got.Content != a.Content {
		t.Errorf("doc-a = %+v", got)
	}
	got, ok, _ = cache.Load(ctx, "doc-b")
	if !ok || got.Content != b.Content {
		t.Errorf("doc-b = %+v", got)
	}
}
