package gamedb

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "gamedb.sqlite"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenEmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestLookupMissingHash(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	gameID, ok, err := store.LookupHash(ctx, "abc123")
	if err != nil {
		t.Fatalf("LookupHash failed: %v", err)
	}
	if ok {
		t.Error("uncached hash should report not found")
	}
	if gameID != 0 {
		t.Errorf("gameID = %d, want 0", gameID)
	}
}

func TestSaveAndLookupResolution(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.SaveResolution(ctx, "DEF456", 14402, 4); err != nil {
		t.Fatalf("SaveResolution failed: %v", err)
	}

	// Lookup is case-insensitive; hashes are stored lowercased.
	gameID, ok, err := store.LookupHash(ctx, "def456")
	if err != nil {
		t.Fatalf("LookupHash failed: %v", err)
	}
	if !ok {
		t.Fatal("saved hash should be found")
	}
	if gameID != 14402 {
		t.Errorf("gameID = %d, want 14402", gameID)
	}
}

func TestSaveResolutionNotRecognized(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.SaveResolution(ctx, "abc123", 0, 4); err != nil {
		t.Fatalf("SaveResolution failed: %v", err)
	}

	gameID, ok, err := store.LookupHash(ctx, "abc123")
	if err != nil {
		t.Fatalf("LookupHash failed: %v", err)
	}
	if !ok {
		t.Fatal("cached not-recognized answer should be found")
	}
	if gameID != 0 {
		t.Errorf("gameID = %d, want 0 for unrecognized hash", gameID)
	}
}

func TestSaveResolutionOverwrites(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.SaveResolution(ctx, "abc", 1, 4); err != nil {
		t.Fatalf("SaveResolution failed: %v", err)
	}
	if err := store.SaveResolution(ctx, "abc", 2, 4); err != nil {
		t.Fatalf("SaveResolution overwrite failed: %v", err)
	}

	gameID, _, err := store.LookupHash(ctx, "abc")
	if err != nil {
		t.Fatalf("LookupHash failed: %v", err)
	}
	if gameID != 2 {
		t.Errorf("gameID = %d, want 2", gameID)
	}
}

func TestReplaceHashLibrary(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := map[string]uint32{"aaa": 1, "bbb": 2}
	if err := store.ReplaceHashLibrary(ctx, 4, first); err != nil {
		t.Fatalf("ReplaceHashLibrary failed: %v", err)
	}

	count, err := store.CountHashes(ctx, 4)
	if err != nil {
		t.Fatalf("CountHashes failed: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	// Re-sync replaces library rows wholesale.
	second := map[string]uint32{"ccc": 3}
	if err := store.ReplaceHashLibrary(ctx, 4, second); err != nil {
		t.Fatalf("ReplaceHashLibrary re-sync failed: %v", err)
	}

	if _, ok, _ := store.LookupHash(ctx, "aaa"); ok {
		t.Error("old library row should be gone after re-sync")
	}
	gameID, ok, err := store.LookupHash(ctx, "ccc")
	if err != nil || !ok {
		t.Fatalf("new library row missing: ok=%v err=%v", ok, err)
	}
	if gameID != 3 {
		t.Errorf("gameID = %d, want 3", gameID)
	}
}

func TestReplaceHashLibraryKeepsResolvedRows(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.SaveResolution(ctx, "resolved1", 42, 4); err != nil {
		t.Fatalf("SaveResolution failed: %v", err)
	}
	if err := store.ReplaceHashLibrary(ctx, 4, map[string]uint32{"lib1": 1}); err != nil {
		t.Fatalf("ReplaceHashLibrary failed: %v", err)
	}

	gameID, ok, err := store.LookupHash(ctx, "resolved1")
	if err != nil || !ok {
		t.Fatalf("resolved row should survive library sync: ok=%v err=%v", ok, err)
	}
	if gameID != 42 {
		t.Errorf("gameID = %d, want 42", gameID)
	}
}

func TestCountHashesAllConsoles(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.ReplaceHashLibrary(ctx, 4, map[string]uint32{"a": 1}); err != nil {
		t.Fatalf("ReplaceHashLibrary failed: %v", err)
	}
	if err := store.ReplaceHashLibrary(ctx, 6, map[string]uint32{"b": 2}); err != nil {
		t.Fatalf("ReplaceHashLibrary failed: %v", err)
	}

	count, err := store.CountHashes(ctx, 0)
	if err != nil {
		t.Fatalf("CountHashes failed: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}
