package scancache_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"micromanagerr/internal/classify"
	"micromanagerr/internal/evidence"
	"micromanagerr/internal/scancache"
)

func openStore(t *testing.T) *scancache.Store {
	t.Helper()
	store, err := scancache.Open(context.Background(), filepath.Join(t.TempDir(), "cache", "scans.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func sampleClassification() classify.Classification {
	runtime := 9780.0
	return classify.Classification{
		HDR: classify.HDR{Kind: classify.HDR10Plus, Sources: []evidence.Source{evidence.SourceContainer}},
		DolbyVision: &classify.DolbyVision{
			Profile:      8,
			HasFallback:  true,
			RPUConfirmed: true,
			Sources:      []evidence.Source{evidence.SourceContainer},
		},
		RuntimeSeconds:  &runtime,
		EvidenceSources: []evidence.Source{evidence.SourceContainer},
	}
}

func TestSaveAndLookupRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	path := writeFile(t, "film.mkv", "payload")
	reference := 8580.0

	key, err := scancache.KeyForFile(path, "Film Extended", &reference, "presence/300")
	if err != nil {
		t.Fatalf("KeyForFile: %v", err)
	}
	if _, ok, err := store.Lookup(ctx, key); err != nil || ok {
		t.Fatalf("expected miss on empty cache, ok=%v err=%v", ok, err)
	}

	want := sampleClassification()
	if err := store.Save(ctx, key, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, ok, err := store.Lookup(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("classification mismatch (-want +got):\n%s", diff)
	}
}

func TestLookupMissesWhenInputsChange(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	path := writeFile(t, "film.mkv", "payload")

	key, err := scancache.KeyForFile(path, "", nil, "presence/300")
	if err != nil {
		t.Fatalf("KeyForFile: %v", err)
	}
	if err := store.Save(ctx, key, sampleClassification()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reference := 100.0
	variants := map[string]scancache.Key{
		"hint":      withHint(key, "Director's Cut"),
		"reference": withReference(key, &reference),
		"options":   withOptions(key, "unanimous/300"),
		"mtime":     withModTime(key, key.ModTime.Add(time.Second)),
	}
	for name, variant := range variants {
		if _, ok, err := store.Lookup(ctx, variant); err != nil || ok {
			t.Fatalf("%s: expected miss, ok=%v err=%v", name, ok, err)
		}
	}
}

func TestSaveDropsEntriesForReplacedFile(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	path := writeFile(t, "film.mkv", "first")

	old, err := scancache.KeyForFile(path, "", nil, "")
	if err != nil {
		t.Fatalf("KeyForFile: %v", err)
	}
	if err := store.Save(ctx, old, sampleClassification()); err != nil {
		t.Fatalf("Save old: %v", err)
	}
	if err := store.Save(ctx, withHint(old, "Extended"), sampleClassification()); err != nil {
		t.Fatalf("Save old hint: %v", err)
	}

	if err := os.WriteFile(path, []byte("second, longer payload"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	replaced, err := scancache.KeyForFile(path, "", nil, "")
	if err != nil {
		t.Fatalf("KeyForFile: %v", err)
	}
	if err := store.Save(ctx, replaced, classify.Classification{HDR: classify.HDR{Kind: classify.HDRNone}}); err != nil {
		t.Fatalf("Save replaced: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if diff := cmp.Diff(scancache.Stats{Entries: 1, Files: 1}, stats); diff != "" {
		t.Fatalf("stats mismatch (-want +got):\n%s", diff)
	}
	if _, ok, _ := store.Lookup(ctx, old); ok {
		t.Fatal("stale entry should be gone")
	}
}

func TestClearAndReopen(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "scans.db")
	ctx := context.Background()
	path := writeFile(t, "film.mkv", "payload")

	store, err := scancache.Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	key, err := scancache.KeyForFile(path, "", nil, "")
	if err != nil {
		t.Fatalf("KeyForFile: %v", err)
	}
	if err := store.Save(ctx, key, sampleClassification()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := scancache.Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, ok, err := reopened.Lookup(ctx, key); err != nil || !ok {
		t.Fatalf("expected entry to survive reopen, ok=%v err=%v", ok, err)
	}

	removed, err := reopened.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, ok, _ := reopened.Lookup(ctx, key); ok {
		t.Fatal("expected miss after clear")
	}
}

func TestKeyForFileRejectsDirectories(t *testing.T) {
	if _, err := scancache.KeyForFile(t.TempDir(), "", nil, ""); err == nil {
		t.Fatal("expected error for directory")
	}
	if _, err := scancache.KeyForFile(filepath.Join(t.TempDir(), "missing.mkv"), "", nil, ""); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func withHint(k scancache.Key, hint string) scancache.Key { k.FilenameHint = hint; return k }

func withReference(k scancache.Key, ref *float64) scancache.Key { k.ReferenceRuntime = ref; return k }

func withOptions(k scancache.Key, opts string) scancache.Key { k.Options = opts; return k }

func withModTime(k scancache.Key, ts time.Time) scancache.Key { k.ModTime = ts; return k }
