package services

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wcubed/rss-r/internal/collection"
	"github.com/wcubed/rss-r/internal/feed"
	"github.com/wcubed/rss-r/internal/fetch"
	"github.com/wcubed/rss-r/internal/persist"
)

func testWorkers(t *testing.T, registry *collection.Registry, snapshotInterval time.Duration) (*Workers, string) {
	t.Helper()
	dir := t.TempDir()
	store := persist.NewStore(dir)
	refresh := NewRefreshService(registry, fetch.NewWithClient(http.DefaultClient), nil)
	w := NewWorkers(registry, refresh, store, nil, snapshotInterval, time.Hour)
	return w, filepath.Join(dir, persist.CollectionsFile)
}

func snapshotExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestSnapshotIfDirty(t *testing.T) {
	registry := collection.NewRegistry()
	subscribe(t, registry, alice, "https://example.com/rss", "Example")
	w, path := testWorkers(t, registry, time.Hour)

	// Nothing has been written yet, so the first check always writes.
	w.SnapshotIfDirty()
	if !snapshotExists(path) {
		t.Fatal("First snapshot check did not write")
	}

	// Unchanged content must not be rewritten.
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	w.SnapshotIfDirty()
	if snapshotExists(path) {
		t.Error("Clean registry was snapshotted again")
	}

	// A mutation makes the registry dirty again.
	entry := feed.FeedEntry{Title: "Hello", PubDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	registry.MergeUser(alice, []string{"https://example.com/rss"}, map[string]collection.MergeOutcome{
		"https://example.com/rss": {Entries: map[feed.EntryKey]feed.FeedEntry{entry.Key(): entry}},
	})
	w.SnapshotIfDirty()
	if !snapshotExists(path) {
		t.Error("Dirty registry was not snapshotted")
	}
}

func TestSnapshotNowIgnoresDirtyCheck(t *testing.T) {
	registry := collection.NewRegistry()
	subscribe(t, registry, alice, "https://example.com/rss", "Example")
	w, path := testWorkers(t, registry, time.Hour)

	w.SnapshotIfDirty()
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	// Shutdown writes even when the content hash has not moved.
	w.SnapshotNow()
	if !snapshotExists(path) {
		t.Error("Unconditional snapshot did not write")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	registry := collection.NewRegistry()
	subscribe(t, registry, alice, "https://example.com/rss", "Example")
	entry := feed.FeedEntry{Title: "Hello", PubDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	registry.MergeUser(alice, []string{"https://example.com/rss"}, map[string]collection.MergeOutcome{
		"https://example.com/rss": {Entries: map[feed.EntryKey]feed.FeedEntry{entry.Key(): entry}},
	})
	if err := registry.SetEntryRead(alice, "https://example.com/rss", entry.Key(), true); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	store := persist.NewStore(dir)
	refresh := NewRefreshService(registry, fetch.NewWithClient(http.DefaultClient), nil)
	w := NewWorkers(registry, refresh, store, nil, time.Hour, time.Hour)
	w.SnapshotNow()

	loaded := collection.NewRegistry()
	if err := store.Load(persist.CollectionsFile, loaded); err != nil {
		t.Fatalf("Failed to load snapshot: %v", err)
	}
	if loaded.Hash() != registry.Hash() {
		t.Error("Snapshot round trip changed the registry content hash")
	}
	views, _ := loaded.View(alice, 10, collection.FeedFilter{Kind: collection.FilterAll}, collection.EntryAll)
	if len(views) != 1 || !views[0].Read {
		t.Error("Read state lost across the snapshot")
	}
}

func TestWorkersStartStop(t *testing.T) {
	// An empty registry keeps the refresh worker off the network; the
	// snapshot worker still writes its first tick.
	registry := collection.NewRegistry()
	w, path := testWorkers(t, registry, 10*time.Millisecond)

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := w.Start(); err == nil {
		t.Error("Second start did not fail")
	}

	deadline := time.Now().Add(2 * time.Second)
	for !snapshotExists(path) {
		if time.Now().After(deadline) {
			t.Fatal("Snapshot worker never wrote")
		}
		time.Sleep(5 * time.Millisecond)
	}

	w.Stop()
	// Stopping twice is harmless.
	w.Stop()
}
