package collection

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/wcubed/rss-r/internal/auth"
	"github.com/wcubed/rss-r/internal/feed"
)

const (
	alice = auth.UserID(1)
	bob   = auth.UserID(2)
)

func seedRegistry(t *testing.T) (*Registry, feed.EntryKey) {
	t.Helper()
	r := NewRegistry()

	entry := feed.FeedEntry{
		Title:   "Hello",
		Link:    "https://example.com/1",
		PubDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	key := entry.Key()
	f := feed.New(
		feed.FeedInfo{Name: "Example", Tags: []string{"news"}, LastUpdateResult: feed.UpdateOK()},
		map[feed.EntryKey]feed.FeedEntry{key: entry},
	)
	if err := r.InsertFeed(alice, "https://example.com/rss", f); err != nil {
		t.Fatalf("Failed to insert feed: %v", err)
	}
	return r, key
}

func TestRegistryInsertAndLookup(t *testing.T) {
	r, _ := seedRegistry(t)

	if !r.Contains(alice, "https://example.com/rss") {
		t.Error("Expected alice to contain the feed")
	}
	if r.Contains(bob, "https://example.com/rss") {
		t.Error("Expected bob's collection to be empty")
	}

	err := r.InsertFeed(alice, "https://example.com/rss", feed.New(feed.FeedInfo{}, nil))
	if !errors.Is(err, ErrFeedExists) {
		t.Errorf("Expected ErrFeedExists, got %v", err)
	}
}

func TestRegistrySetEntryRead(t *testing.T) {
	r, key := seedRegistry(t)

	if err := r.SetEntryRead(alice, "https://example.com/rss", key, true); err != nil {
		t.Fatalf("SetEntryRead failed: %v", err)
	}
	views, _ := r.View(alice, 10, FeedFilter{Kind: FilterAll}, EntryAll)
	if len(views) != 1 || !views[0].Read {
		t.Error("Read flag not visible in the view")
	}

	// The entry belongs to alice, so bob cannot touch it.
	err := r.SetEntryRead(bob, "https://example.com/rss", key, true)
	if !errors.Is(err, ErrFeedNotFound) {
		t.Errorf("Expected ErrFeedNotFound for another user, got %v", err)
	}

	err = r.SetEntryRead(alice, "https://example.com/rss", feed.NewEntryKey("other", ""), true)
	if !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("Expected ErrEntryNotFound for an unknown key, got %v", err)
	}
}

func TestRegistrySetFeedInfo(t *testing.T) {
	r, _ := seedRegistry(t)

	err := r.SetFeedInfo(alice, "https://example.com/rss", feed.FeedInfo{
		Name: "Renamed",
		Tags: []string{"tech", "tech", "news"},
		// Clients cannot forge the update result; the stored one wins.
		LastUpdateResult: feed.UpdateFailed("forged"),
	})
	if err != nil {
		t.Fatalf("SetFeedInfo failed: %v", err)
	}

	infos := r.Infos(alice)
	info := infos["https://example.com/rss"]
	if info.Name != "Renamed" {
		t.Errorf("Expected renamed feed, got %q", info.Name)
	}
	if len(info.Tags) != 2 {
		t.Errorf("Expected deduplicated tags, got %v", info.Tags)
	}
	if !info.LastUpdateResult.OK {
		t.Error("SetFeedInfo overwrote the last update result")
	}

	err = r.SetFeedInfo(bob, "https://example.com/rss", feed.FeedInfo{Name: "X"})
	if !errors.Is(err, ErrFeedNotFound) {
		t.Errorf("Expected ErrFeedNotFound for another user, got %v", err)
	}
}

func TestMergeUser(t *testing.T) {
	t.Run("MissingOutcomeBecomesError", func(t *testing.T) {
		r, _ := seedRegistry(t)

		r.MergeUser(alice, []string{"https://example.com/rss"}, map[string]MergeOutcome{})

		info := r.Infos(alice)["https://example.com/rss"]
		if info.LastUpdateResult.OK {
			t.Error("Expected an error result for a URL the batch had no outcome for")
		}
		if info.LastUpdateResult.Error != "update requested but no result" {
			t.Errorf("Unexpected error message %q", info.LastUpdateResult.Error)
		}
	})

	t.Run("UnsubscribedURLSkipped", func(t *testing.T) {
		r, _ := seedRegistry(t)

		// A URL snapshotted before a concurrent unsubscribe.
		r.MergeUser(alice, []string{"https://gone.example/rss"}, map[string]MergeOutcome{
			"https://gone.example/rss": {Entries: map[feed.EntryKey]feed.FeedEntry{}},
		})

		if r.Contains(alice, "https://gone.example/rss") {
			t.Error("Merge resurrected a feed that is not subscribed")
		}
	})

	t.Run("InsertsAndPreservesRead", func(t *testing.T) {
		r, key := seedRegistry(t)
		if err := r.SetEntryRead(alice, "https://example.com/rss", key, true); err != nil {
			t.Fatalf("SetEntryRead failed: %v", err)
		}

		second := feed.FeedEntry{
			Title:   "Second",
			Link:    "https://example.com/2",
			PubDate: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		}
		existing := feed.FeedEntry{
			Title:   "Hello",
			Link:    "https://example.com/1",
			PubDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		}
		inserted := r.MergeUser(alice, []string{"https://example.com/rss"}, map[string]MergeOutcome{
			"https://example.com/rss": {Entries: map[feed.EntryKey]feed.FeedEntry{
				existing.Key(): existing,
				second.Key():   second,
			}},
		})

		if inserted != 1 {
			t.Errorf("Expected 1 inserted entry, got %d", inserted)
		}
		views, total := r.View(alice, 10, FeedFilter{Kind: FilterAll}, EntryAll)
		if total != 2 {
			t.Fatalf("Expected 2 entries, got %d", total)
		}
		// Newest first, and the re-observed entry stays read.
		if views[0].Title != "Second" {
			t.Errorf("Expected 'Second' first, got %q", views[0].Title)
		}
		if !views[1].Read {
			t.Error("Refresh reset the read flag")
		}
	})
}

func TestMergeAll(t *testing.T) {
	r, _ := seedRegistry(t)

	// Bob subscribes to the same URL plus one of his own.
	shared := feed.New(feed.FeedInfo{Name: "Example"}, nil)
	if err := r.InsertFeed(bob, "https://example.com/rss", shared); err != nil {
		t.Fatalf("Failed to insert shared feed: %v", err)
	}
	own := feed.New(feed.FeedInfo{Name: "Bob's"}, nil)
	if err := r.InsertFeed(bob, "https://bob.example/rss", own); err != nil {
		t.Fatalf("Failed to insert bob's feed: %v", err)
	}

	entry := feed.FeedEntry{Title: "Shared", PubDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)}
	r.MergeAll(map[string]MergeOutcome{
		"https://example.com/rss": {Entries: map[feed.EntryKey]feed.FeedEntry{entry.Key(): entry}},
	})

	// Both subscribers of the fetched URL got the entry.
	for _, id := range []auth.UserID{alice, bob} {
		views, _ := r.View(id, 10, FeedFilter{Kind: FilterSingle, URL: "https://example.com/rss"}, EntryAll)
		found := false
		for _, v := range views {
			if v.Title == "Shared" {
				found = true
			}
		}
		if !found {
			t.Errorf("User %d did not receive the merged entry", id)
		}
	}

	// The unfetched URL was left alone (raced subscribe).
	info := r.Infos(bob)["https://bob.example/rss"]
	if !info.LastUpdateResult.OK && info.LastUpdateResult.Error != "" {
		t.Errorf("Unfetched feed was touched: %+v", info.LastUpdateResult)
	}
}

func TestRegistryIsolation(t *testing.T) {
	r, _ := seedRegistry(t)

	bobEntry := feed.FeedEntry{Title: "Bob's story", PubDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	bobFeed := feed.New(feed.FeedInfo{Name: "Bob's"}, map[feed.EntryKey]feed.FeedEntry{bobEntry.Key(): bobEntry})
	if err := r.InsertFeed(bob, "https://bob.example/rss", bobFeed); err != nil {
		t.Fatalf("Failed to insert bob's feed: %v", err)
	}

	views, _ := r.View(alice, 10, FeedFilter{Kind: FilterAll}, EntryAll)
	for _, v := range views {
		if v.FeedURL == "https://bob.example/rss" {
			t.Error("Alice's view contains bob's entries")
		}
	}
}

func TestRegistryHash(t *testing.T) {
	r, key := seedRegistry(t)

	base := r.Hash()
	if base != r.Hash() {
		t.Error("Hash is not stable without mutations")
	}

	if err := r.SetEntryRead(alice, "https://example.com/rss", key, true); err != nil {
		t.Fatalf("SetEntryRead failed: %v", err)
	}
	if r.Hash() == base {
		t.Error("Hash did not change after a mutation")
	}
}

func TestRegistryJSONRoundTrip(t *testing.T) {
	r, key := seedRegistry(t)
	if err := r.SetEntryRead(alice, "https://example.com/rss", key, true); err != nil {
		t.Fatalf("SetEntryRead failed: %v", err)
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Failed to marshal registry: %v", err)
	}

	loaded := NewRegistry()
	if err := json.Unmarshal(data, loaded); err != nil {
		t.Fatalf("Failed to unmarshal registry: %v", err)
	}

	if loaded.Hash() != r.Hash() {
		t.Error("Round trip changed the registry content hash")
	}
	views, total := loaded.View(alice, 10, FeedFilter{Kind: FilterAll}, EntryAll)
	if total != 1 || len(views) != 1 {
		t.Fatalf("Expected 1 entry after round trip, got %d", total)
	}
	if !views[0].Read {
		t.Error("Read flag lost in round trip")
	}
	if views[0].Key != key {
		t.Error("Entry key changed in round trip")
	}
}
