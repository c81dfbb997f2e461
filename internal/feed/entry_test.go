package feed

import (
	"encoding/json"
	"testing"
	"time"
)

// If the key derivation ever changes, the keys in the persisted
// collections no longer match the ones the application generates. This
// fixture exists to make that change impossible to miss.
func TestEntryKeyPinnedFixture(t *testing.T) {
	tests := []struct {
		name  string
		title string
		link  string
		want  string
	}{
		{
			name:  "title and link",
			title: "Hello",
			link:  "https://example.com/1",
			want:  "PcuRdK4q2rzU7dz9GIYZSfpCRDQykkWqDVI6dKDhy0E=",
		},
		{
			name:  "title without link",
			title: "Title",
			want:  "fozSBW2nOn/vts2R9OXRmdCNkFjFF7miR2sbUgMk1nQ=",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := NewEntryKey(tt.title, tt.link)
			if key.String() != tt.want {
				t.Errorf("NewEntryKey(%q, %q) = %s, want %s", tt.title, tt.link, key.String(), tt.want)
			}
		})
	}
}

func TestEntryKeyDeterministic(t *testing.T) {
	a := NewEntryKey("Hello", "https://example.com/1")
	b := NewEntryKey("Hello", "https://example.com/1")
	if a != b {
		t.Errorf("Same title and link produced different keys: %s vs %s", a, b)
	}

	differentTitle := NewEntryKey("Hello!", "https://example.com/1")
	if a == differentTitle {
		t.Error("Different titles produced the same key")
	}

	differentLink := NewEntryKey("Hello", "https://example.com/2")
	if a == differentLink {
		t.Error("Different links produced the same key")
	}
}

func TestEntryKeyRoundTrip(t *testing.T) {
	key := NewEntryKey("Round trip", "https://example.com/rt")

	text, err := key.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}

	var decoded EntryKey
	if err := decoded.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if decoded != key {
		t.Errorf("Round trip changed the key: %s -> %s", key, decoded)
	}
}

func TestEntryKeyAsJSONMapKey(t *testing.T) {
	key := NewEntryKey("Map key", "")
	entries := map[EntryKey]FeedEntry{
		key: {Title: "Map key", PubDate: SentinelDate()},
	}

	data, err := json.Marshal(entries)
	if err != nil {
		t.Fatalf("Failed to marshal entry map: %v", err)
	}

	var decoded map[EntryKey]FeedEntry
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal entry map: %v", err)
	}

	entry, ok := decoded[key]
	if !ok {
		t.Fatalf("Key %s missing after round trip", key)
	}
	if entry.Title != "Map key" {
		t.Errorf("Expected title 'Map key', got %q", entry.Title)
	}
	if !entry.PubDate.Equal(SentinelDate()) {
		t.Errorf("Expected sentinel date, got %v", entry.PubDate)
	}
}

func TestEntryKeyRejectsBadInput(t *testing.T) {
	var key EntryKey
	if err := key.UnmarshalText([]byte("not base64!!")); err == nil {
		t.Error("Expected error for invalid base64")
	}
	if err := key.UnmarshalText([]byte("c2hvcnQ=")); err == nil {
		t.Error("Expected error for a key that is not 32 bytes")
	}
}

func TestSentinelDate(t *testing.T) {
	want := time.Date(1900, 1, 1, 1, 1, 1, 0, time.UTC)
	if !SentinelDate().Equal(want) {
		t.Errorf("SentinelDate() = %v, want %v", SentinelDate(), want)
	}
}
