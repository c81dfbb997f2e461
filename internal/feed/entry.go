package feed

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"
)

// NoTitle is stored when the upstream feed omits an entry title.
const NoTitle = "No title"

// SentinelDate is stored when the upstream feed provides neither a
// publication nor an update timestamp. It is part of the persisted
// contract: changing it would reshuffle the sort order of history.
func SentinelDate() time.Time {
	return time.Date(1900, 1, 1, 1, 1, 1, 0, time.UTC)
}

// EntryKey identifies a FeedEntry within a feed. It is derived from the
// entry's content, so the same entry observed on two refreshes maps to
// the same key.
type EntryKey [32]byte

// NewEntryKey derives the key for an entry: sha256 over the title bytes
// followed by the link bytes (nothing if the entry has no link). No
// separator, no length prefix. Changing this construction invalidates
// every key in the persisted collections, which is why
// TestEntryKeyPinnedFixture exists.
func NewEntryKey(title, link string) EntryKey {
	h := sha256.New()
	h.Write([]byte(title))
	h.Write([]byte(link))

	var key EntryKey
	h.Sum(key[:0])
	return key
}

// Less orders keys byte-lexicographically. Used as the final tie-breaker
// in the view comparator.
func (k EntryKey) Less(other EntryKey) bool {
	return bytes.Compare(k[:], other[:]) < 0
}

func (k EntryKey) String() string {
	return base64.StdEncoding.EncodeToString(k[:])
}

// MarshalText encodes the key as standard padded base64. Keys appear in
// JSON both as values and as object keys, which is why this is
// TextMarshaler rather than a custom JSON codec.
func (k EntryKey) MarshalText() ([]byte, error) {
	text := make([]byte, base64.StdEncoding.EncodedLen(len(k)))
	base64.StdEncoding.Encode(text, k[:])
	return text, nil
}

func (k *EntryKey) UnmarshalText(text []byte) error {
	decoded, err := base64.StdEncoding.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("invalid entry key encoding: %w", err)
	}
	if len(decoded) != len(k) {
		return fmt.Errorf("entry key must be %d bytes, got %d", len(k), len(decoded))
	}
	copy(k[:], decoded)
	return nil
}

// FeedEntry is one item of a feed as the server stores it. Entries are
// created by a merge, mutated only by an explicit mark-read, and never
// deleted.
type FeedEntry struct {
	Title string `json:"title"`
	// Link to the original content. Empty if the feed provided none.
	Link    string    `json:"link,omitempty"`
	PubDate time.Time `json:"pub_date"`
	Read    bool      `json:"read"`
}

// Key derives the entry's identity from its current title and link.
func (e FeedEntry) Key() EntryKey {
	return NewEntryKey(e.Title, e.Link)
}
