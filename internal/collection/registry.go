package collection

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/wcubed/rss-r/internal/auth"
	"github.com/wcubed/rss-r/internal/feed"
)

var (
	// ErrFeedNotFound means the URL is not in the caller's collection.
	ErrFeedNotFound = errors.New("feed not in collection")
	// ErrEntryNotFound means the feed exists but the entry key does not.
	ErrEntryNotFound = errors.New("entry not in feed")
	// ErrFeedExists means the URL is already subscribed.
	ErrFeedExists = errors.New("feed already in collection")
)

// MergeOutcome is what a refresh produced for one URL: either the keyed
// entries of a successful fetch, or the error message to record.
type MergeOutcome struct {
	Entries map[feed.EntryKey]feed.FeedEntry
	Err     string
}

// Registry is the process-wide map of user ID to collection, guarded by
// one reader-writer lock. Views and lookups take the read lock; inserts,
// merges and metadata edits take the write lock.
//
// No registry lock is ever held across network or disk I/O. The refresh
// pipeline snapshots URLs under the read lock, fetches with no lock, and
// merges under the write lock.
type Registry struct {
	mu          sync.RWMutex
	collections map[auth.UserID]*Collection
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{collections: make(map[auth.UserID]*Collection)}
}

// collection returns the user's collection, creating it on first use.
// Callers must hold the write lock.
func (r *Registry) collection(id auth.UserID) *Collection {
	c, ok := r.collections[id]
	if !ok {
		c = NewCollection()
		r.collections[id] = c
	}
	return c
}

// Contains reports whether the user subscribes to the URL.
func (r *Registry) Contains(id auth.UserID, url string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.collections[id]
	return ok && c.Contains(url)
}

// InsertFeed subscribes the user to a new feed.
func (r *Registry) InsertFeed(id auth.UserID, url string, f *feed.Feed) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.collection(id).Insert(url, f) {
		return ErrFeedExists
	}
	return nil
}

// URLs snapshots the user's subscribed URLs.
func (r *Registry) URLs(id auth.UserID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.collections[id]
	if !ok {
		return nil
	}
	return c.URLs()
}

// AllURLs snapshots the union of every user's subscribed URLs.
func (r *Registry) AllURLs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, c := range r.collections {
		for url := range c.Feeds {
			seen[url] = struct{}{}
		}
	}

	urls := make([]string, 0, len(seen))
	for url := range seen {
		urls = append(urls, url)
	}
	return urls
}

// Infos returns the user's feed metadata, without entries.
func (r *Registry) Infos(id auth.UserID) map[string]feed.FeedInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.collections[id]
	if !ok {
		return map[string]feed.FeedInfo{}
	}
	return c.Infos()
}

// View builds the user's filtered, sorted, truncated entry projection.
func (r *Registry) View(id auth.UserID, amount int, ff FeedFilter, ef EntryFilter) ([]EntryView, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.collections[id]
	if !ok {
		return []EntryView{}, 0
	}
	return c.View(amount, ff, ef)
}

// SetEntryRead flips one entry's read flag. The entry must be in the
// caller's own collection.
func (r *Registry) SetEntryRead(id auth.UserID, url string, key feed.EntryKey, read bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.collections[id]
	if !ok {
		return ErrFeedNotFound
	}
	f, ok := c.Get(url)
	if !ok {
		return ErrFeedNotFound
	}
	entry, ok := f.Entries[key]
	if !ok {
		return ErrEntryNotFound
	}

	entry.Read = read
	f.Entries[key] = entry
	return nil
}

// SetFeedInfo replaces one feed's metadata. The most recent update
// result is owned by the refresh pipeline and survives the edit.
func (r *Registry) SetFeedInfo(id auth.UserID, url string, info feed.FeedInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.collections[id]
	if !ok {
		return ErrFeedNotFound
	}
	f, ok := c.Get(url)
	if !ok {
		return ErrFeedNotFound
	}

	info.Normalize()
	info.LastUpdateResult = f.Info.LastUpdateResult
	f.Info = info
	return nil
}

// MergeUser applies a per-user refresh batch under one write lock.
// expected is the URL snapshot the refresh fetched; a URL that was
// unsubscribed in the meantime is skipped, and a URL the batch has no
// outcome for is recorded as a failed update. Returns the number of
// entries inserted.
func (r *Registry) MergeUser(id auth.UserID, expected []string, outcomes map[string]MergeOutcome) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.collections[id]
	if !ok {
		return 0
	}
	inserted := 0
	for _, url := range expected {
		f, ok := c.Get(url)
		if !ok {
			continue
		}
		outcome, ok := outcomes[url]
		if !ok {
			f.MergeError("update requested but no result")
			continue
		}
		inserted += applyOutcome(f, outcome)
	}
	return inserted
}

// MergeAll applies a global refresh batch to every collection that owns
// one of the fetched URLs. URLs subscribed after the fetch snapshot are
// left alone. Returns the number of entries inserted across all users.
func (r *Registry) MergeAll(outcomes map[string]MergeOutcome) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	inserted := 0
	for _, c := range r.collections {
		for url, f := range c.Feeds {
			outcome, ok := outcomes[url]
			if !ok {
				continue
			}
			inserted += applyOutcome(f, outcome)
		}
	}
	return inserted
}

func applyOutcome(f *feed.Feed, outcome MergeOutcome) int {
	if outcome.Err != "" {
		f.MergeError(outcome.Err)
		return 0
	}
	return f.Merge(outcome.Entries)
}

// Hash computes a deterministic digest of the whole registry contents.
// The snapshot worker compares it against the hash of the last write to
// decide whether the registry is dirty. Iteration is sorted throughout
// so the digest does not depend on map order.
func (r *Registry) Hash() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h := fnv.New64a()

	ids := make([]auth.UserID, 0, len(r.collections))
	for id := range r.collections {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var buf [8]byte
	writeInt := func(n int64) {
		binary.BigEndian.PutUint64(buf[:], uint64(n))
		h.Write(buf[:])
	}
	writeString := func(s string) {
		writeInt(int64(len(s)))
		h.Write([]byte(s))
	}

	for _, id := range ids {
		writeInt(int64(id))
		c := r.collections[id]

		urls := c.URLs()
		sort.Strings(urls)
		for _, url := range urls {
			f := c.Feeds[url]
			writeString(url)
			writeString(f.Info.Name)
			for _, tag := range f.Info.Tags {
				writeString(tag)
			}
			writeString(f.Info.LastUpdateResult.Error)
			if f.Info.LastUpdateResult.OK {
				h.Write([]byte{1})
			} else {
				h.Write([]byte{0})
			}

			keys := make([]feed.EntryKey, 0, len(f.Entries))
			for key := range f.Entries {
				keys = append(keys, key)
			}
			sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
			for _, key := range keys {
				entry := f.Entries[key]
				h.Write(key[:])
				writeString(entry.Title)
				writeString(entry.Link)
				writeInt(entry.PubDate.Unix())
				if entry.Read {
					h.Write([]byte{1})
				} else {
					h.Write([]byte{0})
				}
			}
		}
	}

	return h.Sum64()
}

// registryDoc is the persisted shape of the registry.
type registryDoc struct {
	Collections map[auth.UserID]*Collection `json:"collections"`
}

// MarshalJSON serializes the registry under its read lock.
func (r *Registry) MarshalJSON() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return json.Marshal(registryDoc{Collections: r.collections})
}

// UnmarshalJSON replaces the registry contents with the persisted state.
// Feeds whose entry maps were absent in the document get empty maps, and
// infos are re-normalized, so older snapshots load cleanly.
func (r *Registry) UnmarshalJSON(data []byte) error {
	var doc registryDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.Collections == nil {
		doc.Collections = make(map[auth.UserID]*Collection)
	}
	for _, c := range doc.Collections {
		if c.Feeds == nil {
			c.Feeds = make(map[string]*feed.Feed)
		}
		for _, f := range c.Feeds {
			if f.Entries == nil {
				f.Entries = make(map[feed.EntryKey]feed.FeedEntry)
			}
			f.Info.Normalize()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.collections = doc.Collections
	return nil
}
