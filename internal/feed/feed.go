package feed

import "sort"

// UpdateResult records the outcome of the most recent refresh attempt
// for a feed. It only ever reflects the latest attempt.
type UpdateResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// UpdateOK is the result of a successful refresh.
func UpdateOK() UpdateResult {
	return UpdateResult{OK: true}
}

// UpdateFailed records why the most recent refresh did not succeed.
func UpdateFailed(msg string) UpdateResult {
	return UpdateResult{OK: false, Error: msg}
}

// FeedInfo is the user-editable metadata of a subscribed feed.
type FeedInfo struct {
	Name string `json:"name"`
	// Tags is a set; Normalize enforces the set semantics after edits.
	Tags             []string     `json:"tags"`
	LastUpdateResult UpdateResult `json:"last_update_result"`
}

// Normalize sorts the tag list and drops duplicates and empty tags, so
// that the stored info is independent of the order a client sent it in.
func (info *FeedInfo) Normalize() {
	seen := make(map[string]struct{}, len(info.Tags))
	tags := info.Tags[:0]
	for _, tag := range info.Tags {
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	info.Tags = tags
}

// HasTag reports whether the feed carries the given tag.
func (info *FeedInfo) HasTag(tag string) bool {
	for _, t := range info.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Feed is one subscribed feed: its metadata plus every entry ever
// observed on it, keyed by content-derived identity.
//
// The entry map only grows. A refresh inserts keys it has not seen
// before and leaves existing entries untouched, so per-entry state such
// as the read flag survives any number of refreshes.
type Feed struct {
	Info    FeedInfo               `json:"info"`
	Entries map[EntryKey]FeedEntry `json:"entries"`
}

// New builds a feed from its initial metadata and entries, typically the
// result of the subscription-time fetch.
func New(info FeedInfo, entries map[EntryKey]FeedEntry) *Feed {
	info.Normalize()
	if entries == nil {
		entries = make(map[EntryKey]FeedEntry)
	}
	return &Feed{Info: info, Entries: entries}
}

// Merge folds the entries of a successful refresh into the feed.
// Keys already present are skipped entirely; new keys are inserted.
// Returns the number of entries inserted.
func (f *Feed) Merge(entries map[EntryKey]FeedEntry) int {
	if f.Entries == nil {
		f.Entries = make(map[EntryKey]FeedEntry, len(entries))
	}
	inserted := 0
	for key, entry := range entries {
		if _, exists := f.Entries[key]; exists {
			continue
		}
		f.Entries[key] = entry
		inserted++
	}
	f.Info.LastUpdateResult = UpdateOK()
	return inserted
}

// MergeError records a failed refresh. The entry map is not touched.
func (f *Feed) MergeError(msg string) {
	f.Info.LastUpdateResult = UpdateFailed(msg)
}

// Len returns the number of stored entries.
func (f *Feed) Len() int {
	return len(f.Entries)
}
