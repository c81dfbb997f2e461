// Package collection holds the per-user feed collections and the
// process-wide registry that guards them.
package collection

import (
	"sort"
	"time"

	"github.com/wcubed/rss-r/internal/feed"
)

// FilterKind selects which feeds of a collection a view covers.
type FilterKind string

const (
	FilterAll    FilterKind = "all"
	FilterTag    FilterKind = "tag"
	FilterSingle FilterKind = "single"
)

// FeedFilter narrows a view to a subset of the collection's feeds.
type FeedFilter struct {
	Kind FilterKind
	// Tag is consulted when Kind is FilterTag.
	Tag string
	// URL is consulted when Kind is FilterSingle.
	URL string
}

func (ff FeedFilter) matches(url string, f *feed.Feed) bool {
	switch ff.Kind {
	case FilterTag:
		return f.Info.HasTag(ff.Tag)
	case FilterSingle:
		return url == ff.URL
	default:
		return true
	}
}

// EntryFilter narrows a view to a subset of each feed's entries.
type EntryFilter string

const (
	EntryAll    EntryFilter = "all"
	EntryUnread EntryFilter = "unread"
)

func (ef EntryFilter) matches(e feed.FeedEntry) bool {
	return ef != EntryUnread || !e.Read
}

// EntryView is the external projection of one entry: what a client needs
// to display it and to address it in follow-up requests.
type EntryView struct {
	Key     feed.EntryKey `json:"key"`
	FeedURL string        `json:"feed_url"`
	Title   string        `json:"title"`
	Link    string        `json:"link,omitempty"`
	PubDate time.Time     `json:"pub_date"`
	Read    bool          `json:"read"`
}

// entryViewLess is the one comparator for view ordering:
// newest first, then title, then link (absent before present), then
// unread before read, then key bytes. Total, so view output is
// deterministic for identical state.
func entryViewLess(a, b EntryView) bool {
	if !a.PubDate.Equal(b.PubDate) {
		return a.PubDate.After(b.PubDate)
	}
	if a.Title != b.Title {
		return a.Title < b.Title
	}
	if a.Link != b.Link {
		return a.Link < b.Link
	}
	if a.Read != b.Read {
		return !a.Read
	}
	return a.Key.Less(b.Key)
}

// Collection is the set of feeds one user subscribes to, keyed by feed
// URL. The URL and the feed are 1:1; a feed belongs to exactly one
// collection.
//
// Collection itself is not goroutine safe; the Registry serializes all
// access.
type Collection struct {
	Feeds map[string]*feed.Feed `json:"feeds"`
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{Feeds: make(map[string]*feed.Feed)}
}

// Contains reports whether the URL is subscribed.
func (c *Collection) Contains(url string) bool {
	_, ok := c.Feeds[url]
	return ok
}

// Get returns the feed for the URL, if subscribed.
func (c *Collection) Get(url string) (*feed.Feed, bool) {
	f, ok := c.Feeds[url]
	return f, ok
}

// Insert subscribes the collection to a feed. The caller must have
// checked Contains first; inserting over an existing URL is refused so a
// raced double-subscribe cannot drop entries.
func (c *Collection) Insert(url string, f *feed.Feed) bool {
	if c.Feeds == nil {
		c.Feeds = make(map[string]*feed.Feed)
	}
	if _, exists := c.Feeds[url]; exists {
		return false
	}
	c.Feeds[url] = f
	return true
}

// URLs returns the subscribed feed URLs in unspecified order.
func (c *Collection) URLs() []string {
	urls := make([]string, 0, len(c.Feeds))
	for url := range c.Feeds {
		urls = append(urls, url)
	}
	return urls
}

// Infos returns the metadata of every subscribed feed, without entries.
func (c *Collection) Infos() map[string]feed.FeedInfo {
	infos := make(map[string]feed.FeedInfo, len(c.Feeds))
	for url, f := range c.Feeds {
		infos[url] = f.Info
	}
	return infos
}

// View builds the filtered, sorted, truncated entry projection:
// filter feeds, filter entries, flatten, sort, truncate. The returned
// total is the number of matching entries before truncation.
func (c *Collection) View(amount int, ff FeedFilter, ef EntryFilter) ([]EntryView, int) {
	views := []EntryView{}
	for url, f := range c.Feeds {
		if !ff.matches(url, f) {
			continue
		}
		for key, entry := range f.Entries {
			if !ef.matches(entry) {
				continue
			}
			views = append(views, EntryView{
				Key:     key,
				FeedURL: url,
				Title:   entry.Title,
				Link:    entry.Link,
				PubDate: entry.PubDate,
				Read:    entry.Read,
			})
		}
	}

	total := len(views)

	sort.Slice(views, func(i, j int) bool {
		return entryViewLess(views[i], views[j])
	})

	if amount < len(views) {
		views = views[:amount]
	}
	return views, total
}
