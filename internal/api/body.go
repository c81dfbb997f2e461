// Package api defines the JSON request and response bodies of the HTTP
// surface. Mutating endpoints echo their request back so clients can
// treat the server as the single source of truth.
package api

import (
	"github.com/wcubed/rss-r/internal/collection"
	"github.com/wcubed/rss-r/internal/feed"
)

// Feed filter kinds on the wire, see collection.FeedFilter.
const (
	FilterKindAll    = "all"
	FilterKindTag    = "tag"
	FilterKindSingle = "single"
)

// Entry filter values on the wire.
const (
	EntryFilterAll    = "all"
	EntryFilterUnread = "unread"
)

// Additional actions for the /feeds request.
const (
	ActionNone             = "none"
	ActionIncludeFeedsInfo = "include_feeds_info"
	ActionUpdateFeeds      = "update_feeds"
)

// IsURLAnRSSFeedRequest asks the server to probe a URL for a feed.
type IsURLAnRSSFeedRequest struct {
	URL string `json:"url" binding:"required"`
}

// ProbeResult carries either the feed title or why the probe failed.
type ProbeResult struct {
	OK    bool   `json:"ok"`
	Title string `json:"title,omitempty"`
	Error string `json:"error,omitempty"`
}

// IsURLAnRSSFeedResponse answers a probe.
type IsURLAnRSSFeedResponse struct {
	RequestedURL string      `json:"requested_url"`
	Result       ProbeResult `json:"result"`
}

// AddFeedRequest subscribes the caller to a feed. The name usually comes
// from a prior probe; an empty name falls back to the fetched title.
type AddFeedRequest struct {
	URL  string        `json:"url" binding:"required"`
	Info feed.FeedInfo `json:"info"`
}

// FeedFilter selects which feeds a /feeds request covers.
type FeedFilter struct {
	Kind string `json:"kind"`
	Tag  string `json:"tag,omitempty"`
	URL  string `json:"url,omitempty"`
}

// FeedsRequest queries the merged entry view.
type FeedsRequest struct {
	Filter      FeedFilter `json:"filter"`
	EntryFilter string     `json:"entry_filter"`
	Amount      int        `json:"amount"`
	// AdditionalAction optionally refreshes the caller's feeds first
	// (update_feeds) or attaches feed metadata (include_feeds_info).
	AdditionalAction string `json:"additional_action"`
}

// FeedsResponse is the filtered, sorted, truncated entry view.
// TotalAvailable counts matching entries before truncation. FeedsInfo is
// present when the request's action asked for metadata or refreshed.
type FeedsResponse struct {
	FeedEntries    []collection.EntryView   `json:"feed_entries"`
	TotalAvailable int                      `json:"total_available"`
	FeedsInfo      map[string]feed.FeedInfo `json:"feeds_info,omitempty"`
}

// SetEntryReadRequest flips one entry's read flag. Request and response
// share this shape; the server echoes the request on success.
type SetEntryReadRequest struct {
	FeedURL  string        `json:"feed_url" binding:"required"`
	EntryKey feed.EntryKey `json:"entry_key"`
	Read     bool          `json:"read"`
}

// SetFeedInfoRequest replaces one feed's metadata. Echoed on success.
type SetFeedInfoRequest struct {
	FeedURL string        `json:"feed_url" binding:"required"`
	Info    feed.FeedInfo `json:"info"`
}
