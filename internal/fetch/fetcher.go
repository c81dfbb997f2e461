// Package fetch downloads and parses syndication feeds. It is stateless
// across calls: deduplication and caching are the caller's concern.
package fetch

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/doyensec/safeurl"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/wcubed/rss-r/internal/feed"
)

// maxBodySize caps how much of an upstream response is read before
// parsing. Feeds larger than this fail the fetch.
const maxBodySize = 10 << 20

// ParsedEntry is one upstream item after normalization: sanitized title
// with the "No title" default applied, first link if any, and the
// published-or-updated timestamp with the sentinel fallback.
type ParsedEntry struct {
	Title   string
	Link    string
	PubDate time.Time
}

// ParsedFeed is the fetcher's view of one downloaded feed.
type ParsedFeed struct {
	Title   string
	Entries []ParsedEntry
}

// Keyed converts the ordered entry list into the keyed map the merge
// operates on. Unread by construction; identity follows from title+link.
func (p *ParsedFeed) Keyed() map[feed.EntryKey]feed.FeedEntry {
	entries := make(map[feed.EntryKey]feed.FeedEntry, len(p.Entries))
	for _, raw := range p.Entries {
		entry := feed.FeedEntry{
			Title:   raw.Title,
			Link:    raw.Link,
			PubDate: raw.PubDate,
			Read:    false,
		}
		entries[entry.Key()] = entry
	}
	return entries
}

// Result is the outcome of fetching a single URL within a batch.
type Result struct {
	Feed *ParsedFeed
	Err  error
}

// Fetcher downloads feeds over HTTP and parses them with gofeed.
// Feed URLs are user input, so the default client refuses requests that
// resolve to private, loopback or link-local addresses.
type Fetcher struct {
	client    *http.Client
	sanitizer *bluemonday.Policy
}

// New returns a fetcher with an SSRF-guarded HTTP client.
func New() *Fetcher {
	config := safeurl.GetConfigBuilder().
		SetAllowedSchemes("http", "https").
		Build()
	return NewWithClient(safeurl.Client(config).Client)
}

// NewWithClient returns a fetcher using the given HTTP client. Tests use
// this to reach local servers the safe client would refuse.
func NewWithClient(client *http.Client) *Fetcher {
	return &Fetcher{
		client:    client,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// FetchOne downloads and parses a single feed. The timeout bounds the
// whole operation: connect, transfer and parse.
func (f *Fetcher) FetchOne(ctx context.Context, url string, timeout time.Duration) (*ParsedFeed, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", "rss-r/1.0 feed reader")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("requesting %s: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}

	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", url, err)
	}

	return f.normalize(parsed), nil
}

// FetchAll downloads every URL concurrently and collects the outcomes.
// One failing feed never affects the others.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string, timeout time.Duration) map[string]Result {
	results := make(map[string]Result, len(urls))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, url := range urls {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			parsed, err := f.FetchOne(ctx, url, timeout)

			mu.Lock()
			results[url] = Result{Feed: parsed, Err: err}
			mu.Unlock()
		}(url)
	}
	wg.Wait()

	return results
}

func (f *Fetcher) normalize(parsed *gofeed.Feed) *ParsedFeed {
	out := &ParsedFeed{
		Title:   f.cleanText(parsed.Title),
		Entries: make([]ParsedEntry, 0, len(parsed.Items)),
	}

	for _, item := range parsed.Items {
		title := f.cleanText(item.Title)
		if title == "" {
			title = feed.NoTitle
		}

		link := item.Link
		if link == "" && len(item.Links) > 0 {
			link = item.Links[0]
		}

		pubDate := feed.SentinelDate()
		switch {
		case item.PublishedParsed != nil:
			pubDate = item.PublishedParsed.UTC()
		case item.UpdatedParsed != nil:
			pubDate = item.UpdatedParsed.UTC()
		}

		out.Entries = append(out.Entries, ParsedEntry{
			Title:   title,
			Link:    link,
			PubDate: pubDate,
		})
	}

	return out
}

// cleanText strips markup some feeds smuggle into title elements.
func (f *Fetcher) cleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(f.sanitizer.Sanitize(s)))
}
