// Package services orchestrates the refresh pipeline and the periodic
// background workers on top of the registry and the fetcher.
package services

import (
	"context"
	"time"

	"github.com/wcubed/rss-r/internal/auth"
	"github.com/wcubed/rss-r/internal/collection"
	"github.com/wcubed/rss-r/internal/fetch"
	"github.com/wcubed/rss-r/internal/metrics"
)

// Fetch timeouts. User-initiated refreshes stay short because a request
// handler is waiting on them; the background refresh can afford slow
// upstreams; the subscribe probe sits in between.
const (
	UserRefreshTimeout       = 5 * time.Second
	BackgroundRefreshTimeout = 20 * time.Second
	ProbeTimeout             = 10 * time.Second
)

// RefreshService runs fetch+merge passes over sets of feed URLs.
//
// Every pass follows the same three steps: snapshot URLs under the
// registry read lock, fetch with no lock held, merge under the write
// lock. Individual feed failures surface only in the affected feed's
// last update result and never abort the pass.
type RefreshService struct {
	registry *collection.Registry
	fetcher  *fetch.Fetcher
	metrics  *metrics.Collector
}

func NewRefreshService(registry *collection.Registry, fetcher *fetch.Fetcher, collector *metrics.Collector) *RefreshService {
	return &RefreshService{
		registry: registry,
		fetcher:  fetcher,
		metrics:  collector,
	}
}

// RefreshUser refreshes every feed in one user's collection.
func (s *RefreshService) RefreshUser(ctx context.Context, id auth.UserID) {
	urls := s.registry.URLs(id)
	if len(urls) == 0 {
		return
	}

	outcomes := s.fetchOutcomes(ctx, urls, UserRefreshTimeout)
	inserted := s.registry.MergeUser(id, urls, outcomes)

	s.metrics.RecordRefreshRun()
	s.metrics.RecordEntriesMerged(inserted)
}

// RefreshAll refreshes the union of every user's feeds. Each URL is
// fetched once and merged into every collection that owns it.
func (s *RefreshService) RefreshAll(ctx context.Context) {
	urls := s.registry.AllURLs()
	if len(urls) == 0 {
		return
	}

	outcomes := s.fetchOutcomes(ctx, urls, BackgroundRefreshTimeout)
	inserted := s.registry.MergeAll(outcomes)

	s.metrics.RecordRefreshRun()
	s.metrics.RecordEntriesMerged(inserted)
}

// fetchOutcomes downloads the URLs concurrently and converts each result
// into the form the registry merges. No registry lock is held here.
func (s *RefreshService) fetchOutcomes(ctx context.Context, urls []string, timeout time.Duration) map[string]collection.MergeOutcome {
	start := time.Now()
	results := s.fetcher.FetchAll(ctx, urls, timeout)
	s.metrics.RecordFetchLatency(time.Since(start))

	outcomes := make(map[string]collection.MergeOutcome, len(results))
	for url, result := range results {
		if result.Err != nil {
			s.metrics.RecordFetchFailure()
			outcomes[url] = collection.MergeOutcome{Err: result.Err.Error()}
			continue
		}
		s.metrics.RecordFetchSuccess()
		outcomes[url] = collection.MergeOutcome{Entries: result.Feed.Keyed()}
	}
	return outcomes
}
