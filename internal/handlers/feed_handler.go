package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wcubed/rss-r/internal/api"
	"github.com/wcubed/rss-r/internal/auth"
	"github.com/wcubed/rss-r/internal/collection"
	"github.com/wcubed/rss-r/internal/feed"
	"github.com/wcubed/rss-r/internal/fetch"
	"github.com/wcubed/rss-r/internal/services"
)

// FeedHandler serves the collection endpoints. Every handler requires an
// authenticated principal and only ever touches that user's collection.
type FeedHandler struct {
	registry *collection.Registry
	refresh  *services.RefreshService
	fetcher  *fetch.Fetcher
}

func NewFeedHandler(registry *collection.Registry, refresh *services.RefreshService, fetcher *fetch.Fetcher) *FeedHandler {
	return &FeedHandler{
		registry: registry,
		refresh:  refresh,
		fetcher:  fetcher,
	}
}

// IsURLAnRSSFeed probes a URL and reports the feed title if one parses.
// Probe failures are part of the normal response, not HTTP errors.
func (fh *FeedHandler) IsURLAnRSSFeed(c *gin.Context) {
	principal, ok := auth.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req api.IsURLAnRSSFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	log.Printf("User %q probes %q for a feed", principal.Name, req.URL)

	result := api.ProbeResult{}
	parsed, err := fh.fetcher.FetchOne(c.Request.Context(), req.URL, services.ProbeTimeout)
	if err != nil {
		result.Error = err.Error()
	} else {
		result.OK = true
		result.Title = parsed.Title
	}

	c.JSON(http.StatusOK, api.IsURLAnRSSFeedResponse{
		RequestedURL: req.URL,
		Result:       result,
	})
}

// AddFeed subscribes the caller to a URL. The feed is fetched right
// away: on success its entries are stored immediately, on failure the
// subscription still happens and the failure lands in the feed's last
// update result.
func (fh *FeedHandler) AddFeed(c *gin.Context) {
	principal, ok := auth.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req api.AddFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if fh.registry.Contains(principal.ID, req.URL) {
		c.JSON(http.StatusConflict, gin.H{"error": "feed already in collection"})
		return
	}

	log.Printf("User %q adds feed %q", principal.Name, req.URL)

	info := req.Info
	entries := map[feed.EntryKey]feed.FeedEntry{}
	parsed, err := fh.fetcher.FetchOne(c.Request.Context(), req.URL, services.ProbeTimeout)
	if err != nil {
		info.LastUpdateResult = feed.UpdateFailed(err.Error())
	} else {
		info.LastUpdateResult = feed.UpdateOK()
		entries = parsed.Keyed()
		if info.Name == "" {
			info.Name = parsed.Title
		}
	}
	if info.Name == "" {
		info.Name = req.URL
	}

	if err := fh.registry.InsertFeed(principal.ID, req.URL, feed.New(info, entries)); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusOK)
}

// Feeds returns the caller's filtered entry view, optionally refreshing
// the collection first or attaching feed metadata.
func (fh *FeedHandler) Feeds(c *gin.Context) {
	principal, ok := auth.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req api.FeedsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	feedFilter, entryFilter, err := parseFilters(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Amount < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must not be negative"})
		return
	}

	action := req.AdditionalAction
	if action == "" {
		action = api.ActionNone
	}
	if action != api.ActionNone && action != api.ActionIncludeFeedsInfo && action != api.ActionUpdateFeeds {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown additional action " + action})
		return
	}

	if action == api.ActionUpdateFeeds {
		fh.refresh.RefreshUser(c.Request.Context(), principal.ID)
	}

	views, total := fh.registry.View(principal.ID, req.Amount, feedFilter, entryFilter)

	resp := api.FeedsResponse{
		FeedEntries:    views,
		TotalAvailable: total,
	}
	if action == api.ActionIncludeFeedsInfo || action == api.ActionUpdateFeeds {
		resp.FeedsInfo = fh.registry.Infos(principal.ID)
	}
	c.JSON(http.StatusOK, resp)
}

// SetEntryRead flips one entry's read flag and echoes the request.
func (fh *FeedHandler) SetEntryRead(c *gin.Context) {
	principal, ok := auth.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req api.SetEntryReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := fh.registry.SetEntryRead(principal.ID, req.FeedURL, req.EntryKey, req.Read); err != nil {
		respondRegistryError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// SetFeedInfo replaces one feed's metadata and echoes the request.
func (fh *FeedHandler) SetFeedInfo(c *gin.Context) {
	principal, ok := auth.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req api.SetFeedInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := fh.registry.SetFeedInfo(principal.ID, req.FeedURL, req.Info); err != nil {
		respondRegistryError(c, err)
		return
	}

	log.Printf("User %q updated info of feed %q", principal.Name, req.FeedURL)
	req.Info.Normalize()
	c.JSON(http.StatusOK, req)
}

// respondRegistryError maps registry lookup failures to 404. A feed
// another user owns is indistinguishable from one that does not exist,
// so nothing leaks about other collections.
func respondRegistryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, collection.ErrFeedNotFound), errors.Is(err, collection.ErrEntryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func parseFilters(req api.FeedsRequest) (collection.FeedFilter, collection.EntryFilter, error) {
	var feedFilter collection.FeedFilter
	switch req.Filter.Kind {
	case api.FilterKindAll, "":
		feedFilter = collection.FeedFilter{Kind: collection.FilterAll}
	case api.FilterKindTag:
		feedFilter = collection.FeedFilter{Kind: collection.FilterTag, Tag: req.Filter.Tag}
	case api.FilterKindSingle:
		feedFilter = collection.FeedFilter{Kind: collection.FilterSingle, URL: req.Filter.URL}
	default:
		return collection.FeedFilter{}, "", errors.New("unknown feed filter kind " + req.Filter.Kind)
	}

	var entryFilter collection.EntryFilter
	switch req.EntryFilter {
	case api.EntryFilterAll, "":
		entryFilter = collection.EntryAll
	case api.EntryFilterUnread:
		entryFilter = collection.EntryUnread
	default:
		return collection.FeedFilter{}, "", errors.New("unknown entry filter " + req.EntryFilter)
	}

	return feedFilter, entryFilter, nil
}
