package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/wcubed/rss-r/internal/collection"
	"github.com/wcubed/rss-r/internal/metrics"
	"github.com/wcubed/rss-r/internal/persist"
)

// Default worker intervals.
const (
	CollectionsSaveInterval = 2 * time.Minute
	FeedUpdateInterval      = 12 * time.Hour
)

// Workers runs the two background tasks for the lifetime of the process:
// the dirty-checked collections snapshotter and the global feed refresh.
// Both tick immediately on start.
type Workers struct {
	registry *collection.Registry
	refresh  *RefreshService
	store    *persist.Store
	metrics  *metrics.Collector

	snapshotInterval time.Duration
	refreshInterval  time.Duration

	mu        sync.Mutex
	isRunning bool
	stopChan  chan struct{}
	wg        sync.WaitGroup

	// lastHash is the registry hash at the time of the last snapshot.
	// Zero means no snapshot has been written yet, so the first tick
	// always writes one.
	hashMu   sync.Mutex
	lastHash uint64
}

// NewWorkers builds the worker pair. Zero intervals take the defaults;
// tests shorten them.
func NewWorkers(registry *collection.Registry, refresh *RefreshService, store *persist.Store, collector *metrics.Collector, snapshotInterval, refreshInterval time.Duration) *Workers {
	if snapshotInterval <= 0 {
		snapshotInterval = CollectionsSaveInterval
	}
	if refreshInterval <= 0 {
		refreshInterval = FeedUpdateInterval
	}
	return &Workers{
		registry:         registry,
		refresh:          refresh,
		store:            store,
		metrics:          collector,
		snapshotInterval: snapshotInterval,
		refreshInterval:  refreshInterval,
		stopChan:         make(chan struct{}),
	}
}

// Start launches both workers.
func (w *Workers) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("workers already running")
	}
	w.isRunning = true

	w.wg.Add(2)
	go w.snapshotLoop()
	go w.refreshLoop()

	log.Printf("Background workers started: snapshot every %v, refresh every %v",
		w.snapshotInterval, w.refreshInterval)
	return nil
}

// Stop halts both workers and waits for in-flight ticks to finish.
func (w *Workers) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isRunning {
		return
	}
	w.isRunning = false
	close(w.stopChan)
	w.wg.Wait()
	log.Printf("Background workers stopped")
}

func (w *Workers) snapshotLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.snapshotInterval)
	defer ticker.Stop()

	w.SnapshotIfDirty()
	for {
		select {
		case <-ticker.C:
			w.SnapshotIfDirty()
		case <-w.stopChan:
			return
		}
	}
}

func (w *Workers) refreshLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.refreshInterval)
	defer ticker.Stop()

	ctx := context.Background()
	w.refresh.RefreshAll(ctx)
	for {
		select {
		case <-ticker.C:
			w.refresh.RefreshAll(ctx)
		case <-w.stopChan:
			return
		}
	}
}

// SnapshotIfDirty persists the registry only when its content hash moved
// since the last write.
func (w *Workers) SnapshotIfDirty() {
	w.hashMu.Lock()
	defer w.hashMu.Unlock()

	hash := w.registry.Hash()
	if hash == w.lastHash {
		return
	}
	w.write(hash)
}

// SnapshotNow persists the registry unconditionally. Called on graceful
// shutdown, after the HTTP server has stopped.
func (w *Workers) SnapshotNow() {
	w.hashMu.Lock()
	defer w.hashMu.Unlock()
	w.write(w.registry.Hash())
}

func (w *Workers) write(hash uint64) {
	if err := w.store.Save(persist.CollectionsFile, w.registry); err != nil {
		log.Printf("Could not snapshot collections: %v", err)
		return
	}
	w.lastHash = hash
	w.metrics.RecordSnapshotWrite()
}
