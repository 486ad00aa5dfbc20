// Package cache holds the fetched artifact pairs: in memory as built
// indexes, on disk as raw documents for restart recovery. Entries expire by
// TTL and can be marked stale by the filesystem watcher; a failed refresh
// keeps serving the previous pair.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/artifact"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/registry"
)

// Entry is one cached resource: the built index plus freshness bookkeeping.
type Entry struct {
	Index     *artifact.Index
	FetchedAt time.Time
}

// Options configures a Cache.
type Options struct {
	Dir                  string
	TTL                  time.Duration
	FetchTimeout         time.Duration
	MaxConcurrentFetches int
}

// Cache coordinates fetching, parsing, and serving artifact pairs.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	stale   map[string]bool

	reg     *registry.Registry
	fetcher Fetcher
	disk    *diskStore
	logger  *slog.Logger

	ttl           time.Duration
	fetchTimeout  time.Duration
	maxConcurrent int
}

// New creates a cache backed by the given registry and fetcher.
func New(reg *registry.Registry, fetcher Fetcher, logger *slog.Logger, opts Options) *Cache {
	if opts.MaxConcurrentFetches < 1 {
		opts.MaxConcurrentFetches = 1
	}
	return &Cache{
		entries:       make(map[string]*Entry),
		stale:         make(map[string]bool),
		reg:           reg,
		fetcher:       fetcher,
		disk:          newDiskStore(opts.Dir),
		logger:        logger,
		ttl:           opts.TTL,
		fetchTimeout:  opts.FetchTimeout,
		maxConcurrent: opts.MaxConcurrentFetches,
	}
}

// Get returns the cached index for a resource. Stale entries are still
// served; absence is ErrNotCached.
func (c *Cache) Get(id string) (*artifact.Index, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: resource %q", apperr.ErrNotCached, id)
	}
	return e.Index, nil
}

// Entry returns the full cache entry for a resource.
func (c *Cache) Entry(id string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Fresh reports whether a resource is cached, inside its TTL, and not
// explicitly marked stale.
func (c *Cache) Fresh(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok || c.stale[id] {
		return false
	}
	return time.Since(e.FetchedAt) < c.ttl
}

// MarkStale flags a cached resource for refetch on the next non-forced
// refresh. The entry keeps serving until then.
func (c *Cache) MarkStale(id string) {
	c.mu.Lock()
	_, cached := c.entries[id]
	if cached {
		c.stale[id] = true
	}
	c.mu.Unlock()

	if cached {
		if err := c.reg.SetStatus(id, models.StatusStale); err != nil {
			c.logger.Warn("cache: mark stale", slog.String("resource", id), slog.String("error", err.Error()))
		}
	}
}

// Refresh fetches the artifact pairs for the given resources, bounded by the
// configured concurrency limit. Fresh entries are skipped unless force is
// set. A failed fetch keeps the previous entry and reports the failure in
// the outcome; Refresh itself only errors when ctx is cancelled.
func (c *Cache) Refresh(ctx context.Context, resources []models.Resource, force bool) map[string]models.RefreshOutcome {
	outcomes := make([]models.RefreshOutcome, len(resources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrent)
	for i, res := range resources {
		g.Go(func() error {
			outcomes[i] = c.refreshOne(gctx, res, force)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]models.RefreshOutcome, len(resources))
	for i, res := range resources {
		out[res.ID] = outcomes[i]
	}
	return out
}

func (c *Cache) refreshOne(ctx context.Context, res models.Resource, force bool) models.RefreshOutcome {
	if !force && c.Fresh(res.ID) {
		return models.RefreshOutcome{Success: true, Action: models.RefreshSkipped}
	}

	if err := c.reg.SetStatus(res.ID, models.StatusFetching); err != nil {
		c.logger.Warn("cache: set fetching", slog.String("resource", res.ID), slog.String("error", err.Error()))
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	idx, fetchedAt, err := c.fetchAndIndex(fetchCtx, res)
	if err != nil {
		c.logger.Error("cache: refresh failed",
			slog.String("resource", res.ID),
			slog.String("error", err.Error()))
		if serr := c.reg.SetStatus(res.ID, models.StatusFetchError); serr != nil {
			c.logger.Warn("cache: set fetch error", slog.String("resource", res.ID), slog.String("error", serr.Error()))
		}
		return models.RefreshOutcome{Success: false, Action: models.RefreshFailed, Error: err.Error()}
	}

	c.mu.Lock()
	c.entries[res.ID] = &Entry{Index: idx, FetchedAt: fetchedAt}
	delete(c.stale, res.ID)
	c.mu.Unlock()

	if err := c.reg.SetRefreshed(res.ID, fetchedAt); err != nil {
		c.logger.Warn("cache: set refreshed", slog.String("resource", res.ID), slog.String("error", err.Error()))
	}
	c.logger.Info("cache: refreshed",
		slog.String("resource", res.ID),
		slog.Int("models", len(idx.Models())))
	return models.RefreshOutcome{Success: true, Action: models.RefreshRefreshed}
}

func (c *Cache) fetchAndIndex(ctx context.Context, res models.Resource) (*artifact.Index, time.Time, error) {
	manifest, catalog, err := c.fetcher.Fetch(ctx, res)
	if err != nil {
		return nil, time.Time{}, err
	}
	pair, err := artifact.ParsePair(manifest, catalog)
	if err != nil {
		return nil, time.Time{}, err
	}
	idx := artifact.Build(res.ID, pair)
	fetchedAt := time.Now().UTC()

	if err := c.disk.writePair(res.ID, manifest, catalog, fetchedAt); err != nil {
		// Persistence failure degrades restart recovery, not serving.
		c.logger.Warn("cache: persist pair",
			slog.String("resource", res.ID),
			slog.String("error", err.Error()))
	}
	return idx, fetchedAt, nil
}

// LoadPersisted rebuilds in-memory entries from pairs persisted by earlier
// runs. Entries past their TTL load as stale; unreadable pairs are skipped.
func (c *Cache) LoadPersisted() error {
	ids, err := c.disk.list()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := c.reg.Get(id); err != nil {
			// Pair for a resource the registry no longer knows.
			continue
		}
		manifest, catalog, meta, err := c.disk.readPair(id)
		if err != nil {
			c.logger.Warn("cache: load persisted pair", slog.String("resource", id), slog.String("error", err.Error()))
			continue
		}
		pair, err := artifact.ParsePair(manifest, catalog)
		if err != nil {
			c.logger.Warn("cache: parse persisted pair", slog.String("resource", id), slog.String("error", err.Error()))
			continue
		}
		idx := artifact.Build(id, pair)

		c.mu.Lock()
		c.entries[id] = &Entry{Index: idx, FetchedAt: meta.FetchedAt}
		c.mu.Unlock()

		if time.Since(meta.FetchedAt) < c.ttl {
			if err := c.reg.SetRefreshed(id, meta.FetchedAt); err != nil {
				c.logger.Warn("cache: restore status", slog.String("resource", id), slog.String("error", err.Error()))
			}
		} else {
			c.MarkStale(id)
		}
		c.logger.Info("cache: loaded persisted pair",
			slog.String("resource", id),
			slog.Time("fetched_at", meta.FetchedAt))
	}
	return nil
}

// Remove drops a resource from memory and disk.
func (c *Cache) Remove(id string) error {
	c.mu.Lock()
	delete(c.entries, id)
	delete(c.stale, id)
	c.mu.Unlock()
	return c.disk.remove(id)
}

// IDs returns the ids of all cached resources.
func (c *Cache) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	return ids
}
