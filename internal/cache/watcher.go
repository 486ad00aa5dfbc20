package cache

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// rescanInterval is how often the watcher re-reads the registry for local
// resources added after startup. Variable so tests can shorten it.
var rescanInterval = 30 * time.Second

// Watch starts an fsnotify watcher over the artifact directories of the
// registry's local resources and processes change events until ctx is
// cancelled. A write to either document of a pair marks the resource stale
// after a short debounce, so the next non-forced refresh rereads it from
// disk. The registry is rescanned periodically, so local resources that
// appear after startup (seed reload, discovery) are picked up too.
func Watch(ctx context.Context, c *Cache, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Directory → resource id, for mapping events back.
	dirs := make(map[string]string)
	addLocal := func() {
		for _, res := range c.reg.Local() {
			dir := filepath.Clean(res.Location.Path)
			if _, ok := dirs[dir]; ok {
				continue
			}
			if err := w.Add(dir); err != nil {
				logger.Warn("watcher: add dir failed",
					slog.String("resource", res.ID),
					slog.String("path", dir),
					slog.String("error", err.Error()))
				continue
			}
			dirs[dir] = res.ID
			logger.Info("watcher: watching", slog.String("resource", res.ID), slog.String("path", dir))
		}
	}
	addLocal()
	logger.Info("watcher: started", slog.Int("dirs", len(dirs)))

	rescan := time.NewTicker(rescanInterval)
	defer rescan.Stop()

	// Debounce per resource: editors fire bursts of writes per save.
	pending := make(map[string]bool)
	var debounce *time.Timer
	var debounceCh <-chan time.Time

	schedule := func(id string) {
		pending[id] = true
		if debounce == nil {
			debounce = time.NewTimer(200 * time.Millisecond)
			debounceCh = debounce.C
		} else {
			debounce.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-rescan.C:
			addLocal()

		case <-debounceCh:
			for id := range pending {
				c.MarkStale(id)
				logger.Info("watcher: marked stale", slog.String("resource", id))
				delete(pending, id)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			base := filepath.Base(ev.Name)
			if base != manifestFile && base != catalogFile {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if id, ok := dirs[filepath.Dir(ev.Name)]; ok {
				schedule(id)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher: error", slog.String("error", err.Error()))
		}
	}
}
