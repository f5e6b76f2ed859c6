// Package watch reports changes to an outline file on disk.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/orgsync/internal/apperr"
	"github.com/starford/orgsync/internal/storage"
)

// Debounce is the quiet period after the last file event before the
// callback runs.
const Debounce = 200 * time.Millisecond

const (
	KindChanged = "changed"
	KindRemoved = "removed"
)

// EventCallback is called once per settled change. kind is KindChanged or
// KindRemoved; path is relative to the storage root.
type EventCallback func(kind string, path string)

// Watch watches the file name inside store's root until ctx is cancelled.
// The directory is watched rather than the file so that atomic replaces
// (rename over the old inode) are seen. Events that leave the content
// unchanged are dropped.
func Watch(ctx context.Context, store *storage.FS, name string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(store.Root()); err != nil {
		return err
	}
	target, err := store.Abs(name)
	if err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("path", target))

	last := ""
	if info, err := store.Stat(name); err == nil {
		last = info.Checksum
	}

	var timer *time.Timer
	var fire <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(Debounce)
			fire = timer.C
		} else {
			timer.Reset(Debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			timer, fire = nil, nil
			info, err := store.Stat(name)
			switch {
			case errors.Is(err, apperr.ErrNotFound):
				if last == "" {
					continue
				}
				last = ""
				logger.Debug("watcher: removed", slog.String("path", name))
				if cb != nil {
					cb(KindRemoved, name)
				}
			case err != nil:
				logger.Warn("watcher: stat failed", slog.String("path", name), slog.String("error", err.Error()))
			case info.Checksum != last:
				last = info.Checksum
				logger.Debug("watcher: changed", slog.String("path", name))
				if cb != nil {
					cb(KindChanged, name)
				}
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
