package file

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay is the quiet period after the last change before the file is
// reread. Writers truncate before they write.
const reloadDelay = 100 * time.Millisecond

// Watch rereads the configuration file whenever it changes on disk and sends
// the outcome of every reload on the returned channel, nil on success. The
// channel is closed once ctx is done.
func (s *ConfigStore) Watch(ctx context.Context) (<-chan error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating config watcher: %w", err)
	}
	// The directory is watched so that a file replaced by rename is seen.
	dir := filepath.Dir(s.filePath)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	reloads := make(chan error, 1)
	go s.watch(ctx, watcher, reloads)
	return reloads, nil
}

func (s *ConfigStore) watch(ctx context.Context, watcher *fsnotify.Watcher, reloads chan<- error) {
	defer close(reloads)
	defer watcher.Close()

	timer := time.NewTimer(reloadDelay)
	timer.Stop()
	defer timer.Stop()

	send := func(err error) bool {
		select {
		case reloads <- err:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if s.isConfigEvent(ev) {
				timer.Reset(reloadDelay)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if !send(fmt.Errorf("watching config: %w", err)) {
				return
			}
		case <-timer.C:
			if !send(s.Load()) {
				return
			}
		}
	}
}

// isConfigEvent reports whether ev writes or replaces the configuration
// file. Removal keeps the loaded values.
func (s *ConfigStore) isConfigEvent(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != s.filePath {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)
}
