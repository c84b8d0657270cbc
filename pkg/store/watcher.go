package store

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/borgmon/schedule-reminder/pkg/logger"
	"github.com/fsnotify/fsnotify"
)

const DefaultWatchDebounce = 200 * time.Millisecond

// WatchFile calls onChange after the file at path is written, replaced or
// removed. The parent directory is watched because atomic writes swap the
// file's inode. Bursts of events within debounce collapse into one call.
//
// onChange runs on the watcher goroutine; callers that touch UI state must
// hand off to the UI goroutine themselves. WatchFile blocks until ctx is done.
func WatchFile(ctx context.Context, path string, debounce time.Duration, log logger.Logger, onChange func()) error {
	log = logger.Default(log)
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Clean(path)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(debounce, onChange)
			} else {
				timer.Reset(debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warning("Schedule file watcher error: %v", err)
		}
	}
}
