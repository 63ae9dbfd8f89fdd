package keychain

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 500 * time.Millisecond

// Watch calls onChange whenever the file behind the store changes,
// debounced so a burst of writes yields one call. onChange runs on the
// calling goroutine and never after Watch returns. The parent directory
// is watched because stores are rewritten by rename. It blocks until
// ctx is cancelled.
func Watch(ctx context.Context, s *Store, onChange func()) error {
	location := s.Location()
	if location == "" {
		return errors.New("watch: store has no file location")
	}
	location = filepath.Clean(location)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(location)); err != nil {
		return err
	}

	logger := s.logger.With("op", "watch")
	logger.Info("watching store for changes", "path", location)

	var (
		debounce *time.Timer
		fire     <-chan time.Time
	)
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-fire:
			fire = nil
			onChange()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != location {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("store file changed", "op", event.Op)

			if debounce == nil {
				debounce = time.NewTimer(watchDebounce)
			} else {
				debounce.Reset(watchDebounce)
			}
			fire = debounce.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("file watcher error", "error", err)
		}
	}
}
