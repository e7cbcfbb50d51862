package questions

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/buildagent/buildagent/internal/logging"
)

// DefaultDebounce coalesces the burst of events editors emit on save.
const DefaultDebounce = 100 * time.Millisecond

// Watch calls onChange with the freshly loaded bank each time the file at
// path is written, created or renamed into place. It blocks until ctx is
// done. The parent directory is watched so atomic-rename saves are seen.
// A load error is passed to onChange rather than stopping the watch.
func Watch(ctx context.Context, path string, debounce time.Duration, logger *logging.Logger, onChange func([]Question, error)) error {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve bank path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	source := SourceFor(abs)
	log := logger.WithComponent("bank_watcher").With("path", abs)

	debounceTimer := time.NewTimer(debounce)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}
	defer debounceTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounceTimer.Reset(debounce)

		case <-debounceTimer.C:
			qs, err := source.Load(ctx)
			if err != nil {
				log.Warn("question bank reload failed", "error", err)
			} else {
				log.Info("question bank reloaded", "questions", len(qs))
			}
			onChange(qs, err)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", "error", err)
		}
	}
}
