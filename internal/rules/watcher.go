package rules

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch hot-reloads the rules file into the engine until ctx is cancelled.
// Writes are debounced because editors and config pushers tend to emit
// several events per save. A file that fails to parse is logged and skipped;
// the engine keeps serving the previous ruleset.
func Watch(ctx context.Context, e *Engine, path string, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory rather than the file: atomic save strategies
	// (write temp + rename) would otherwise drop the watch.
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return err
	}

	logger.Info("rules: watching", slog.String("path", path))

	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time

	scheduleReload := func() {
		if reloadTimer == nil {
			reloadTimer = time.NewTimer(200 * time.Millisecond)
			reloadCh = reloadTimer.C
		} else {
			reloadTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			logger.Info("rules: watcher stopped")
			return nil

		case <-reloadCh:
			rs, loadErr := LoadFile(path)
			if loadErr != nil {
				logger.Warn("rules: reload failed, keeping previous ruleset",
					slog.String("error", loadErr.Error()))
				continue
			}
			e.Replace(rs)
			logger.Info("rules: reloaded",
				slog.Int("categories", len(rs.Categories)),
				slog.Int("banks", len(rs.Banks)))

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				scheduleReload()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("rules: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
