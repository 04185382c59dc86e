package server

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the document whenever its file is written, once no change
// was seen for debounce. It returns when ctx is done.
//
// The directory of the document is watched rather than the file, so that
// editors replacing the file on save are followed.
func (a *App) Watch(ctx context.Context, debounce time.Duration) error {
	path, err := filepath.Abs(a.path)
	if err != nil {
		return fmt.Errorf("watching %s: %w", a.path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watching %s: %w", a.path, err)
	}
	defer func() { _ = w.Close() }()
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", a.path, err)
	}
	a.logger.Info("watching document", "path", path)

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			a.logger.Debug("document changed", "path", path, "op", ev.Op.String())
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn("watch error", "path", path, "error", err)
		case <-timer.C:
			if err := a.Reload(); err != nil {
				a.logger.Error("document reload failed, keeping the previous one", "path", path, "error", err)
			}
		}
	}
}
