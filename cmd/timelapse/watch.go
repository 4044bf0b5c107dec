package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// settleDelay collapses the burst of events an editor produces on save.
const settleDelay = 200 * time.Millisecond

// watchFile calls fn every time path is written or replaced, until ctx is
// done. The directory is watched rather than the file so that editors that
// save by renaming a temporary file are still seen. Errors from fn are
// logged and do not stop the watch.
func watchFile(ctx context.Context, path string, fn func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	logger.Info("Watching scene", zap.String("path", abs))

	timer := time.NewTimer(settleDelay)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				logger.Debug("Scene changed", zap.String("op", event.Op.String()))
				timer.Reset(settleDelay)
			}

		case <-timer.C:
			if err := fn(); err != nil {
				logger.Error("Re-render failed", zap.Error(err))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("File watch error", zap.Error(err))
		}
	}
}
