package search

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/othala/internal/vault"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, id string)

// Watch starts an fsnotify watcher on the notes directory and keeps the
// index consistent with files edited outside the API (foreign edits),
// until ctx is cancelled. It calls cb (if non-nil) after each successful
// index mutation.
//
// Rename events fire on the old path only, so they trigger a debounced
// reconciliation pass that removes index entries whose files are gone and
// indexes files the watcher missed.
func Watch(ctx context.Context, ix *Index, store vault.Provider, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	notesDir := filepath.Join(store.Root(), vault.NotesDir)
	if err := w.Add(notesDir); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("dir", notesDir))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(ctx, ix, store, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			name := filepath.Base(ev.Name)
			if !strings.HasSuffix(name, vault.NoteExt) {
				continue
			}
			id := strings.TrimSuffix(name, vault.NoteExt)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 {
					kind = "created"
				}
				n, getErr := ix.notes.Get(ctx, id)
				if getErr != nil {
					logger.Warn("watcher: read failed", slog.String("id", id), slog.String("error", getErr.Error()))
					continue
				}
				if idxErr := ix.UpdateNoteIndex(ctx, n); idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("id", id), slog.String("error", idxErr.Error()))
					continue
				}
				logger.Debug("watcher: indexed", slog.String("id", id), slog.String("op", kind))
				if cb != nil {
					cb(kind, id)
				}

			case ev.Op&fsnotify.Remove != 0:
				if delErr := ix.RemoveFromIndex(ctx, id); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("id", id), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("id", id))
				if cb != nil {
					cb("deleted", id)
				}

			case ev.Op&fsnotify.Rename != 0:
				if delErr := ix.RemoveFromIndex(ctx, id); delErr == nil {
					logger.Debug("watcher: rename old deleted", slog.String("id", id))
					if cb != nil {
						cb("deleted", id)
					}
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile removes index entries without a backing file and indexes any
// on-disk notes the index does not know yet.
func reconcile(ctx context.Context, ix *Index, store vault.Provider, logger *slog.Logger, cb EventCallback) {
	indexed, err := ix.db.allIDs()
	if err != nil {
		logger.Warn("reconcile: all ids failed", slog.String("error", err.Error()))
		return
	}
	ids, err := store.ListNoteIDs()
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		disk[id] = struct{}{}
	}

	for id := range indexed {
		if _, ok := disk[id]; !ok {
			if delErr := ix.RemoveFromIndex(ctx, id); delErr == nil {
				logger.Debug("reconcile: removed stale", slog.String("id", id))
				if cb != nil {
					cb("deleted", id)
				}
			}
		}
	}

	for id := range disk {
		if _, ok := indexed[id]; ok {
			continue
		}
		n, getErr := ix.notes.Get(ctx, id)
		if getErr != nil {
			continue
		}
		if idxErr := ix.UpdateNoteIndex(ctx, n); idxErr == nil {
			logger.Debug("reconcile: indexed new", slog.String("id", id))
			if cb != nil {
				cb("created", id)
			}
		}
	}
}
