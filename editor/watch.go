package editor

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gdamore/tcell/v2"
)

// FileWatchEvent carries file system change notifications to the main
// event loop.
type FileWatchEvent struct {
	tcell.EventTime
	Path string
	Op   fsnotify.Op
}

// watcher wraps fsnotify with recursive directory registration and a
// debounce window, so bursts of writes surface as one event per file.
type watcher struct {
	fs  *fsnotify.Watcher
	log *slog.Logger
}

func newWatcher(screen tcell.Screen, log *slog.Logger) *watcher {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		// Graceful degradation - continue without watching
		log.Warn("file watcher unavailable", "err", err)
		return nil
	}
	w := &watcher{fs: fs, log: log}

	go func() {
		debounceTimer := time.NewTimer(100 * time.Millisecond)
		debounceTimer.Stop()
		var pendingEvents []fsnotify.Event

		for {
			select {
			case event, ok := <-fs.Events:
				if !ok {
					return
				}
				// Ignore hidden files and common build directories
				if shouldIgnorePath(event.Name) {
					continue
				}

				pendingEvents = append(pendingEvents, event)
				debounceTimer.Reset(100 * time.Millisecond)

			case <-debounceTimer.C:
				for _, event := range pendingEvents {
					ev := &FileWatchEvent{
						Path: event.Name,
						Op:   event.Op,
					}
					ev.SetEventNow()
					screen.PostEvent(ev)

					// If a directory was created, add it to the watch list
					if event.Op&fsnotify.Create != 0 {
						if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
							w.watchRecursive(event.Name)
						}
					}
				}
				pendingEvents = nil

			case err, ok := <-fs.Errors:
				if !ok {
					return
				}
				log.Warn("file watcher error", "err", err)
			}
		}
	}()

	return w
}

func (w *watcher) watchRecursive(root string) {
	filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if shouldIgnorePath(path) {
				return filepath.SkipDir
			}
			w.fs.Add(path)
		}
		return nil
	})
}

func (w *watcher) close() {
	w.fs.Close()
}

func shouldIgnorePath(path string) bool {
	base := filepath.Base(path)
	ignore := []string{".git", ".hg", ".svn", "node_modules", "target", "build", "dist", "__pycache__", ".idea", ".vscode"}
	for _, pattern := range ignore {
		if base == pattern || strings.HasPrefix(base, ".") && base != "." {
			return true
		}
	}
	return false
}

func (e *Editor) handleFileWatchEvent(ev *FileWatchEvent) {
	// Check if this file is open in a document
	idx := -1
	for i, d := range e.docs {
		if d.Buf.Path == ev.Path {
			idx = i
			break
		}
	}

	if idx >= 0 {
		d := e.docs[idx]
		buf := d.Buf
		switch {
		case ev.Op&fsnotify.Remove != 0:
			e.statusBar.Message = "Warning: " + filepath.Base(ev.Path) + " was deleted externally"

		case ev.Op&fsnotify.Write != 0 || ev.Op&fsnotify.Create != 0:
			// Check if we just saved it, to avoid a reload loop
			info, err := os.Stat(ev.Path)
			if err != nil {
				return
			}
			modTime := info.ModTime()

			// Allow 1 second grace period after our last save
			if buf.LastSaveTime.IsZero() || modTime.Sub(buf.LastSaveTime) > time.Second {
				if buf.Modified {
					// Unsaved local edits conflict with the external
					// write. Never merge the two; flag it and let the
					// user decide.
					buf.ExternallyModified = true
					e.tabBar.SetExternallyModified(idx, true)
					e.statusBar.Message = "⚠ " + filepath.Base(ev.Path) + " was modified externally! (unsaved changes)"
				} else {
					e.reloadDocument(idx)
					e.statusBar.Message = "↻ " + filepath.Base(ev.Path) + " (reloaded)"
				}
			}
		}
	}

	// Refresh file tree if event is in watched directory
	if strings.HasPrefix(ev.Path, e.watchedRoot) {
		if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
			e.fileTree.Refresh()
		}
	}
}
