package daemon

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/llnl/doxysite/internal/logfields"
)

// Watcher monitors the configured paths (the Doxyfile template, the header
// tree) and forwards relevant filesystem changes to a callback. Directory
// paths are watched recursively; file paths are watched via their parent
// directory, which survives editors that replace files on save.
type Watcher struct {
	fsw      *fsnotify.Watcher
	onChange func(path string)
	files    map[string]struct{} // exact file paths to react to
	roots    []string            // directory trees to react to
	stopChan chan struct{}
}

// NewWatcher sets up watches for the given resolved paths. Paths that do not
// exist yet are skipped with a warning; builds create some of them later.
func NewWatcher(paths []string, onChange func(path string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	w := &Watcher{
		fsw:      fsw,
		onChange: onChange,
		files:    make(map[string]struct{}),
		stopChan: make(chan struct{}),
	}

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("resolve watch path %s: %w", p, err)
		}
		fi, err := os.Stat(abs)
		switch {
		case err != nil:
			slog.Warn("Watch path does not exist, skipping", logfields.Path(abs))
		case fi.IsDir():
			if err := w.addTree(abs); err != nil {
				fsw.Close()
				return nil, err
			}
			w.roots = append(w.roots, abs)
		default:
			// Watch the parent dir; rename-over-save would drop a watch
			// placed on the file itself.
			if err := fsw.Add(filepath.Dir(abs)); err != nil {
				fsw.Close()
				return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
			}
			w.files[abs] = struct{}{}
		}
	}

	slog.Info("File watcher initialized",
		slog.Int("files", len(w.files)),
		slog.Int("trees", len(w.roots)))
	return w, nil
}

// addTree registers watches for dir and every non-hidden subdirectory.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if name := d.Name(); strings.HasPrefix(name, ".") && path != dir {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// Run forwards events until Stop is called or the watcher closes.
func (w *Watcher) Run() {
	for {
		select {
		case <-w.stopChan:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(event.Name) {
				continue
			}
			// New subdirectories inside a watched tree need their own watch.
			if event.Op.Has(fsnotify.Create) {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						slog.Warn("Failed to watch new directory", logfields.Path(event.Name), logfields.Error(err))
					}
				}
			}
			if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) ||
				event.Op.Has(fsnotify.Rename) || event.Op.Has(fsnotify.Remove) {
				slog.Debug("File change detected", logfields.Path(event.Name), slog.String("op", event.Op.String()))
				w.onChange(event.Name)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Error("File watcher error", logfields.Error(err))
		}
	}
}

// relevant reports whether a change at name concerns a watched file or tree.
func (w *Watcher) relevant(name string) bool {
	if _, ok := w.files[name]; ok {
		return true
	}
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	for _, root := range w.roots {
		if name == root || strings.HasPrefix(name, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Stop shuts down the watcher and its event loop.
func (w *Watcher) Stop() {
	close(w.stopChan)
	if err := w.fsw.Close(); err != nil {
		slog.Error("Error closing file watcher", logfields.Error(err))
	}
}
