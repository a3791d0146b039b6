package texture

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"mu-client/internal/logging"
)

// Watcher invalidates cache entries when their files change on disk.
type Watcher struct {
	cache   *Cache
	index   *Index
	watcher *fsnotify.Watcher
	logger  *log.Logger
	changes chan string
	done    chan struct{}
}

// Watch starts watching root and every directory below it.
func Watch(root string, cache *Cache, logger *log.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		cache:   cache,
		index:   cache.index,
		watcher: fw,
		logger:  logging.OrDiscard(logger),
		changes: make(chan string, 16),
		done:    make(chan struct{}),
	}
	if err := w.addRecursive(root); err != nil {
		fw.Close()
		return nil, err
	}
	go w.start()
	return w, nil
}

// Changes delivers the path of every texture invalidated. Sends are dropped
// when nobody is reading.
func (w *Watcher) Changes() <-chan string { return w.changes }

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(p)
		}
		return nil
	})
}

func (w *Watcher) start() {
	for {
		select {
		case e, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(e)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("texture watch", "err", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handle(e fsnotify.Event) {
	if e.Has(fsnotify.Create) {
		if fi, err := os.Stat(e.Name); err == nil && fi.IsDir() {
			if err := w.addRecursive(e.Name); err != nil {
				w.logger.Warn("texture watch", "dir", e.Name, "err", err)
			}
			return
		}
	}
	ext := strings.ToLower(filepath.Ext(e.Name))
	if ext != ".ozj" && ext != ".ozt" {
		return
	}
	if e.Has(fsnotify.Create) {
		w.index.Add(e.Name)
	}
	if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if w.cache.Invalidate(e.Name) {
		w.logger.Debug("texture changed", "path", e.Name, "op", e.Op.String())
		select {
		case w.changes <- e.Name:
		default:
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
