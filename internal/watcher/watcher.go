// Package watcher tracks the presence of source media files referenced by
// the timeline. When a file disappears the playback layer marks its clips
// offline instead of stalling the whole sequence.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
)

type Watcher interface {
	Watch(ctx context.Context, path string) error
	Unwatch(path string) error
	Stop() error
	OnChange(callback func(path string, event EventType))
}

// FSWatcher watches the parent directories of registered media files and
// reports events only for the files themselves. Renames count as deletes;
// the editor treats a moved file as gone until it is re-imported.
type FSWatcher struct {
	logger   *slog.Logger
	fw       *fsnotify.Watcher
	mu       sync.Mutex
	files    map[string]bool
	dirs     map[string]int
	callback func(path string, event EventType)
	done     chan struct{}
	once     sync.Once
}

func NewFSWatcher(logger *slog.Logger) (*FSWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &FSWatcher{
		logger: logger,
		fw:     fw,
		files:  make(map[string]bool),
		dirs:   make(map[string]int),
		done:   make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *FSWatcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.dispatch(event)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Warn("watcher error", "error", err)
			}
		}
	}
}

func (w *FSWatcher) dispatch(event fsnotify.Event) {
	path := filepath.Clean(event.Name)

	w.mu.Lock()
	tracked := w.files[path]
	cb := w.callback
	w.mu.Unlock()

	if !tracked || cb == nil {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		cb(path, EventDelete)
	case event.Op.Has(fsnotify.Create):
		cb(path, EventCreate)
	case event.Op.Has(fsnotify.Write):
		cb(path, EventModify)
	}
}

// Watch registers a media file. The enclosing directory is added to the
// notify set once, no matter how many of its files are registered.
func (w *FSWatcher) Watch(ctx context.Context, path string) error {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.files[path] {
		return nil
	}
	w.files[path] = true
	w.dirs[dir]++
	if w.dirs[dir] == 1 {
		if err := w.fw.Add(dir); err != nil {
			delete(w.files, path)
			w.dirs[dir]--
			return err
		}
	}
	return nil
}

// Unwatch drops a file, removing the directory watch when it was the last
// registered file in that directory.
func (w *FSWatcher) Unwatch(path string) error {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.files[path] {
		return nil
	}
	delete(w.files, path)
	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		delete(w.dirs, dir)
		return w.fw.Remove(dir)
	}
	return nil
}

func (w *FSWatcher) Stop() error {
	w.once.Do(func() { close(w.done) })
	return w.fw.Close()
}

func (w *FSWatcher) OnChange(callback func(path string, event EventType)) {
	w.mu.Lock()
	w.callback = callback
	w.mu.Unlock()
}

// StubWatcher satisfies Watcher for tests and headless setups where file
// presence tracking is not wanted.
type StubWatcher struct {
	logger   *slog.Logger
	callback func(path string, event EventType)
}

func NewStubWatcher(logger *slog.Logger) *StubWatcher {
	return &StubWatcher{logger: logger}
}

func (w *StubWatcher) Watch(ctx context.Context, path string) error { return nil }

func (w *StubWatcher) Unwatch(path string) error { return nil }

func (w *StubWatcher) Stop() error { return nil }

func (w *StubWatcher) OnChange(callback func(path string, event EventType)) {
	w.callback = callback
}

// Fire invokes the registered callback, for tests.
func (w *StubWatcher) Fire(path string, event EventType) {
	if w.callback != nil {
		w.callback(path, event)
	}
}
