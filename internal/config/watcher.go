package config

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads display settings while the TUI is running by watching the
// config file for writes. Events are debounced because editors typically
// fire several writes per save.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	onChange func()
	done     chan struct{}
}

// NewWatcher watches the config file at path and invokes onChange after a
// settled write. The parent directory is watched so atomic-rename saves are
// seen too.
func NewWatcher(path string, onChange func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		_ = fsw.Close()
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher:  fsw,
		path:     abs,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	go w.watch()
	return w, nil
}

func (w *Watcher) watch() {
	var debounce *time.Timer

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(100*time.Millisecond, w.onChange)

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
