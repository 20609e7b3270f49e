// Package watcher delivers file-change events for a directory tree.
// fsnotify watches are per-directory, so the watcher walks the tree at
// startup and adds new directories as they appear. Consumers get a
// bounded event channel; when it is full events are dropped, which is
// safe here because any surviving event arms the same debounce window
// and a snapshot always covers the whole tree.
package watcher

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Event is one observed change to a file under the watched root.
type Event struct {
	Path string
	Op   string
}

// Watcher watches a directory tree recursively.
type Watcher struct {
	root   string
	fsw    *fsnotify.Watcher
	events chan Event
	done   chan struct{}
}

// New starts watching the tree rooted at root. buffer bounds the event
// channel.
func New(root string, buffer int) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating fsnotify watcher")
	}

	w := &Watcher{
		root:   absRoot,
		fsw:    fsw,
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}

	if err := w.addTree(absRoot); err != nil {
		fsw.Close()
		return nil, err
	}

	go w.loop()
	return w, nil
}

// Events is the channel change events are delivered on. It is closed
// when the watcher shuts down.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Close stops watching and closes the event channel.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
		return nil
	default:
	}
	close(w.done)
	return w.fsw.Close()
}

// addTree adds watches for dir and every directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// A directory can vanish between the event and the walk.
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return errors.Wrapf(err, "watching %s", path)
		}
		return nil
	})
}

func (w *Watcher) loop() {
	defer close(w.events)
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Errorf("watcher: %v", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	path := ev.Name
	if !w.under(path) {
		return
	}

	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Lstat(path); err == nil && info.IsDir() {
			// New directory: watch it and whatever got created inside
			// before the watch landed. Directory events themselves do
			// not count as changes.
			if err := w.addTree(path); err != nil {
				log.Errorf("watcher: adding new directory %s: %v", path, err)
			}
			return
		}
	}

	// Permission-only churn doesn't change content.
	if ev.Op == fsnotify.Chmod {
		return
	}

	select {
	case w.events <- Event{Path: path, Op: ev.Op.String()}:
	default:
		log.Debugf("watcher: event buffer full, dropping %s", path)
	}
}

func (w *Watcher) under(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return abs == w.root || strings.HasPrefix(abs, w.root+string(os.PathSeparator))
}
