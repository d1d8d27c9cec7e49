package profile

import (
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the registry when profile files change on disk, so the
// role catalog seen by the strategies can change between turns.
type Watcher struct {
	dir      string
	registry *Registry
	onReload func(count int, err error)

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher starts watching dir for profile changes. onReload, if
// non-nil, is called after every reload attempt with the new profile count
// or the load error.
func NewWatcher(dir string, registry *Registry, onReload func(count int, err error)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		dir:      dir,
		registry: registry,
		onReload: onReload,
		watcher:  fw,
		done:     make(chan struct{}),
	}
	go w.watch()
	return w, nil
}

// watch reacts to create/write/remove/rename events on profile files.
func (w *Watcher) watch() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isProfileFile(event.Name) {
				continue
			}
			const ops = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename
			if event.Op&ops == 0 {
				continue
			}
			w.reload()
		case <-w.watcher.Errors:
			// Keep watching; a missed reload is recovered on the next event.
		}
	}
}

// reload swaps the registry contents for the current on-disk catalog.
// A load error leaves the previous catalog in place.
func (w *Watcher) reload() {
	profiles, err := LoadDir(w.dir)
	if err == nil {
		w.registry.ReplaceAll(profiles)
	}
	if w.onReload != nil {
		w.onReload(len(profiles), err)
	}
}

// Close stops the watcher.
func (w *Watcher) Close() {
	close(w.done)
	w.watcher.Close()
}

func isProfileFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
