package scanner

import (
	"github.com/afd-project/afd/internal/afdlog"
	"github.com/afd-project/afd/internal/dirconfig"
	"github.com/fsnotify/fsnotify"
)

// Watcher wraps fsnotify to give inotify-enabled directories a fast path
// ahead of the regular tick. It supplements, never replaces, the
// tick-driven poll — a missed or coalesced event still gets picked up
// by the next tick's full Scan.
type Watcher struct {
	fs   *fsnotify.Watcher
	dirs map[string]*dirconfig.DirectoryEntry
}

// NewWatcher creates a Watcher. Callers should Close it on shutdown.
func NewWatcher() (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{fs: fw, dirs: map[string]*dirconfig.DirectoryEntry{}}, nil
}

// Register starts watching dir.Path if dir.Inotify is non-zero. It is a
// no-op for directories without an inotify bitmask.
func (w *Watcher) Register(dir *dirconfig.DirectoryEntry) error {
	if dir.Inotify == 0 {
		return nil
	}
	if err := w.fs.Add(dir.Path); err != nil {
		afdlog.Warnf(dir.Alias, "inotify registration failed, falling back to tick-only polling: %v", err)
		return err
	}
	w.dirs[dir.Path] = dir
	return nil
}

// Events exposes the fast-path trigger channel: a DirectoryEntry arrives
// whenever a qualifying event (per its validated inotify bitmask) is
// observed for one of the registered directories.
func (w *Watcher) Events() <-chan *dirconfig.DirectoryEntry {
	out := make(chan *dirconfig.DirectoryEntry, 16)
	go func() {
		defer close(out)
		for {
			select {
			case ev, ok := <-w.fs.Events:
				if !ok {
					return
				}
				w.dispatch(ev, out)
			case err, ok := <-w.fs.Errors:
				if !ok {
					return
				}
				afdlog.Warnf("inotify", "watcher error: %v", err)
			}
		}
	}()
	return out
}

func (w *Watcher) dispatch(ev fsnotify.Event, out chan<- *dirconfig.DirectoryEntry) {
	for path, dir := range w.dirs {
		if !isWithin(path, ev.Name) {
			continue
		}
		if !qualifies(dir.Inotify, ev.Op) {
			continue
		}
		out <- dir
		return
	}
}

func qualifies(mask dirconfig.InotifyFlag, op fsnotify.Op) bool {
	if mask&dirconfig.InotifyCreate != 0 && op&fsnotify.Create != 0 {
		return true
	}
	if mask&dirconfig.InotifyClose != 0 && op&fsnotify.Write != 0 {
		return true
	}
	if mask&dirconfig.InotifyRename != 0 && op&(fsnotify.Rename|fsnotify.Remove) != 0 {
		return true
	}
	return false
}

func isWithin(dir, path string) bool {
	if len(path) < len(dir) {
		return false
	}
	return path[:len(dir)] == dir
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error { return w.fs.Close() }
