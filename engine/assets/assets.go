package assets

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/framecore/engine/core"
)

const DefaultDebounce = 100 * time.Millisecond

// ShaderWatcher reports compiled shader blobs (.spv) that were written or created under a
// directory tree. Bursts of events on the same path collapse into a single change.
type ShaderWatcher struct {
	debounce time.Duration

	mutex    sync.Mutex
	pending  map[string]*time.Timer
	isClosed bool

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	changes  chan string
}

func NewShaderWatcher(dir string, debounce time.Duration) (*ShaderWatcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	sw := &ShaderWatcher{
		debounce: debounce,
		pending:  make(map[string]*time.Timer),
		fsnotify: fsWatch,
		changes:  make(chan string, 16),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}

	if err := sw.watchRecursive(dir); err != nil {
		fsWatch.Close()
		return nil, err
	}

	go sw.start()

	return sw, nil
}

// Changes delivers the path of every shader blob that changed. Closed by Close.
func (sw *ShaderWatcher) Changes() <-chan string {
	return sw.changes
}

// Drain returns every change currently queued without blocking.
func (sw *ShaderWatcher) Drain() []string {
	var out []string
	seen := map[string]bool{}
	for {
		select {
		case p, ok := <-sw.changes:
			if !ok {
				return out
			}
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		default:
			return out
		}
	}
}

func (sw *ShaderWatcher) Close() error {
	sw.mutex.Lock()
	if sw.isClosed {
		sw.mutex.Unlock()
		return errors.New("shader watcher already closed")
	}
	sw.isClosed = true
	for p, t := range sw.pending {
		t.Stop()
		delete(sw.pending, p)
	}
	sw.mutex.Unlock()

	close(sw.done)
	<-sw.stopped
	return nil
}

func (sw *ShaderWatcher) start() {
	defer close(sw.stopped)
	for {
		select {
		case e, ok := <-sw.fsnotify.Events:
			if !ok {
				return
			}
			if e.Op&fsnotify.Create != 0 {
				if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
					if err := sw.watchRecursive(e.Name); err != nil {
						core.LogWarn("failed to watch new shader directory %s: %s", e.Name, err)
					}
					continue
				}
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 && isShaderBlob(e.Name) {
				sw.schedule(e.Name)
			}

		case err, ok := <-sw.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("shader watcher: %s", err)

		case <-sw.done:
			sw.fsnotify.Close()
			sw.mutex.Lock()
			close(sw.changes)
			sw.mutex.Unlock()
			return
		}
	}
}

// schedule (re)arms the per-path timer so only the last event of a burst is delivered.
func (sw *ShaderWatcher) schedule(path string) {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()
	if sw.isClosed {
		return
	}
	if t, ok := sw.pending[path]; ok {
		t.Reset(sw.debounce)
		return
	}
	sw.pending[path] = time.AfterFunc(sw.debounce, func() {
		sw.mutex.Lock()
		defer sw.mutex.Unlock()
		delete(sw.pending, path)
		if sw.isClosed {
			return
		}
		select {
		case sw.changes <- path:
		default:
			core.LogWarn("shader change queue full, dropping %s", path)
		}
	})
}

// watchRecursive adds all directories under the given one to the watch list.
func (sw *ShaderWatcher) watchRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return sw.fsnotify.Add(walkPath)
		}
		return nil
	})
}

func isShaderBlob(path string) bool {
	return filepath.Ext(path) == ".spv"
}
