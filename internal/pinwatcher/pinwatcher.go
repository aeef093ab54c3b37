// Package pinwatcher observes pin/unpin attribute changes on placeholders
// and drives the corresponding hydrate/dehydrate transition.
//
// Explorer exposes "Always keep on this device" / "Free up space" as
// ordinary file-attribute toggles; there is no CFAPI callback for them.
// Watcher reacts to the resulting attribute-change notification rather than
// intercepting the request itself.
package pinwatcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/nuviisync/core/internal/cloudfiles"
)

// Store is the subset of PlaceholderStore the dehydration protocol needs.
type Store interface {
	Hydrate(clientAbs string, offset, length int64) error
	MarkInSync(clientAbs string) error
	ConvertAndDehydrate(clientAbs string, identity []byte) error
	Dehydrate(clientAbs string, offset, length int64) error
}

// Watcher watches a client tree for CF_PIN_STATE transitions and drives
// hydration (on pin) or dehydration (on unpin) to match.
type Watcher struct {
	root   string
	store  Store
	logger *zap.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}

	stateMu sync.Mutex
	last    map[string]cloudfiles.CF_PIN_STATE
}

// New creates a pin watcher rooted at clientRoot. store performs the
// hydrate/dehydrate operations a transition requires.
func New(clientRoot string, store Store, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		root:   clientRoot,
		store:  store,
		logger: logger.With(zap.String("component", "pinwatcher")),
		last:   make(map[string]cloudfiles.CF_PIN_STATE),
	}
}

// Start begins watching. It may be called again after Stop.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := addRecursive(fw, w.root, w.logger); err != nil {
		fw.Close()
		return fmt.Errorf("watch %s: %w", w.root, err)
	}

	w.watcher = fw
	w.done = make(chan struct{})
	go w.loop(fw, w.done)
	return nil
}

// Stop closes the watcher and halts the event loop.
func (w *Watcher) Stop() {
	w.mu.Lock()
	fw := w.watcher
	done := w.done
	w.watcher = nil
	w.mu.Unlock()

	if fw == nil {
		return
	}
	fw.Close()
	if done != nil {
		<-done
	}
}

func (w *Watcher) loop(fw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Chmod == 0 {
				if event.Op&fsnotify.Create != 0 {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						addRecursive(fw, event.Name, w.logger)
					}
				}
				continue
			}
			w.handleAttributeChange(event.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
			go w.restart()
			return
		}
	}
}

func (w *Watcher) restart() {
	w.logger.Warn("restarting pin watcher after observer error")
	w.Stop()
	if err := w.Start(); err != nil {
		w.logger.Error("failed to restart pin watcher", zap.Error(err))
	}
}

func (w *Watcher) handleAttributeChange(path string) {
	state, err := cloudfiles.QueryPinState(path)
	if err != nil {
		return
	}
	if state == cloudfiles.CF_PIN_STATE_UNSPECIFIED {
		w.stateMu.Lock()
		delete(w.last, path)
		w.stateMu.Unlock()
		return
	}

	w.stateMu.Lock()
	prev, seen := w.last[path]
	w.last[path] = state
	w.stateMu.Unlock()
	if seen && prev == state {
		return
	}

	switch state {
	case cloudfiles.CF_PIN_STATE_PINNED:
		w.onPinned(path)
	case cloudfiles.CF_PIN_STATE_UNPINNED:
		w.onUnpinned(path)
	}
}

func (w *Watcher) onPinned(path string) {
	if err := w.store.Hydrate(path, 0, -1); err != nil {
		w.logger.Warn("hydrate on pin failed", zap.String("path", path), zap.Error(err))
		return
	}
	if err := w.store.MarkInSync(path); err != nil {
		w.logger.Warn("mark in sync after pin-hydrate failed", zap.String("path", path), zap.Error(err))
	}
}

// onUnpinned follows the five-step dehydration protocol: an entry that is
// already offline is left alone; one that isn't yet a placeholder is
// converted and dehydrated in a single call; one that is a placeholder but
// not yet in sync is marked in sync first so the filter accepts the
// subsequent dehydrate; the dehydrate itself is best-effort, and on failure
// the entry is left marked in sync rather than in an unknown state.
func (w *Watcher) onUnpinned(path string) {
	state, err := cloudfiles.QueryPlaceholderState(path)
	if err != nil {
		w.logger.Debug("query placeholder state failed", zap.String("path", path), zap.Error(err))
		return
	}
	if !state.Exists || state.Offline {
		return
	}

	if !state.IsPlaceholder {
		rel, err := relativeTo(w.root, path)
		if err != nil {
			w.logger.Warn("cannot derive server-relative identity for unpin", zap.String("path", path), zap.Error(err))
			return
		}
		if err := w.store.ConvertAndDehydrate(path, cloudfiles.EncodeIdentity(rel)); err != nil {
			w.logger.Warn("convert+dehydrate on unpin failed", zap.String("path", path), zap.Error(err))
		}
		return
	}

	if !state.InSync {
		if err := w.store.MarkInSync(path); err != nil {
			w.logger.Warn("mark in sync before unpin-dehydrate failed", zap.String("path", path), zap.Error(err))
			return
		}
		time.Sleep(50 * time.Millisecond)
	}

	if err := w.store.Dehydrate(path, 0, -1); err != nil {
		w.logger.Warn("dehydrate on unpin failed, leaving content cached", zap.String("path", path), zap.Error(err))
		if markErr := w.store.MarkInSync(path); markErr != nil {
			w.logger.Debug("best-effort mark in sync after failed dehydrate also failed", zap.String("path", path), zap.Error(markErr))
		}
		return
	}
	if err := w.store.MarkInSync(path); err != nil {
		w.logger.Warn("mark in sync after unpin-dehydrate failed", zap.String("path", path), zap.Error(err))
	}
}

func relativeTo(root, clientAbs string) (string, error) {
	rel, err := filepath.Rel(root, clientAbs)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%s is outside root %s", clientAbs, root)
	}
	return filepath.ToSlash(rel), nil
}

func addRecursive(w *fsnotify.Watcher, root string, logger *zap.Logger) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if name := info.Name(); len(name) > 1 && strings.HasPrefix(name, ".") {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			logger.Debug("failed to watch directory", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}
