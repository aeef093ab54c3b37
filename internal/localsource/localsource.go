// Package localsource observes the client tree for create/rename/delete/
// modify activity, filters out temp-file and server-echo noise, and
// delivers the remainder to a sink for merging.
package localsource

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
	"github.com/nuviisync/core/internal/tempfile"
)

// isPlaceholderOnly reports whether path is a reparse-point cloud
// placeholder whose state indicates it originated from server-side
// population rather than a user edit.
func isPlaceholderOnly(path string) bool {
	return cloudfiles.IsPlaceholderOnly(path)
}

// Sink receives classified filesystem events. ClientSyncEngine implements
// this interface.
type Sink interface {
	OnCreated(path string, isPlaceholderOnly bool)
	OnRenamed(oldPath, newPath string)
	OnDeleted(path string)
	OnModified(path string)
}

// renamePairWindow bounds how long a bare Rename (old name gone) waits for
// the paired Create (new name) that the Windows ReadDirectoryChangesW
// backend delivers as two separate fsnotify events.
const renamePairWindow = 500 * time.Millisecond

// Source watches clientRoot recursively and classifies raw notifier events
// per the rules in the engine's merge pipeline.
type Source struct {
	root   string
	sink   Sink
	logger *zap.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}

	pendingMu sync.Mutex
	pending   map[string]*pendingRename // basename -> pending rename-from
}

type pendingRename struct {
	oldPath string
	timer   *time.Timer
}

// NewSource creates a watcher rooted at clientRoot. Events are delivered to
// sink until Stop is called.
func NewSource(root string, sink Sink, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		root:    root,
		sink:    sink,
		logger:  logger.With(zap.String("component", "localsource")),
		pending: make(map[string]*pendingRename),
	}
}

// Start begins watching. It may be called again after Stop to restart
// following an observer error.
func (s *Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := addRecursive(w, s.root, s.logger); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", s.root, err)
	}

	s.watcher = w
	s.done = make(chan struct{})
	go s.loop(w, s.done)
	return nil
}

// Stop closes the watcher and halts the event loop.
func (s *Source) Stop() {
	s.mu.Lock()
	w := s.watcher
	done := s.done
	s.watcher = nil
	s.mu.Unlock()

	if w == nil {
		return
	}
	w.Close()
	if done != nil {
		<-done
	}
}

// restart recovers from a buffer-overflow or other notifier error with an
// immediate stop-then-start cycle, per the error-recovery rule.
func (s *Source) restart() {
	s.logger.Warn("restarting local event source after observer error")
	s.Stop()
	if err := s.Start(); err != nil {
		s.logger.Error("failed to restart local event source", zap.Error(err))
	}
}

func (s *Source) loop(w *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			s.handle(w, event)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watcher error", zap.Error(err))
			go s.restart()
			return
		}
	}
}

func (s *Source) handle(w *fsnotify.Watcher, event fsnotify.Event) {
	switch {
	case event.Op&fsnotify.Create != 0:
		s.handleCreate(w, event.Name)
	case event.Op&fsnotify.Rename != 0:
		s.handleRenameFrom(event.Name)
	case event.Op&fsnotify.Remove != 0:
		s.handleRemove(event.Name)
	case event.Op&fsnotify.Write != 0:
		s.handleWrite(event.Name)
	}
}

func (s *Source) handleCreate(w *fsnotify.Watcher, path string) {
	base := filepath.Base(path)

	s.pendingMu.Lock()
	pr, ok := s.pending[base]
	if !ok {
		// A rename in place changes the name but keeps the directory.
		dir := filepath.Dir(path)
		for key, candidate := range s.pending {
			if filepath.Dir(candidate.oldPath) == dir {
				pr, ok, base = candidate, true, key
				break
			}
		}
	}
	if ok {
		delete(s.pending, base)
		pr.timer.Stop()
		s.pendingMu.Unlock()

		oldTemp := tempfile.ClassifyByNameOnly(pr.oldPath).Temp
		newTemp := tempfile.Classify(path).Temp
		switch {
		case oldTemp && newTemp:
			// both sides noise, drop entirely
		case oldTemp && !newTemp:
			s.deliverCreate(w, path)
		case !oldTemp && newTemp:
			s.sink.OnDeleted(pr.oldPath)
		default:
			s.sink.OnRenamed(pr.oldPath, path)
		}
		return
	}
	s.pendingMu.Unlock()

	s.deliverCreate(w, path)
}

func (s *Source) deliverCreate(w *fsnotify.Watcher, path string) {
	c := tempfile.Classify(path)
	if c.Temp {
		return
	}

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		if err := addRecursive(w, path, s.logger); err != nil {
			s.logger.Debug("failed to watch new directory", zap.String("path", path), zap.Error(err))
		}
	}

	s.sink.OnCreated(path, isPlaceholderOnly(path))
}

func (s *Source) handleRenameFrom(oldPath string) {
	base := filepath.Base(oldPath)

	timer := time.AfterFunc(renamePairWindow, func() {
		s.pendingMu.Lock()
		pr, ok := s.pending[base]
		if ok && pr.oldPath == oldPath {
			delete(s.pending, base)
		}
		s.pendingMu.Unlock()
		if !ok {
			return
		}
		// No paired Create arrived in time: this was a genuine delete
		// (move out of the tree, or deletion via a rename-to-trash).
		if tempfile.ClassifyByNameOnly(oldPath).Temp {
			return
		}
		s.sink.OnDeleted(oldPath)
	})

	s.pendingMu.Lock()
	if prev, ok := s.pending[base]; ok {
		prev.timer.Stop()
	}
	s.pending[base] = &pendingRename{oldPath: oldPath, timer: timer}
	s.pendingMu.Unlock()
}

func (s *Source) handleRemove(path string) {
	if tempfile.ClassifyByNameOnly(path).Temp {
		return
	}
	s.sink.OnDeleted(path)
}

func (s *Source) handleWrite(path string) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return
	}
	if tempfile.Classify(path).Temp {
		return
	}
	if isPlaceholderOnly(path) {
		return
	}
	s.sink.OnModified(path)
}

// addRecursive adds root and every non-hidden subdirectory to w.
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
