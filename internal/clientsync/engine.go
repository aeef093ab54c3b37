package clientsync

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nuviisync/core/internal/cloudfiles"
	"github.com/nuviisync/core/internal/pathmap"
	"github.com/nuviisync/core/internal/smb"
)

// Store is the subset of cloudfiles.PlaceholderStore the merge pipeline's
// executors need.
type Store interface {
	CreateSingle(serverRelative, clientAbs string) error
	Delete(clientAbs string) error
	Rename(oldClientAbs, newClientAbs string) error
	MarkInSync(clientAbs string) error
	MarkNotInSync(clientAbs string) error
	ConvertToPlaceholder(clientAbs string, identity []byte) error
	UpdateIdentity(clientAbs, newRelative string) error
}

// Remote is the subset of smb.Client the executors need against the server
// share.
type Remote interface {
	MkdirAll(remotePath string) error
	Upload(localPath, remotePath string) error
	Rename(oldRemotePath, newRemotePath string) error
	RemoveAll(remotePath string) error
	Exists(remotePath string) bool
}

// Config bundles the tunables spec.md §4.7 names.
type Config struct {
	Debounce       time.Duration
	MoveWindow     time.Duration
	SuppressionTTL time.Duration
	MaxRetries     int
	NumWorkers     int
}

// DefaultConfig matches spec.md's stated defaults.
func DefaultConfig() Config {
	return Config{
		Debounce:       3 * time.Second,
		MoveWindow:     5 * time.Second,
		SuppressionTTL: 5 * time.Second,
		MaxRetries:     3,
		NumWorkers:     runtime.GOMAXPROCS(0),
	}
}

// Engine is the heart of the client→server path: it merges bursty
// filesystem notifications into a minimal set of operations, detects
// cross-directory moves, executes matured operations against the server
// share, and owns the suppression set that keeps server-originated writes
// from being re-synced back to the server.
type Engine struct {
	cfg    Config
	paths  *pathmap.Map
	store  Store
	remote Remote
	retry  *RetryPolicy
	logger *zap.Logger

	mu            sync.Mutex
	pending       map[string]*PendingOperation
	deletedRecent map[string]*DeletedRecord
	suppressed    map[string]time.Time

	sem    chan struct{}
	wg     sync.WaitGroup
	events chan Event

	closed bool
}

// New builds an Engine. paths resolves between client/server absolute and
// relative paths; store and remote perform the actual filesystem work.
func New(cfg Config, paths *pathmap.Map, store Store, remote Remote, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 1
	}
	e := &Engine{
		cfg:           cfg,
		paths:         paths,
		store:         store,
		remote:        remote,
		logger:        logger.With(zap.String("component", "clientsync")),
		pending:       make(map[string]*PendingOperation),
		deletedRecent: make(map[string]*DeletedRecord),
		suppressed:    make(map[string]time.Time),
		sem:           make(chan struct{}, cfg.NumWorkers),
		events:        make(chan Event, 64),
	}
	e.retry = &RetryPolicy{
		MaxRetries:   cfg.MaxRetries,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.3,
		Logger:       e.logger,
	}
	return e
}

// Events returns the channel of terminal operation notifications an
// activity-display layer can subscribe to.
func (e *Engine) Events() <-chan Event { return e.events }

// Close stops accepting new work and waits for in-flight operations to
// finish. Pending, not-yet-matured operations are abandoned (their timers
// are stopped without executing).
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	for _, op := range e.pending {
		if op.timer != nil {
			op.timer.Stop()
		}
	}
	e.pending = make(map[string]*PendingOperation)
	e.mu.Unlock()

	e.wg.Wait()
	close(e.events)
}

func normalizeKey(path string) string {
	return strings.ToLower(filepath.Clean(path))
}

// --- localsource.Sink ---

// OnCreated handles a raw create notification, including move detection
// against a recent same-basename delete.
func (e *Engine) OnCreated(path string, isPlaceholderOnly bool) {
	key := normalizeKey(path)
	base := strings.ToLower(filepath.Base(path))

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	if record, ok := e.deletedRecent[base]; ok && time.Since(record.DeletedAt) <= e.cfg.MoveWindow {
		delete(e.deletedRecent, base)
		e.completeMoveLocked(record, path, key)
		return
	}

	if isPlaceholderOnly {
		// Originated from ServerApplier populating a placeholder, not a
		// user action.
		return
	}

	e.cancelLocked(key)
	e.insertLocked(key, &PendingOperation{
		Type:            OpCreate,
		CurrentPath:     path,
		CurrentRelative: e.relativeClient(path),
		CreatedAt:       time.Now(),
	})
}

// completeMoveLocked implements the five move-detection steps. Caller holds
// e.mu.
func (e *Engine) completeMoveLocked(record *DeletedRecord, newPath, newKey string) {
	oldKey := normalizeKey(record.OriginalPath)
	if op, ok := e.pending[oldKey]; ok && op.Type == OpDelete {
		e.stopLocked(op)
		delete(e.pending, oldKey)
	}
	if op, ok := e.pending[newKey]; ok && op.Type == OpDelete {
		e.stopLocked(op)
		delete(e.pending, newKey)
	}

	if e.store != nil {
		_ = e.store.MarkNotInSync(newPath)
	}

	e.cancelLocked(newKey)
	e.insertLocked(newKey, &PendingOperation{
		Type:             OpRename,
		CurrentPath:      newPath,
		OriginalPath:     record.OriginalPath,
		CurrentRelative:  e.relativeClient(newPath),
		OriginalRelative: record.RelativePath,
		IsDirectory:      record.IsDirectory,
		CreatedAt:        time.Now(),
	})
}

// OnRenamed handles a paired rename delivered by the local event source.
func (e *Engine) OnRenamed(oldPath, newPath string) {
	oldKey := normalizeKey(oldPath)
	newKey := normalizeKey(newPath)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	existing, ok := e.pending[oldKey]
	switch {
	case ok && existing.Type == OpCreate && existing.State == StatePending:
		e.stopLocked(existing)
		delete(e.pending, oldKey)
		existing.CurrentPath = newPath
		existing.CurrentRelative = e.relativeClient(newPath)
		e.insertLocked(newKey, existing)

	case ok && existing.Type == OpCreate && existing.State == StateInProgress:
		existing.queuedRename = &queuedRename{newPath: newPath}

	default:
		e.cancelLocked(newKey)
		e.insertLocked(newKey, &PendingOperation{
			Type:             OpRename,
			CurrentPath:      newPath,
			OriginalPath:     oldPath,
			CurrentRelative:  e.relativeClient(newPath),
			OriginalRelative: e.relativeClient(oldPath),
			CreatedAt:        time.Now(),
		})
	}
}

// OnDeleted handles a raw delete notification.
func (e *Engine) OnDeleted(path string) {
	key := normalizeKey(path)
	base := strings.ToLower(filepath.Base(path))

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	if existing, ok := e.pending[key]; ok && existing.Type == OpCreate && existing.State == StatePending {
		e.stopLocked(existing)
		delete(e.pending, key)
		return
	}

	e.cancelLocked(key)
	op := &PendingOperation{
		Type:            OpDelete,
		CurrentPath:     path,
		CurrentRelative: e.relativeClient(path),
		CreatedAt:       time.Now(),
	}
	e.insertLocked(key, op)
	e.deletedRecent[base] = &DeletedRecord{
		OriginalPath: path,
		RelativePath: op.CurrentRelative,
		FileName:     filepath.Base(path),
		DeletedAt:    time.Now(),
	}
}

// OnModified handles a raw content-change notification.
func (e *Engine) OnModified(path string) {
	key := normalizeKey(path)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	if existing, ok := e.pending[key]; ok {
		e.resetTimerLocked(existing, key)
		return
	}

	e.insertLocked(key, &PendingOperation{
		Type:            OpModify,
		CurrentPath:     path,
		CurrentRelative: e.relativeClient(path),
		CreatedAt:       time.Now(),
	})
}

// --- map/timer bookkeeping (caller holds e.mu) ---

func (e *Engine) insertLocked(key string, op *PendingOperation) {
	e.pending[key] = op
	e.resetTimerLocked(op, key)
}

func (e *Engine) cancelLocked(key string) {
	if op, ok := e.pending[key]; ok {
		e.stopLocked(op)
		delete(e.pending, key)
	}
}

func (e *Engine) stopLocked(op *PendingOperation) {
	if op.timer != nil {
		op.timer.Stop()
		op.timer = nil
	}
}

func (e *Engine) resetTimerLocked(op *PendingOperation, key string) {
	e.stopLocked(op)
	op.timer = time.AfterFunc(e.cfg.Debounce, func() { e.mature(key) })
}

func (e *Engine) relativeClient(abs string) string {
	rel, err := e.paths.ClientToRelative(abs)
	if err != nil {
		return ""
	}
	return rel
}

// --- debounce expiry & execution ---

func (e *Engine) mature(key string) {
	e.mu.Lock()
	op, ok := e.pending[key]
	if !ok || e.closed {
		e.mu.Unlock()
		return
	}
	op.State = StateInProgress
	op.timer = nil

	e.suppressLocked(op.CurrentRelative)
	if op.Type == OpRename && op.OriginalRelative != "" {
		e.suppressLocked(op.OriginalRelative)
	}
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.sem <- struct{}{}
		defer func() { <-e.sem }()
		e.runOp(key, op)
	}()
}

func (e *Engine) runOp(key string, op *PendingOperation) {
	attempts := 0
	err := e.retry.Do(context.Background(), op.Type.String(), func() error {
		attempts++
		return e.execute(op)
	})

	e.mu.Lock()
	delete(e.pending, key)
	var requeued *PendingOperation
	if err == nil && op.queuedRename != nil {
		newPath := op.queuedRename.newPath
		requeued = &PendingOperation{
			Type:             OpRename,
			CurrentPath:      newPath,
			OriginalPath:     op.CurrentPath,
			CurrentRelative:  e.relativeClient(newPath),
			OriginalRelative: op.CurrentRelative,
			IsDirectory:      op.IsDirectory,
			CreatedAt:        time.Now(),
		}
		e.insertLocked(normalizeKey(newPath), requeued)
	}
	e.mu.Unlock()

	if err == nil {
		op.State = StateCompleted
		e.emit(Event{Kind: EventCompleted, Type: op.Type, Path: op.CurrentPath, Attempts: attempts, Timestamp: time.Now()})
	} else {
		op.State = StateFailed
		e.logger.Error("operation failed terminally", zap.String("type", op.Type.String()), zap.String("path", op.CurrentPath), zap.Error(err))
		e.emit(Event{Kind: EventFailed, Type: op.Type, Path: op.CurrentPath, Err: err, Attempts: attempts, Timestamp: time.Now()})
	}
}

func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
		e.logger.Warn("event channel full, dropping activity notification", zap.String("path", ev.Path))
	}
}

func (e *Engine) execute(op *PendingOperation) error {
	switch op.Type {
	case OpCreate:
		if op.IsDirectory {
			return e.executeCreateDir(op)
		}
		return e.executeCreateFile(op)
	case OpRename:
		return e.executeRename(op)
	case OpDelete:
		return e.executeDelete(op)
	case OpModify:
		return e.executeModify(op)
	default:
		return fmt.Errorf("unknown operation type %v", op.Type)
	}
}

func (e *Engine) executeCreateFile(op *PendingOperation) error {
	if err := e.remote.MkdirAll(filepath.Dir(op.CurrentRelative)); err != nil {
		return err
	}
	if err := e.remote.Upload(op.CurrentPath, op.CurrentRelative); err != nil {
		return err
	}
	return e.markInSyncAuto(op.CurrentPath, op.CurrentRelative)
}

func (e *Engine) executeCreateDir(op *PendingOperation) error {
	if err := e.remote.MkdirAll(op.CurrentRelative); err != nil {
		return err
	}
	return e.markInSyncAuto(op.CurrentPath, op.CurrentRelative)
}

func (e *Engine) executeRename(op *PendingOperation) error {
	if op.OriginalRelative != "" && e.remote.Exists(op.OriginalRelative) {
		if err := e.remote.Rename(op.OriginalRelative, op.CurrentRelative); err != nil {
			return err
		}
	} else if !op.IsDirectory {
		if err := e.executeCreateFile(op); err != nil {
			return err
		}
	} else {
		if err := e.executeCreateDir(op); err != nil {
			return err
		}
	}

	if err := e.store.UpdateIdentity(op.CurrentPath, op.CurrentRelative); err != nil {
		e.logger.Warn("update identity after rename failed", zap.String("path", op.CurrentPath), zap.Error(err))
	}
	return e.markInSyncAuto(op.CurrentPath, op.CurrentRelative)
}

func (e *Engine) executeDelete(op *PendingOperation) error {
	return e.remote.RemoveAll(op.CurrentRelative)
}

func (e *Engine) executeModify(op *PendingOperation) error {
	if err := e.remote.Upload(op.CurrentPath, op.CurrentRelative); err != nil {
		return err
	}
	return e.markInSyncAuto(op.CurrentPath, op.CurrentRelative)
}

// markInSyncAuto converts a still-regular file to a placeholder (marking it
// in sync in the same call) or, if it is already a placeholder, simply
// flips the in-sync bit — the "auto-detects regular-file vs placeholder"
// behavior spec.md §4.7 describes for the post-upload markInSync step.
func (e *Engine) markInSyncAuto(clientAbs, relative string) error {
	state, err := cloudfiles.QueryPlaceholderState(clientAbs)
	if err != nil {
		return e.store.MarkInSync(clientAbs)
	}
	if !state.IsPlaceholder {
		return e.store.ConvertToPlaceholder(clientAbs, cloudfiles.EncodeIdentity(relative))
	}
	return e.store.MarkInSync(clientAbs)
}

// --- suppression ---

func (e *Engine) suppressLocked(relative string) {
	if relative == "" {
		return
	}
	e.suppressed[strings.ToLower(relative)] = time.Now().Add(e.cfg.SuppressionTTL)
}

// IsSuppressed lazily evicts an expired entry and reports whether relative
// is currently suppressed. ServerApplier calls this before acting on a
// remote event, so this engine's own writes don't bounce back as remote
// changes.
func (e *Engine) IsSuppressed(relative string) bool {
	key := strings.ToLower(relative)

	e.mu.Lock()
	defer e.mu.Unlock()

	expiresAt, ok := e.suppressed[key]
	if !ok {
		return false
	}
	if time.Now().After(expiresAt) {
		delete(e.suppressed, key)
		return false
	}
	return true
}

var _ Store = (*cloudfiles.PlaceholderStore)(nil)
var _ Remote = (*smb.Client)(nil)
