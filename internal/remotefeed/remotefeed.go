// Package remotefeed abstracts the source of create/delete/rename events on
// the server side of a sync root. The reference implementation polls the
// server tree on an interval and diffs snapshots; a push-based transport can
// satisfy the same Feed interface without the rest of the module changing.
package remotefeed

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RemoteEventKind names the kind of change PollingFeed detected.
type RemoteEventKind int

const (
	RemoteCreate RemoteEventKind = iota
	RemoteDelete
	RemoteRename
)

// RemoteEvent is delivered by a Feed for one changed server entry.
type RemoteEvent struct {
	Kind               RemoteEventKind
	RelativePath       string
	OldRelativePath    string // set for RemoteRename
	IsDir              bool
}

// Feed is the abstract source ServerApplier consumes.
type Feed interface {
	Events() <-chan RemoteEvent
}

// Lister is the subset of smb.Client PollingFeed needs to take a snapshot of
// the server tree.
type Lister interface {
	ListRemoteRecursive(remotePath string) ([]ListedEntry, error)
}

// ListedEntry mirrors the fields of smb.RemoteFileInfo PollingFeed needs,
// decoupling this package from the smb package's concrete type.
type ListedEntry struct {
	Path  string
	Size  int64
	IsDir bool
}

const (
	defaultPollInterval = 30 * time.Second
	minPollInterval     = 10 * time.Second
)

// PollingFeed is the reference RemoteChangeFeed: it periodically snapshots
// the server tree and diffs it against the previous snapshot.
type PollingFeed struct {
	lister       Lister
	logger       *zap.Logger
	pollInterval time.Duration

	mu       sync.Mutex
	running  bool
	cancel   chan struct{}
	done     chan struct{}
	events   chan RemoteEvent
	snapshot map[string]snapshotEntry
}

type snapshotEntry struct {
	size  int64
	isDir bool
}

// NewPollingFeed creates a feed over lister with the default 30s poll
// interval.
func NewPollingFeed(lister Lister, logger *zap.Logger) *PollingFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PollingFeed{
		lister:       lister,
		logger:       logger.With(zap.String("component", "remotefeed")),
		pollInterval: defaultPollInterval,
		events:       make(chan RemoteEvent, 64),
		snapshot:     make(map[string]snapshotEntry),
	}
}

// SetPollInterval overrides the poll interval, enforcing a 10s floor so a
// misconfiguration can't hammer the share.
func (f *PollingFeed) SetPollInterval(d time.Duration) {
	if d < minPollInterval {
		d = minPollInterval
	}
	f.mu.Lock()
	f.pollInterval = d
	f.mu.Unlock()
}

// Events returns the channel of detected remote changes.
func (f *PollingFeed) Events() <-chan RemoteEvent { return f.events }

// Start begins polling. The first poll establishes the baseline snapshot
// without emitting events (initial population is Registrar's job, not
// this feed's).
func (f *PollingFeed) Start() {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return
	}
	f.running = true
	f.cancel = make(chan struct{})
	f.done = make(chan struct{})
	interval := f.pollInterval
	f.mu.Unlock()

	go f.loop(interval)
}

// Stop halts polling.
func (f *PollingFeed) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	f.running = false
	cancel := f.cancel
	done := f.done
	f.mu.Unlock()

	close(cancel)
	<-done
}

func (f *PollingFeed) loop(interval time.Duration) {
	defer close(f.done)

	f.poll(true)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.cancel:
			return
		case <-ticker.C:
			f.poll(false)
		}
	}
}

func (f *PollingFeed) poll(baseline bool) {
	entries, err := f.lister.ListRemoteRecursive("")
	if err != nil {
		f.logger.Warn("failed to list server tree", zap.Error(err))
		return
	}

	current := make(map[string]snapshotEntry, len(entries))
	for _, e := range entries {
		current[e.Path] = snapshotEntry{size: e.Size, isDir: e.IsDir}
	}

	f.mu.Lock()
	previous := f.snapshot
	f.snapshot = current
	f.mu.Unlock()

	if baseline {
		return
	}

	for _, ev := range diff(previous, current) {
		select {
		case f.events <- ev:
		default:
			f.logger.Warn("remote event channel full, dropping event", zap.String("path", ev.RelativePath))
		}
	}
}

// diff compares two snapshots and returns the events needed to reconcile
// them, pairing same-basename delete/create pairs into a Rename.
func diff(previous, current map[string]snapshotEntry) []RemoteEvent {
	deleted := make(map[string]snapshotEntry)
	for path, entry := range previous {
		if _, ok := current[path]; !ok {
			deleted[path] = entry
		}
	}

	created := make(map[string]snapshotEntry)
	for path, entry := range current {
		if _, ok := previous[path]; !ok {
			created[path] = entry
		}
	}

	deletedByBase := make(map[string]string, len(deleted))
	for path := range deleted {
		deletedByBase[strings.ToLower(filepath.Base(path))] = path
	}

	var events []RemoteEvent
	for path, entry := range created {
		base := strings.ToLower(filepath.Base(path))
		if oldPath, ok := deletedByBase[base]; ok {
			events = append(events, RemoteEvent{
				Kind:            RemoteRename,
				RelativePath:    path,
				OldRelativePath: oldPath,
				IsDir:           entry.isDir,
			})
			delete(deleted, oldPath)
			continue
		}
		events = append(events, RemoteEvent{Kind: RemoteCreate, RelativePath: path, IsDir: entry.isDir})
	}

	for path, entry := range deleted {
		events = append(events, RemoteEvent{Kind: RemoteDelete, RelativePath: path, IsDir: entry.isDir})
	}

	return events
}
