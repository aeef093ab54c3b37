// Package serverapplier mirrors remote create/delete/rename events onto the
// client tree as placeholder operations, honoring the suppression set
// ClientSyncEngine owns so the apply doesn't bounce back out as a local
// change.
package serverapplier

import (
	"sync"

	"go.uber.org/zap"

	"github.com/nuviisync/core/internal/pathmap"
	"github.com/nuviisync/core/internal/remotefeed"
)

// Store is the subset of cloudfiles.PlaceholderStore this package needs.
type Store interface {
	CreateSingle(serverRelative, clientAbs string) error
	Delete(clientAbs string) error
	Rename(oldClientAbs, newClientAbs string) error
}

// SuppressionChecker reports whether a relative path's corresponding remote
// event should be dropped because it was caused by this engine's own write.
type SuppressionChecker interface {
	IsSuppressed(relativePath string) bool
}

// ShellNotifier is the external collaborator that tells Explorer a
// directory's contents changed, out of scope for this core (see §1) and
// stubbed to a no-op by default.
type ShellNotifier interface {
	NotifyChange(clientAbs string)
}

type noopNotifier struct{}

func (noopNotifier) NotifyChange(string) {}

// Applier consumes a remotefeed.Feed and applies each event to the client
// tree via Store, unless the affected path is currently suppressed.
type Applier struct {
	feed     remotefeed.Feed
	store    Store
	paths    *pathmap.Map
	suppress SuppressionChecker
	shell    ShellNotifier
	logger   *zap.Logger

	mu   sync.Mutex
	done chan struct{}
}

// New builds an Applier. shell may be nil, in which case shell notification
// is a no-op.
func New(feed remotefeed.Feed, store Store, paths *pathmap.Map, suppress SuppressionChecker, shell ShellNotifier, logger *zap.Logger) *Applier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if shell == nil {
		shell = noopNotifier{}
	}
	return &Applier{
		feed:     feed,
		store:    store,
		paths:    paths,
		suppress: suppress,
		shell:    shell,
		logger:   logger.With(zap.String("component", "serverapplier")),
	}
}

// Start begins consuming feed events in a background goroutine until Stop is
// called or the feed's event channel closes.
func (a *Applier) Start() {
	a.mu.Lock()
	if a.done != nil {
		a.mu.Unlock()
		return
	}
	done := make(chan struct{})
	a.done = done
	a.mu.Unlock()

	go a.loop(done)
}

// Stop halts event consumption. It does not close the underlying feed.
func (a *Applier) Stop() {
	a.mu.Lock()
	done := a.done
	a.done = nil
	a.mu.Unlock()
	if done != nil {
		close(done)
	}
}

func (a *Applier) loop(done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case ev, ok := <-a.feed.Events():
			if !ok {
				return
			}
			a.apply(ev)
		}
	}
}

func (a *Applier) apply(ev remotefeed.RemoteEvent) {
	if a.suppress.IsSuppressed(ev.RelativePath) {
		a.logger.Debug("dropping suppressed remote event", zap.String("path", ev.RelativePath))
		return
	}

	clientAbs := a.paths.ToClientAbs(ev.RelativePath)

	switch ev.Kind {
	case remotefeed.RemoteCreate:
		serverAbs := a.paths.ToServerAbs(ev.RelativePath)
		if err := a.store.CreateSingle(serverAbs, clientAbs); err != nil {
			a.logger.Warn("failed to create placeholder for remote entry", zap.String("path", ev.RelativePath), zap.Error(err))
			return
		}
		a.shell.NotifyChange(clientAbs)

	case remotefeed.RemoteDelete:
		if err := a.store.Delete(clientAbs); err != nil {
			a.logger.Warn("failed to delete placeholder for remote entry", zap.String("path", ev.RelativePath), zap.Error(err))
		}

	case remotefeed.RemoteRename:
		if a.suppress.IsSuppressed(ev.OldRelativePath) {
			a.logger.Debug("dropping suppressed remote rename", zap.String("path", ev.OldRelativePath))
			return
		}
		oldClientAbs := a.paths.ToClientAbs(ev.OldRelativePath)
		if err := a.store.Rename(oldClientAbs, clientAbs); err != nil {
			a.logger.Warn("failed to rename placeholder for remote entry", zap.String("old", ev.OldRelativePath), zap.String("new", ev.RelativePath), zap.Error(err))
		}
	}
}
