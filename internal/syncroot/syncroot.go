//go:build windows
// +build windows

// Package syncroot drives the sync root's startup and shutdown sequence,
// wiring together every other component in this module against one
// registered Cloud Files sync root.
package syncroot

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nuviisync/core/internal/clientsync"
	"github.com/nuviisync/core/internal/cloudfiles"
	"github.com/nuviisync/core/internal/localsource"
	"github.com/nuviisync/core/internal/pathmap"
	"github.com/nuviisync/core/internal/pinwatcher"
	"github.com/nuviisync/core/internal/remotefeed"
	"github.com/nuviisync/core/internal/serverapplier"
	"github.com/nuviisync/core/internal/smb"
)

// Config carries everything Registrar needs to identify and populate a sync
// root. It is the subset of config.SyncRootConfig this package consumes.
type Config struct {
	ProviderName    string
	ProviderVersion string
	ProviderID      cloudfiles.GUID
	UserSID         string
	AccountName     string

	// Dehydration, left at its zero value (Enabled: false), leaves every
	// placeholder's hydration state exactly as pinwatcher/clientsync set it;
	// spec.md §4.6 never requires automatic dehydration on its own.
	Dehydration cloudfiles.DehydrationPolicy
}

// Identity returns the OS shell sync-root identity string, "{ProviderName}!{UserSID}!{AccountName}"
// per spec.md §6.
func (c Config) Identity() string {
	return fmt.Sprintf("%s!%s!%s", c.ProviderName, c.UserSID, c.AccountName)
}

// IndexerRegistrar adds/removes a local folder from the OS search indexer,
// an external collaborator out of scope for this core (spec.md §1/§4.10).
type IndexerRegistrar interface {
	Add(clientPath string) error
	Remove(clientPath string) error
}

// ShellServiceHost starts/stops the shell-COM class-object host that
// registers custom-state, thumbnail, and context-menu objects — also an
// external collaborator out of scope here.
type ShellServiceHost interface {
	Start() error
	Stop() error
}

type noopIndexer struct{}

func (noopIndexer) Add(string) error    { return nil }
func (noopIndexer) Remove(string) error { return nil }

type noopShellHost struct{}

func (noopShellHost) Start() error { return nil }
func (noopShellHost) Stop() error  { return nil }

// Registrar drives the six-step startup sequence and its reversed five-step
// shutdown (spec.md §4.10), owning every long-lived component this module
// builds: PlaceholderStore, PinWatcher, LocalEventSource, ClientSyncEngine,
// RemoteChangeFeed, and ServerApplier.
type Registrar struct {
	cfg    Config
	paths  *pathmap.Map
	remote *smb.Client
	logger *zap.Logger

	indexer   IndexerRegistrar
	shellHost ShellServiceHost

	syncRootMgr *cloudfiles.SyncRootManager
	store       *cloudfiles.PlaceholderStore
	hydration   *cloudfiles.HydrationHandler

	pinWatcher  *pinwatcher.Watcher
	localSource *localsource.Source
	syncEngine  *clientsync.Engine
	feed        *remotefeed.PollingFeed
	applier     *serverapplier.Applier
	dehydrator  *cloudfiles.DehydrationManager

	started bool
}

// New builds a Registrar. indexer and shellHost may be nil, defaulting to
// no-ops, since both name external collaborators this core doesn't own.
// pollInterval of zero keeps remotefeed.PollingFeed's own default.
func New(cfg Config, paths *pathmap.Map, remote *smb.Client, syncCfg clientsync.Config, pollInterval time.Duration, indexer IndexerRegistrar, shellHost ShellServiceHost, logger *zap.Logger) (*Registrar, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if indexer == nil {
		indexer = noopIndexer{}
	}
	if shellHost == nil {
		shellHost = noopShellHost{}
	}

	syncRootMgr, err := cloudfiles.NewSyncRootManager(cloudfiles.SyncRootConfig{
		Path:            paths.ClientRoot(),
		ProviderName:    cfg.ProviderName,
		ProviderVersion: cfg.ProviderVersion,
		ProviderID:      cfg.ProviderID,
	})
	if err != nil {
		return nil, fmt.Errorf("build sync root manager: %w", err)
	}

	store := cloudfiles.NewPlaceholderStore(remote, logger)
	provider := cloudfiles.NewSMBDataProvider(remote)
	hydration := cloudfiles.NewHydrationHandler(paths.ClientRoot(), provider, store, logger)

	syncEngine := clientsync.New(syncCfg, paths, store, remote, logger)
	pw := pinwatcher.New(paths.ClientRoot(), store, logger)
	localSrc := localsource.NewSource(paths.ClientRoot(), syncEngine, logger)
	feed := remotefeed.NewPollingFeed(&remotefeed.SMBLister{Client: remote}, logger)
	if pollInterval > 0 {
		feed.SetPollInterval(pollInterval)
	}
	applier := serverapplier.New(feed, store, paths, syncEngine, nil, logger)
	dehydrator := cloudfiles.NewDehydrationManager(syncRootMgr, cfg.Dehydration, logger)

	return &Registrar{
		cfg:         cfg,
		paths:       paths,
		remote:      remote,
		logger:      logger.With(zap.String("component", "syncroot")),
		indexer:     indexer,
		shellHost:   shellHost,
		syncRootMgr: syncRootMgr,
		store:       store,
		hydration:   hydration,
		pinWatcher:  pw,
		localSource: localSrc,
		syncEngine:  syncEngine,
		feed:        feed,
		applier:     applier,
		dehydrator:  dehydrator,
	}, nil
}

// Start runs the six-step startup sequence. Each step must succeed before
// the next begins; a failing step leaves every prior step's effect in place
// for the caller to unwind via Stop/Unregister as it sees fit.
func (r *Registrar) Start() error {
	r.logger.Info("starting sync root", zap.String("client_path", r.paths.ClientRoot()))

	// (1) shell-COM service host: custom-state/thumbnail/context-menu class objects.
	if err := r.shellHost.Start(); err != nil {
		return fmt.Errorf("start shell service host: %w", err)
	}

	// (2) search indexer.
	if err := r.indexer.Add(r.paths.ClientRoot()); err != nil {
		return fmt.Errorf("register client path with search indexer: %w", err)
	}

	// (3) register the sync root identity and policies.
	if err := r.syncRootMgr.Register(); err != nil {
		return fmt.Errorf("register sync root: %w", err)
	}

	// (4) connect the filter-callback channel, HydrationHandler pinned for
	// the connection's lifetime.
	r.syncRootMgr.SetFetchDataCallback(r.hydration.HandleFetchDataCallback)
	r.syncRootMgr.SetCancelFetchCallback(r.hydration.CancelHydrationByPath)
	if err := r.syncRootMgr.Connect(); err != nil {
		return fmt.Errorf("connect sync root callbacks: %w", err)
	}

	// (5) populate initial placeholders by walking serverPath.
	if err := r.store.CreateTree(r.paths.ServerRoot(), "", r.paths.ClientRoot()); err != nil {
		return fmt.Errorf("populate initial placeholders: %w", err)
	}

	// (6) start the watchers/engines, in the order that lets each one's
	// dependencies already be receiving events.
	if err := r.pinWatcher.Start(); err != nil {
		return fmt.Errorf("start pin watcher: %w", err)
	}
	if err := r.localSource.Start(); err != nil {
		return fmt.Errorf("start local event source: %w", err)
	}
	r.feed.Start()
	r.applier.Start()
	if r.cfg.Dehydration.Enabled {
		if err := r.dehydrator.Start(context.Background()); err != nil {
			return fmt.Errorf("start dehydration manager: %w", err)
		}
	}

	r.started = true
	r.logger.Info("sync root started")
	return nil
}

// Stop reverses the last five steps of Start, leaving the sync root
// registered. Unregistration is a separate, explicit operation.
func (r *Registrar) Stop() error {
	if !r.started {
		return nil
	}
	r.logger.Info("stopping sync root")

	if r.dehydrator.IsRunning() {
		r.dehydrator.Stop()
	}
	r.applier.Stop()
	r.feed.Stop()
	r.localSource.Stop()
	r.pinWatcher.Stop()
	r.syncEngine.Close()

	if err := r.syncRootMgr.Disconnect(); err != nil {
		r.logger.Warn("disconnect sync root failed", zap.Error(err))
	}

	if err := r.indexer.Remove(r.paths.ClientRoot()); err != nil {
		r.logger.Warn("remove client path from search indexer failed", zap.Error(err))
	}

	if err := r.shellHost.Stop(); err != nil {
		r.logger.Warn("stop shell service host failed", zap.Error(err))
	}

	r.started = false
	r.logger.Info("sync root stopped")
	return nil
}

// Unregister removes the sync root registration entirely, discarding every
// placeholder. Not part of normal shutdown.
func (r *Registrar) Unregister() error {
	return r.syncRootMgr.Unregister()
}
