//go:build !windows

package syncroot

import (
	"time"

	"go.uber.org/zap"

	"github.com/nuviisync/core/internal/clientsync"
	"github.com/nuviisync/core/internal/cloudfiles"
	"github.com/nuviisync/core/internal/pathmap"
	"github.com/nuviisync/core/internal/smb"
)

// Config mirrors the windows build's Config so callers compile unchanged.
type Config struct {
	ProviderName    string
	ProviderVersion string
	ProviderID      cloudfiles.GUID
	UserSID         string
	AccountName     string
}

// IndexerRegistrar mirrors the windows build's interface.
type IndexerRegistrar interface {
	Add(clientPath string) error
	Remove(clientPath string) error
}

// ShellServiceHost mirrors the windows build's interface.
type ShellServiceHost interface {
	Start() error
	Stop() error
}

// Registrar is a non-functional stand-in: the Cloud Files API this package
// drives is Windows-only.
type Registrar struct{}

// New always fails on non-Windows platforms.
func New(cfg Config, paths *pathmap.Map, remote *smb.Client, syncCfg clientsync.Config, pollInterval time.Duration, indexer IndexerRegistrar, shellHost ShellServiceHost, logger *zap.Logger) (*Registrar, error) {
	return nil, cloudfiles.ErrUnsupportedPlatform
}

func (r *Registrar) Start() error      { return cloudfiles.ErrUnsupportedPlatform }
func (r *Registrar) Stop() error       { return cloudfiles.ErrUnsupportedPlatform }
func (r *Registrar) Unregister() error { return cloudfiles.ErrUnsupportedPlatform }
