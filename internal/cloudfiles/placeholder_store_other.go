//go:build !windows

// Package cloudfiles provides Go bindings for the Windows Cloud Files API.
package cloudfiles

import (
	"errors"

	"go.uber.org/zap"

	"github.com/nuviisync/core/internal/smb"
)

// ErrUnsupportedPlatform is returned by every PlaceholderStore method on
// platforms without cldapi.dll, so the rest of the module and its tests
// build and run on any OS.
var ErrUnsupportedPlatform = errors.New("cloudfiles: placeholder operations require Windows")

// PlaceholderStore is a no-op stand-in for the Windows implementation.
type PlaceholderStore struct{}

// NewPlaceholderStore returns a store whose methods all fail with
// ErrUnsupportedPlatform.
func NewPlaceholderStore(remote *smb.Client, logger *zap.Logger) *PlaceholderStore {
	return &PlaceholderStore{}
}

func (s *PlaceholderStore) CreateSingle(serverRelative, clientAbs string) error { return ErrUnsupportedPlatform }

func (s *PlaceholderStore) CreateTree(serverRoot, relativeSubdir, clientRoot string) error {
	return ErrUnsupportedPlatform
}

func (s *PlaceholderStore) Delete(clientAbs string) error { return ErrUnsupportedPlatform }

func (s *PlaceholderStore) Rename(oldClientAbs, newClientAbs string) error {
	return ErrUnsupportedPlatform
}

func (s *PlaceholderStore) MarkInSync(clientAbs string) error { return ErrUnsupportedPlatform }

func (s *PlaceholderStore) MarkNotInSync(clientAbs string) error { return ErrUnsupportedPlatform }

func (s *PlaceholderStore) ConvertToPlaceholder(clientAbs string, identity []byte) error {
	return ErrUnsupportedPlatform
}

func (s *PlaceholderStore) ConvertAndDehydrate(clientAbs string, identity []byte) error {
	return ErrUnsupportedPlatform
}

func (s *PlaceholderStore) Hydrate(clientAbs string, offset, length int64) error {
	return ErrUnsupportedPlatform
}

func (s *PlaceholderStore) Dehydrate(clientAbs string, offset, length int64) error {
	return ErrUnsupportedPlatform
}

func (s *PlaceholderStore) UpdateIdentity(clientAbs, newRelative string) error {
	return ErrUnsupportedPlatform
}

func (s *PlaceholderStore) SetPinned(clientAbs string, pinned bool) error {
	return ErrUnsupportedPlatform
}

// EncodeIdentity has the Windows signature so callers build without a
// build tag of their own; it returns the raw UTF-8 bytes, not the Windows
// UTF-16LE blob, and the result is never used since every store method
// here fails first.
func EncodeIdentity(serverRelative string) []byte {
	return []byte(serverRelative)
}

// RegisterSyncRoot and UnregisterSyncRoot mirror the Windows entry points so
// internal/syncroot and cmd/nuviisync-ctl build without their own
// conditionals; both fail immediately since there is no sync root to manage
// off Windows.
func RegisterSyncRoot(syncRootPath string) error { return ErrUnsupportedPlatform }

func UnregisterSyncRoot(syncRootPath string) error { return ErrUnsupportedPlatform }
