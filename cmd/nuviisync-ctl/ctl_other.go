//go:build !windows

package main

import "github.com/nuviisync/core/internal/cloudfiles"

func unregister(clientPath string) error {
	return cloudfiles.UnregisterSyncRoot(clientPath)
}

func forceCleanup(providerName string) error {
	return cloudfiles.ErrUnsupportedPlatform
}
