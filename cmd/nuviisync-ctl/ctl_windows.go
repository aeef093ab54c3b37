//go:build windows
// +build windows

package main

import (
	"fmt"
	"os/exec"
	"strings"

	"golang.org/x/sys/windows/registry"

	"github.com/nuviisync/core/internal/cloudfiles"
)

// syncRootRegistryPath is where Explorer keeps per-sync-root registrations
// (CfRegisterSyncRoot writes here under the hood).
const syncRootRegistryPath = `SOFTWARE\Microsoft\Windows\CurrentVersion\Explorer\SyncRootManager`

func unregister(clientPath string) error {
	return cloudfiles.UnregisterSyncRoot(clientPath)
}

// forceCleanup removes every SyncRootManager subkey whose name is prefixed
// by providerName, then restarts Explorer so the shell drops its cached
// knowledge of those sync roots. This is a last-resort recovery action for
// a sync root whose registration survives Unregister failing or the
// process being killed before it ran.
func forceCleanup(providerName string) error {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, syncRootRegistryPath, registry.READ|registry.WRITE)
	if err != nil {
		return fmt.Errorf("open sync root registry key: %w", err)
	}
	defer key.Close()

	names, err := key.ReadSubKeyNames(-1)
	if err != nil {
		return fmt.Errorf("enumerate sync root registrations: %w", err)
	}

	removed := 0
	for _, name := range names {
		if !strings.HasPrefix(name, providerName+"!") {
			continue
		}
		if err := registry.DeleteKey(key, name); err != nil {
			fmt.Printf("  warning: failed to remove %s: %v\n", name, err)
			continue
		}
		removed++
	}
	fmt.Printf("Removed %d provider-prefixed sync-root registrations\n", removed)

	return restartExplorer()
}

func restartExplorer() error {
	if err := exec.Command("taskkill", "/F", "/IM", "explorer.exe").Run(); err != nil {
		return fmt.Errorf("stop explorer.exe: %w", err)
	}
	if err := exec.Command("explorer.exe").Start(); err != nil {
		return fmt.Errorf("restart explorer.exe: %w", err)
	}
	return nil
}
