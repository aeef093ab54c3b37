package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, `
sync_root:
  client_path: `+filepath.Join(dir, "client")+`
  server: fileserver01
  server_share: sync
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SyncRoot.DebounceSeconds != 3 {
		t.Fatalf("expected default debounce of 3s, got %d", cfg.SyncRoot.DebounceSeconds)
	}
	if cfg.SyncRoot.MaxRetries != 3 {
		t.Fatalf("expected default max_retries of 3, got %d", cfg.SyncRoot.MaxRetries)
	}
	if cfg.SyncRoot.ProviderName != "NuviiSync" {
		t.Fatalf("expected default provider name, got %q", cfg.SyncRoot.ProviderName)
	}
}

func TestLoadRejectsMissingClientPath(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, `
sync_root:
  server: fileserver01
  server_share: sync
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing client_path")
	}
}

func TestLoadRejectsMissingServerPath(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, `
sync_root:
  client_path: `+filepath.Join(dir, "client")+`
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing server_path/server")
	}
}

func TestEnvironmentOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, `
sync_root:
  client_path: `+filepath.Join(dir, "client")+`
  server: fileserver01
  server_share: sync
`)

	t.Setenv("NUVIISYNC_SYNC_ROOT_DEBOUNCE_SECONDS", "9")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SyncRoot.DebounceSeconds != 9 {
		t.Fatalf("expected env override of 9s, got %d", cfg.SyncRoot.DebounceSeconds)
	}
}
