// Package config loads the sync root's configuration: the provider
// identity, the client/server path pair, and the tunables ClientSyncEngine
// and RemoteChangeFeed need. Layered viper sources (file, then environment)
// keep this consistent with the rest of this lineage of code.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/nuviisync/core/internal/cloudfiles"
	"github.com/nuviisync/core/internal/logging"
)

// SyncRootConfig is the config-layer representation of a sync root
// (SPEC_FULL.md §3). Load rejects a missing client_path, and a missing
// server_path only when server is also empty (an empty server_path names
// the share root). Server and share are checked by smb.NewClient, and SMB
// credentials are read only from the OS keyring (cmd/nuviisyncd).
type SyncRootConfig struct {
	ProviderName    string `mapstructure:"provider_name"`
	ProviderVersion string `mapstructure:"provider_version"`
	AccountName     string `mapstructure:"account_name"`

	ClientPath string `mapstructure:"client_path"`
	ServerPath string `mapstructure:"server_path"` // relative to ServerShare's root

	Server      string `mapstructure:"server"`
	ServerShare string `mapstructure:"server_share"`
	ServerPort  int    `mapstructure:"server_port"`

	DebounceSeconds       int `mapstructure:"debounce_seconds"`
	MoveWindowSeconds      int `mapstructure:"move_window_seconds"`
	SuppressionTTLSeconds  int `mapstructure:"suppression_ttl_seconds"`
	MaxRetries             int `mapstructure:"max_retries"`
	PollIntervalSeconds    int `mapstructure:"poll_interval_seconds"`
}

// Config is the top-level, on-disk configuration document.
type Config struct {
	SyncRoot SyncRootConfig  `mapstructure:"sync_root"`
	Logging  logging.Config  `mapstructure:"logging"`
}

// ProviderID returns the fixed GUID this provider registers under. Unlike
// the server/account fields, the provider identity is not operator
// configuration - it is a build-time constant of this binary.
func ProviderID() cloudfiles.GUID {
	return cloudfiles.GUID{
		Data1: 0x4E55564E, // "NUVN"
		Data2: 0x5359,
		Data3: 0x4E43,
		Data4: [8]byte{0x4E, 0x55, 0x56, 0x49, 0x49, 0x53, 0x59, 0x00},
	}
}

// Load reads configuration from configPath (or the standard search path
// when empty), applies defaults, and overlays NUVIISYNC_* environment
// variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(DefaultConfigDir())
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	setDefaults(v)

	v.SetEnvPrefix("NUVIISYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.SyncRoot.ClientPath = expandPath(cfg.SyncRoot.ClientPath)

	if cfg.SyncRoot.ClientPath == "" {
		return nil, fmt.Errorf("config: sync_root.client_path is required")
	}
	if cfg.SyncRoot.ServerPath == "" && cfg.SyncRoot.Server == "" {
		return nil, fmt.Errorf("config: sync_root.server_path/server is required")
	}

	return &cfg, nil
}

// DefaultConfigDir returns the per-OS directory NuviiSync reads its config
// file from.
func DefaultConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "NuviiSync")
	case "darwin":
		return filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "NuviiSync")
	default:
		return filepath.Join(os.Getenv("HOME"), ".config", "nuviisync")
	}
}

func expandPath(path string) string {
	if path == "" {
		return path
	}
	home, _ := os.UserHomeDir()
	return os.Expand(path, func(key string) string {
		if key == "HOME" {
			return home
		}
		return os.Getenv(key)
	})
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sync_root.provider_name", "NuviiSync")
	v.SetDefault("sync_root.provider_version", "1.0.0")
	v.SetDefault("sync_root.server_port", 445)
	v.SetDefault("sync_root.debounce_seconds", 3)
	v.SetDefault("sync_root.move_window_seconds", 5)
	v.SetDefault("sync_root.suppression_ttl_seconds", 5)
	v.SetDefault("sync_root.max_retries", 3)
	v.SetDefault("sync_root.poll_interval_seconds", 30)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file_path", filepath.Join(logging.DefaultLogDir(), "nuviisync.log"))
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 10)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)
}
