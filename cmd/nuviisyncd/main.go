// nuviisyncd is the sync root service: it loads configuration, registers
// and connects the Cloud Files sync root, and runs until signaled to stop.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nuviisync/core/internal/clientsync"
	"github.com/nuviisync/core/internal/config"
	"github.com/nuviisync/core/internal/logging"
	"github.com/nuviisync/core/internal/pathmap"
	"github.com/nuviisync/core/internal/smb"
	"github.com/nuviisync/core/internal/syncroot"
)

func main() {
	var configPath string
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nuviisyncd: %v\n", err)
		os.Exit(1)
	}

	logger, _, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nuviisyncd: failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("fatal error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	creds, err := smb.NewCredentialManager(logger).Load(cfg.SyncRoot.Server)
	if err != nil {
		return fmt.Errorf("load SMB credentials: %w", err)
	}

	client, err := smb.NewClient(&smb.ClientConfig{
		Server:   cfg.SyncRoot.Server,
		Share:    cfg.SyncRoot.ServerShare,
		Port:     cfg.SyncRoot.ServerPort,
		Username: creds.Username,
		Password: creds.Password,
		Domain:   creds.Domain,
	}, logger)
	if err != nil {
		return fmt.Errorf("build SMB client: %w", err)
	}
	if err := client.Connect(); err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.SyncRoot.Server, err)
	}
	defer client.Disconnect()

	paths := pathmap.New(cfg.SyncRoot.ClientPath, cfg.SyncRoot.ServerPath)

	syncCfg := clientsync.DefaultConfig()
	if cfg.SyncRoot.DebounceSeconds > 0 {
		syncCfg.Debounce = time.Duration(cfg.SyncRoot.DebounceSeconds) * time.Second
	}
	if cfg.SyncRoot.MoveWindowSeconds > 0 {
		syncCfg.MoveWindow = time.Duration(cfg.SyncRoot.MoveWindowSeconds) * time.Second
	}
	if cfg.SyncRoot.SuppressionTTLSeconds > 0 {
		syncCfg.SuppressionTTL = time.Duration(cfg.SyncRoot.SuppressionTTLSeconds) * time.Second
	}
	if cfg.SyncRoot.MaxRetries > 0 {
		syncCfg.MaxRetries = cfg.SyncRoot.MaxRetries
	}

	registrar, err := syncroot.New(
		syncroot.Config{
			ProviderName:    cfg.SyncRoot.ProviderName,
			ProviderVersion: cfg.SyncRoot.ProviderVersion,
			ProviderID:      config.ProviderID(),
			UserSID:         currentUserSID(),
			AccountName:     cfg.SyncRoot.AccountName,
		},
		paths,
		client,
		syncCfg,
		time.Duration(cfg.SyncRoot.PollIntervalSeconds)*time.Second,
		nil, nil,
		logger,
	)
	if err != nil {
		return fmt.Errorf("build registrar: %w", err)
	}

	if err := registrar.Start(); err != nil {
		return fmt.Errorf("start sync root: %w", err)
	}

	logger.Info("nuviisyncd running")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	return registrar.Stop()
}

func currentUserSID() string {
	// Reads NUVIISYNC_USER_SID when it is set and otherwise returns a fixed
	// placeholder SID; the process token is not queried.
	if sid := os.Getenv("NUVIISYNC_USER_SID"); sid != "" {
		return sid
	}
	return "S-1-5-21-0-0-0-1000"
}
