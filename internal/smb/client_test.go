package smb

import (
	"testing"

	"go.uber.org/zap"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name      string
		config    *ClientConfig
		expectErr bool
	}{
		{
			name: "valid config",
			config: &ClientConfig{
				Server:   "192.168.1.100",
				Share:    "documents",
				Username: "user",
				Password: "pass",
			},
			expectErr: false,
		},
		{
			name:      "nil config",
			config:    nil,
			expectErr: true,
		},
		{
			name: "empty server",
			config: &ClientConfig{
				Server:   "",
				Share:    "documents",
				Username: "user",
				Password: "pass",
			},
			expectErr: true,
		},
		{
			name: "empty share",
			config: &ClientConfig{
				Server:   "192.168.1.100",
				Share:    "",
				Username: "user",
				Password: "pass",
			},
			expectErr: true,
		},
		{
			name: "empty username",
			config: &ClientConfig{
				Server:   "192.168.1.100",
				Share:    "documents",
				Username: "",
				Password: "pass",
			},
			expectErr: true,
		},
		{
			name: "default port",
			config: &ClientConfig{
				Server:   "192.168.1.100",
				Share:    "documents",
				Username: "user",
				Password: "pass",
				Port:     0,
			},
			expectErr: false,
		},
		{
			name: "custom port",
			config: &ClientConfig{
				Server:   "192.168.1.100",
				Share:    "documents",
				Username: "user",
				Password: "pass",
				Port:     4445,
			},
			expectErr: false,
		},
		{
			name: "with domain",
			config: &ClientConfig{
				Server:   "192.168.1.100",
				Share:    "documents",
				Username: "user",
				Password: "pass",
				Domain:   "WORKGROUP",
			},
			expectErr: false,
		},
	}

	logger := zap.NewNop()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.config, logger)

			if tt.expectErr {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if client == nil {
				t.Error("expected client but got nil")
				return
			}

			if tt.config.Server != "" && client.server != tt.config.Server {
				t.Errorf("server: expected %s, got %s", tt.config.Server, client.server)
			}
			if tt.config.Share != "" && client.share != tt.config.Share {
				t.Errorf("share: expected %s, got %s", tt.config.Share, client.share)
			}
			if tt.config.Username != "" && client.username != tt.config.Username {
				t.Errorf("username: expected %s, got %s", tt.config.Username, client.username)
			}

			if tt.config.Port == 0 {
				if client.port != 445 {
					t.Errorf("port: expected default 445, got %d", client.port)
				}
			} else if client.port != tt.config.Port {
				t.Errorf("port: expected %d, got %d", tt.config.Port, client.port)
			}

			if client.IsConnected() {
				t.Error("new client should not be connected")
			}
		})
	}
}

func testClient(t *testing.T) *Client {
	t.Helper()
	config := &ClientConfig{
		Server:   "test-server",
		Share:    "test-share",
		Username: "user",
		Password: "pass",
	}
	client, err := NewClient(config, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}

func TestClientBasicState(t *testing.T) {
	client := testClient(t)

	if client.IsConnected() {
		t.Error("new client should not be connected")
	}
	if client.Server() != "test-server" {
		t.Errorf("Server: expected test-server, got %s", client.Server())
	}
	if client.Share() != "test-share" {
		t.Errorf("Share: expected test-share, got %s", client.Share())
	}
	if err := client.Disconnect(); err != nil {
		t.Errorf("Disconnect on non-connected client should not error: %v", err)
	}
}

func TestClientOperationsRequireConnection(t *testing.T) {
	client := testClient(t)

	ops := map[string]func() error{
		"Download": func() error { return client.Download("remote.txt", "local.txt") },
		"Upload":    func() error { return client.Upload("local.txt", "remote.txt") },
		"ListRemote": func() error {
			_, err := client.ListRemote(".")
			return err
		},
		"GetMetadata": func() error {
			_, err := client.GetMetadata("file.txt")
			return err
		},
		"Delete": func() error { return client.Delete("file.txt") },
		"Rename": func() error { return client.Rename("a.txt", "b.txt") },
		"MkdirAll": func() error {
			return client.MkdirAll("a/b")
		},
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			err := op()
			if err == nil {
				t.Fatalf("expected error when calling %s without connection", name)
			}
			if err.Error() != "not connected to SMB server" {
				t.Errorf("expected 'not connected' error, got: %v", err)
			}
		})
	}
}

func TestClientRemoveAllOfAbsentPathIsNoop(t *testing.T) {
	// RemoveAll relies on GetMetadata failing for a path that doesn't
	// exist, which also happens when not connected -- either way it must
	// not be treated as an error (idempotent apply of a remote Delete).
	client := testClient(t)
	if err := client.RemoveAll("nonexistent"); err != nil {
		t.Errorf("RemoveAll of an absent/unreachable path should be a no-op, got: %v", err)
	}
}
