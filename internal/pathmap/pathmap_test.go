package pathmap

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestToRelative(t *testing.T) {
	root := filepath.Join("C:", "sync", "client")

	tests := []struct {
		name    string
		abs     string
		want    string
		wantErr bool
	}{
		{"exact root", root, "", false},
		{"simple child", filepath.Join(root, "docs", "a.txt"), filepath.Join("docs", "a.txt"), false},
		{"case-insensitive root", filepath.Join("c:", "SYNC", "CLIENT", "a.txt"), "a.txt", false},
		{"sibling with shared prefix", filepath.Join("C:", "sync", "client2", "a.txt"), "", true},
		{"unrelated root", filepath.Join("D:", "other"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToRelative(tt.abs, root)
			if tt.wantErr {
				if !errors.Is(err, OutOfScope) {
					t.Fatalf("expected OutOfScope, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMapClientToServer(t *testing.T) {
	m := New(filepath.Join("C:", "sync", "client"), filepath.Join("C:", "sync", "server"))

	clientAbs := filepath.Join("C:", "sync", "client", "a", "b.txt")
	serverAbs, err := m.ClientToServer(clientAbs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Join("C:", "sync", "server", "a", "b.txt")
	if serverAbs != want {
		t.Fatalf("got %q, want %q", serverAbs, want)
	}

	back, err := m.ServerToClient(serverAbs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if back != clientAbs {
		t.Fatalf("round trip mismatch: got %q, want %q", back, clientAbs)
	}
}

func TestContainsBoundary(t *testing.T) {
	root := filepath.Join("C:", "sync", "client")
	if Contains(root, root+"2") {
		t.Fatalf("Contains should not match a sibling sharing a prefix")
	}
	if !Contains(root, filepath.Join(root, "x")) {
		t.Fatalf("Contains should match a direct child")
	}
}
