//go:build windows
// +build windows

package cloudfiles

import "testing"

func TestIdentityBytesRoundTrips(t *testing.T) {
	id := identityBytes("docs/report.docx")
	if len(id)%2 != 0 {
		t.Fatalf("identity blob must be a whole number of UTF-16 code units, got %d bytes", len(id))
	}
	// Last two bytes must be the UTF-16 NUL terminator.
	if id[len(id)-1] != 0 || id[len(id)-2] != 0 {
		t.Fatalf("identity blob must be NUL-terminated, got %v", id)
	}
	// Spot check: 'd' (0x64) is the first code unit, little-endian.
	if id[0] != 'd' || id[1] != 0 {
		t.Fatalf("expected first UTF-16LE code unit to be 'd', got %v", id[:2])
	}
}

func TestIdentityBytesEmptyPath(t *testing.T) {
	id := identityBytes("")
	if len(id) != 2 || id[0] != 0 || id[1] != 0 {
		t.Fatalf("identityBytes(\"\") should be just the NUL terminator, got %v", id)
	}
}
