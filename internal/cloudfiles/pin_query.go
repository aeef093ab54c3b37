//go:build windows
// +build windows

package cloudfiles

import (
	"golang.org/x/sys/windows"
)

// Pin state is surfaced to user mode as ordinary file attribute bits rather
// than through a dedicated query call; x/sys/windows does not define these
// two, so they are declared here from the documented values.
const (
	fileAttributePinned   = 0x00080000
	fileAttributeUnpinned = 0x00100000
)

// QueryPinState reports the current pin attribute of clientAbs: Pinned,
// Unpinned, or Unspecified if neither bit is set.
func QueryPinState(clientAbs string) (CF_PIN_STATE, error) {
	pathPtr, err := windows.UTF16PtrFromString(clientAbs)
	if err != nil {
		return CF_PIN_STATE_UNSPECIFIED, err
	}
	attrs, err := windows.GetFileAttributes(pathPtr)
	if err != nil {
		return CF_PIN_STATE_UNSPECIFIED, err
	}
	switch {
	case attrs&fileAttributePinned != 0:
		return CF_PIN_STATE_PINNED, nil
	case attrs&fileAttributeUnpinned != 0:
		return CF_PIN_STATE_UNPINNED, nil
	default:
		return CF_PIN_STATE_UNSPECIFIED, nil
	}
}
