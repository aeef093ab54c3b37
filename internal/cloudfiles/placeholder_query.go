//go:build windows
// +build windows

package cloudfiles

import (
	"golang.org/x/sys/windows"
)

// IsPlaceholderOnly reports whether clientAbs is a reparse-point cloud
// placeholder whose state indicates either "offline" (no cached content) or
// the combination placeholder+in-sync+partial. Events on such entries
// originate from server-side population, not a user edit, and must not be
// echoed back to the server.
func IsPlaceholderOnly(clientAbs string) bool {
	pathPtr, err := windows.UTF16PtrFromString(clientAbs)
	if err != nil {
		return false
	}

	h, err := windows.CreateFile(
		pathPtr,
		0,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS|windows.FILE_FLAG_OPEN_REPARSE_POINT,
		0,
	)
	if err != nil {
		return false
	}
	defer windows.CloseHandle(h)

	var info windows.ByHandleFileInformation
	if err := windows.GetFileInformationByHandle(h, &info); err != nil {
		return false
	}

	var reparseTag uint32
	if info.FileAttributes&windows.FILE_ATTRIBUTE_REPARSE_POINT != 0 {
		reparseTag = IO_REPARSE_TAG_CLOUD
	}

	state := GetPlaceholderState(info.FileAttributes, reparseTag)
	if state&CF_PLACEHOLDER_STATE_PLACEHOLDER == 0 {
		return false
	}

	offline := state&CF_PLACEHOLDER_STATE_PARTIALLY_ON_DISK == 0
	partial := state&CF_PLACEHOLDER_STATE_PARTIAL != 0
	inSync := state&CF_PLACEHOLDER_STATE_IN_SYNC != 0

	return offline || (inSync && partial)
}
