//go:build windows
// +build windows

package cloudfiles

import (
	"golang.org/x/sys/windows"
)

// PlaceholderState is the subset of a placeholder's state vector the
// dehydration protocol needs to decide its next step.
type PlaceholderState struct {
	Exists        bool
	IsPlaceholder bool
	InSync        bool
	Offline       bool // no cached content on disk
}

// QueryPlaceholderState inspects clientAbs and reports its placeholder
// state. A non-existent path reports Exists=false with no error.
func QueryPlaceholderState(clientAbs string) (PlaceholderState, error) {
	pathPtr, err := windows.UTF16PtrFromString(clientAbs)
	if err != nil {
		return PlaceholderState{}, err
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
		if err == windows.ERROR_FILE_NOT_FOUND || err == windows.ERROR_PATH_NOT_FOUND {
			return PlaceholderState{Exists: false}, nil
		}
		return PlaceholderState{}, err
	}
	defer windows.CloseHandle(h)

	var info windows.ByHandleFileInformation
	if err := windows.GetFileInformationByHandle(h, &info); err != nil {
		return PlaceholderState{}, err
	}

	var reparseTag uint32
	if info.FileAttributes&windows.FILE_ATTRIBUTE_REPARSE_POINT != 0 {
		reparseTag = IO_REPARSE_TAG_CLOUD
	}

	cfState := GetPlaceholderState(info.FileAttributes, reparseTag)

	return PlaceholderState{
		Exists:        true,
		IsPlaceholder: cfState&CF_PLACEHOLDER_STATE_PLACEHOLDER != 0,
		InSync:        cfState&CF_PLACEHOLDER_STATE_IN_SYNC != 0,
		Offline:       cfState&CF_PLACEHOLDER_STATE_PARTIALLY_ON_DISK == 0,
	}, nil
}
