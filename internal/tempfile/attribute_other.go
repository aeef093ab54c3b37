//go:build !windows

package tempfile

import "os"

// hasTemporaryAttribute always returns false on non-Windows platforms; they
// have no equivalent of FILE_ATTRIBUTE_TEMPORARY.
func hasTemporaryAttribute(info os.FileInfo) bool {
	return false
}
