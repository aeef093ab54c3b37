//go:build !windows

package cloudfiles

// IsPlaceholderOnly always reports false on non-Windows builds; there is no
// cloud-filter reparse state to query.
func IsPlaceholderOnly(clientAbs string) bool {
	return false
}
