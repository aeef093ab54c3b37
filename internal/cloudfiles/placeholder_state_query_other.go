//go:build !windows

package cloudfiles

// PlaceholderState mirrors the Windows-only type of the same name so
// callers outside this package can be written without a build tag of
// their own.
type PlaceholderState struct {
	Exists        bool
	IsPlaceholder bool
	InSync        bool
	Offline       bool
}

// QueryPlaceholderState always fails on non-Windows builds.
func QueryPlaceholderState(clientAbs string) (PlaceholderState, error) {
	return PlaceholderState{}, ErrUnsupportedPlatform
}
