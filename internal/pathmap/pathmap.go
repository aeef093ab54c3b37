// Package pathmap translates between server-relative, client-relative, and
// absolute paths, and validates that a path falls under the root it claims to.
package pathmap

import (
	"errors"
	"path/filepath"
	"strings"
)

// OutOfScope is returned when a path does not fall under the expected root.
var OutOfScope = errors.New("pathmap: path is out of scope")

// Map holds the two sync-root absolute paths and converts between them.
type Map struct {
	clientRoot string
	serverRoot string
}

// New builds a Map from the two canonical absolute roots. Neither root may
// contain the other.
func New(clientRoot, serverRoot string) *Map {
	return &Map{
		clientRoot: clean(clientRoot),
		serverRoot: clean(serverRoot),
	}
}

func clean(p string) string {
	return filepath.Clean(p)
}

// ClientRoot returns the canonical client-side absolute root.
func (m *Map) ClientRoot() string { return m.clientRoot }

// ServerRoot returns the canonical server-side absolute root.
func (m *Map) ServerRoot() string { return m.serverRoot }

// Contains reports whether abs falls under root, honoring path-separator
// boundaries (so "/a/bc" is not considered under "/a/b") with a
// case-insensitive comparison.
func Contains(root, abs string) bool {
	root = clean(root)
	abs = clean(abs)

	if strings.EqualFold(root, abs) {
		return true
	}

	rootWithSep := root
	if !strings.HasSuffix(rootWithSep, string(filepath.Separator)) {
		rootWithSep += string(filepath.Separator)
	}

	return len(abs) > len(rootWithSep) && strings.EqualFold(abs[:len(rootWithSep)], rootWithSep)
}

// ToRelative returns the tail of abs relative to root, with the leading
// separator stripped. Returns OutOfScope if abs is not under root.
func ToRelative(abs, root string) (string, error) {
	root = clean(root)
	abs = clean(abs)

	if strings.EqualFold(abs, root) {
		return "", nil
	}

	if !Contains(root, abs) {
		return "", OutOfScope
	}

	rel := abs[len(root):]
	return strings.TrimPrefix(rel, string(filepath.Separator)), nil
}

// ToClientAbs joins a client-relative path onto the client root.
func (m *Map) ToClientAbs(relative string) string {
	if relative == "" {
		return m.clientRoot
	}
	return filepath.Join(m.clientRoot, relative)
}

// ToServerAbs joins a server-relative path onto the server root.
func (m *Map) ToServerAbs(relative string) string {
	if relative == "" {
		return m.serverRoot
	}
	return filepath.Join(m.serverRoot, relative)
}

// ClientToRelative converts a client-absolute path to a client-relative path.
func (m *Map) ClientToRelative(abs string) (string, error) {
	return ToRelative(abs, m.clientRoot)
}

// ServerToRelative converts a server-absolute path to a server-relative path.
func (m *Map) ServerToRelative(abs string) (string, error) {
	return ToRelative(abs, m.serverRoot)
}

// ClientToServer swaps a client-absolute path for the equivalent
// server-absolute path.
func (m *Map) ClientToServer(clientAbs string) (string, error) {
	rel, err := m.ClientToRelative(clientAbs)
	if err != nil {
		return "", err
	}
	return m.ToServerAbs(rel), nil
}

// ServerToClient swaps a server-absolute path for the equivalent
// client-absolute path.
func (m *Map) ServerToClient(serverAbs string) (string, error) {
	rel, err := m.ServerToRelative(serverAbs)
	if err != nil {
		return "", err
	}
	return m.ToClientAbs(rel), nil
}

// ContainsClient reports whether abs is under the client root.
func (m *Map) ContainsClient(abs string) bool { return Contains(m.clientRoot, abs) }

// ContainsServer reports whether abs is under the server root.
func (m *Map) ContainsServer(abs string) bool { return Contains(m.serverRoot, abs) }
