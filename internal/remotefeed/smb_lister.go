package remotefeed

import "github.com/nuviisync/core/internal/smb"

// SMBLister adapts smb.Client to the Lister interface PollingFeed depends
// on, so this package only names the fields it actually uses rather than
// the whole of smb.RemoteFileInfo.
type SMBLister struct {
	Client *smb.Client
}

// ListRemoteRecursive implements Lister.
func (l *SMBLister) ListRemoteRecursive(remotePath string) ([]ListedEntry, error) {
	infos, err := l.Client.ListRemoteRecursive(remotePath)
	if err != nil {
		return nil, err
	}
	entries := make([]ListedEntry, len(infos))
	for i, info := range infos {
		entries[i] = ListedEntry{Path: info.Path, Size: info.Size, IsDir: info.IsDir}
	}
	return entries, nil
}
