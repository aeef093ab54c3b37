package serverapplier

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/nuviisync/core/internal/pathmap"
	"github.com/nuviisync/core/internal/remotefeed"
)

type fakeFeed struct {
	events chan remotefeed.RemoteEvent
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{events: make(chan remotefeed.RemoteEvent, 8)}
}

func (f *fakeFeed) Events() <-chan remotefeed.RemoteEvent { return f.events }

type fakeStore struct {
	created []string
	deleted []string
	renamed [][2]string
}

func (f *fakeStore) CreateSingle(serverRelative, clientAbs string) error {
	f.created = append(f.created, clientAbs)
	return nil
}
func (f *fakeStore) Delete(clientAbs string) error {
	f.deleted = append(f.deleted, clientAbs)
	return nil
}
func (f *fakeStore) Rename(oldClientAbs, newClientAbs string) error {
	f.renamed = append(f.renamed, [2]string{oldClientAbs, newClientAbs})
	return nil
}

type fakeSuppress struct {
	suppressed map[string]bool
}

func (f *fakeSuppress) IsSuppressed(relativePath string) bool { return f.suppressed[relativePath] }

func TestApplyCreateCallsStore(t *testing.T) {
	feed := newFakeFeed()
	store := &fakeStore{}
	paths := pathmap.New(filepath.Join("C:", "sync", "client"), filepath.Join("C:", "sync", "server"))
	suppress := &fakeSuppress{suppressed: map[string]bool{}}

	a := New(feed, store, paths, suppress, nil, nil)
	a.Start()
	defer a.Stop()

	feed.events <- remotefeed.RemoteEvent{Kind: remotefeed.RemoteCreate, RelativePath: "docs/a.txt"}

	deadline := time.Now().Add(time.Second)
	for len(store.created) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if len(store.created) != 1 {
		t.Fatalf("expected one create call, got %v", store.created)
	}
}

func TestApplySkipsSuppressedPath(t *testing.T) {
	feed := newFakeFeed()
	store := &fakeStore{}
	paths := pathmap.New(filepath.Join("C:", "sync", "client"), filepath.Join("C:", "sync", "server"))
	suppress := &fakeSuppress{suppressed: map[string]bool{"docs/a.txt": true}}

	a := New(feed, store, paths, suppress, nil, nil)
	a.apply(remotefeed.RemoteEvent{Kind: remotefeed.RemoteDelete, RelativePath: "docs/a.txt"})

	if len(store.deleted) != 0 {
		t.Fatalf("expected suppressed delete to be dropped, got %v", store.deleted)
	}
}

func TestApplyRenameSkipsWhenOldPathSuppressed(t *testing.T) {
	store := &fakeStore{}
	paths := pathmap.New(filepath.Join("C:", "sync", "client"), filepath.Join("C:", "sync", "server"))
	suppress := &fakeSuppress{suppressed: map[string]bool{"docs/old.txt": true}}
	a := New(nil, store, paths, suppress, nil, nil)

	a.apply(remotefeed.RemoteEvent{Kind: remotefeed.RemoteRename, RelativePath: "docs/new.txt", OldRelativePath: "docs/old.txt"})

	if len(store.renamed) != 0 {
		t.Fatalf("expected suppressed rename to be dropped, got %v", store.renamed)
	}
}
