package clientsync

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/nuviisync/core/internal/pathmap"
)

type fakeStore struct {
	created      []string
	deleted      []string
	renamed      [][2]string
	markedInSync []string
	converted    []string
	identities   []string
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
func (f *fakeStore) MarkInSync(clientAbs string) error {
	f.markedInSync = append(f.markedInSync, clientAbs)
	return nil
}
func (f *fakeStore) MarkNotInSync(clientAbs string) error { return nil }
func (f *fakeStore) ConvertToPlaceholder(clientAbs string, identity []byte) error {
	f.converted = append(f.converted, clientAbs)
	return nil
}
func (f *fakeStore) UpdateIdentity(clientAbs, newRelative string) error {
	f.identities = append(f.identities, newRelative)
	return nil
}

type fakeRemote struct {
	mkdirs   []string
	uploads  []string
	renamed  [][2]string
	removed  []string
	existing map[string]bool
}

func (f *fakeRemote) MkdirAll(remotePath string) error {
	f.mkdirs = append(f.mkdirs, remotePath)
	return nil
}
func (f *fakeRemote) Upload(localPath, remotePath string) error {
	f.uploads = append(f.uploads, remotePath)
	return nil
}
func (f *fakeRemote) Rename(oldRemotePath, newRemotePath string) error {
	f.renamed = append(f.renamed, [2]string{oldRemotePath, newRemotePath})
	return nil
}
func (f *fakeRemote) RemoveAll(remotePath string) error {
	f.removed = append(f.removed, remotePath)
	return nil
}
func (f *fakeRemote) Exists(remotePath string) bool { return f.existing[remotePath] }

func newTestEngine(t *testing.T) (*Engine, *fakeStore, *fakeRemote, string) {
	t.Helper()
	clientRoot := t.TempDir()
	serverRoot := t.TempDir()
	paths := pathmap.New(clientRoot, serverRoot)

	store := &fakeStore{}
	remote := &fakeRemote{existing: make(map[string]bool)}

	cfg := DefaultConfig()
	cfg.Debounce = 20 * time.Millisecond
	cfg.MoveWindow = 200 * time.Millisecond
	cfg.SuppressionTTL = 200 * time.Millisecond

	e := New(cfg, paths, store, remote, nil)
	return e, store, remote, clientRoot
}

func waitForEvent(t *testing.T, e *Engine) Event {
	t.Helper()
	select {
	case ev := <-e.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestCreateFileExecutesUploadAndMarksInSync(t *testing.T) {
	e, store, remote, root := newTestEngine(t)
	path := filepath.Join(root, "report.docx")

	e.OnCreated(path, false)
	ev := waitForEvent(t, e)

	if ev.Kind != EventCompleted {
		t.Fatalf("expected completed event, got %+v", ev)
	}
	if len(remote.uploads) != 1 || remote.uploads[0] != "report.docx" {
		t.Fatalf("expected one upload of report.docx, got %v", remote.uploads)
	}
	if len(store.markedInSync)+len(store.converted) != 1 {
		t.Fatalf("expected the uploaded file to be marked in sync, got markedInSync=%v converted=%v", store.markedInSync, store.converted)
	}
}

func TestModifyResetsExistingPendingTimerWithoutChangingType(t *testing.T) {
	e, _, remote, root := newTestEngine(t)
	path := filepath.Join(root, "doc.txt")

	e.OnCreated(path, false)
	time.Sleep(5 * time.Millisecond)
	e.OnModified(path)

	ev := waitForEvent(t, e)
	if ev.Type != OpCreate {
		t.Fatalf("expected the operation to remain a create, got %v", ev.Type)
	}
	if len(remote.uploads) != 1 {
		t.Fatalf("expected exactly one upload, got %v", remote.uploads)
	}
}

func TestDeleteOfPendingCreateIsNetZero(t *testing.T) {
	e, _, remote, root := newTestEngine(t)
	path := filepath.Join(root, "scratch.txt")

	e.OnCreated(path, false)
	e.OnDeleted(path)

	select {
	case ev := <-e.Events():
		t.Fatalf("expected no event for a create cancelled by delete, got %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
	if len(remote.uploads) != 0 {
		t.Fatalf("expected no upload, got %v", remote.uploads)
	}
}

func TestMoveDetectionProducesRename(t *testing.T) {
	e, store, remote, root := newTestEngine(t)
	oldPath := filepath.Join(root, "old", "notes.txt")
	newPath := filepath.Join(root, "new", "notes.txt")
	remote.existing[filepath.Join("old", "notes.txt")] = true

	e.OnDeleted(oldPath)
	e.OnCreated(newPath, false)

	ev := waitForEvent(t, e)
	if ev.Kind != EventCompleted || ev.Type != OpRename {
		t.Fatalf("expected completed rename, got %+v", ev)
	}
	if len(remote.renamed) != 1 {
		t.Fatalf("expected one remote rename, got %v", remote.renamed)
	}
	if len(store.identities) != 1 {
		t.Fatalf("expected identity update after rename, got %v", store.identities)
	}
}

func TestIsSuppressedExpires(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	e.suppressLocked("docs/a.txt")

	if !e.IsSuppressed("docs/a.txt") {
		t.Fatal("expected path to be suppressed immediately after insertion")
	}

	time.Sleep(e.cfg.SuppressionTTL + 50*time.Millisecond)
	if e.IsSuppressed("docs/a.txt") {
		t.Fatal("expected suppression entry to have expired")
	}
}
