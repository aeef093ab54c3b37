package localsource

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeSink struct {
	created  []string
	renamed  [][2]string
	deleted  []string
	modified []string
}

func (f *fakeSink) OnCreated(path string, isPlaceholderOnly bool) { f.created = append(f.created, path) }
func (f *fakeSink) OnRenamed(oldPath, newPath string)              { f.renamed = append(f.renamed, [2]string{oldPath, newPath}) }
func (f *fakeSink) OnDeleted(path string)                          { f.deleted = append(f.deleted, path) }
func (f *fakeSink) OnModified(path string)                         { f.modified = append(f.modified, path) }

func newTestSource(t *testing.T, sink Sink) *Source {
	t.Helper()
	return NewSource(t.TempDir(), sink, nil)
}

func TestHandleCreatePlainFile(t *testing.T) {
	sink := &fakeSink{}
	s := newTestSource(t, sink)
	path := filepath.Join(s.root, "report.docx")
	os.WriteFile(path, []byte("x"), 0o644)

	s.deliverCreate(nil, path)

	if len(sink.created) != 1 || sink.created[0] != path {
		t.Fatalf("expected one created event for %s, got %v", path, sink.created)
	}
}

func TestHandleCreateTempFileDropped(t *testing.T) {
	sink := &fakeSink{}
	s := newTestSource(t, sink)
	path := filepath.Join(s.root, "~$report.docx")
	os.WriteFile(path, []byte("x"), 0o644)

	s.deliverCreate(nil, path)

	if len(sink.created) != 0 {
		t.Fatalf("expected temp file to be dropped, got %v", sink.created)
	}
}

func TestHandleRemoveTempFileDropped(t *testing.T) {
	sink := &fakeSink{}
	s := newTestSource(t, sink)
	s.handleRemove(filepath.Join(s.root, "WRD1234.tmp"))

	if len(sink.deleted) != 0 {
		t.Fatalf("expected temp deletion to be dropped, got %v", sink.deleted)
	}
}

func TestHandleRemoveNonTemp(t *testing.T) {
	sink := &fakeSink{}
	s := newTestSource(t, sink)
	path := filepath.Join(s.root, "doc.docx")
	s.handleRemove(path)

	if len(sink.deleted) != 1 || sink.deleted[0] != path {
		t.Fatalf("expected delete event for %s, got %v", path, sink.deleted)
	}
}

func TestRenamePairingProducesRenamed(t *testing.T) {
	sink := &fakeSink{}
	s := newTestSource(t, sink)

	oldPath := filepath.Join(s.root, "New Folder")
	newPath := filepath.Join(s.root, "Reports")
	os.Mkdir(newPath, 0o755)

	s.handleRenameFrom(oldPath)
	s.handleCreate(nil, newPath)

	if len(sink.renamed) != 1 || sink.renamed[0][0] != oldPath || sink.renamed[0][1] != newPath {
		t.Fatalf("expected one rename pair, got created=%v renamed=%v", sink.created, sink.renamed)
	}
	if len(sink.deleted) != 0 {
		t.Fatalf("rename pairing should not also emit a delete, got %v", sink.deleted)
	}
}

func TestRenameTimeoutFallsBackToDelete(t *testing.T) {
	sink := &fakeSink{}
	s := newTestSource(t, sink)
	oldPath := filepath.Join(s.root, "orphaned.txt")

	s.handleRenameFrom(oldPath)
	time.Sleep(renamePairWindow + 200*time.Millisecond)

	if len(sink.deleted) != 1 || sink.deleted[0] != oldPath {
		t.Fatalf("expected delete fallback for unpaired rename, got %v", sink.deleted)
	}
}

func TestHandleWriteDropsDirectory(t *testing.T) {
	sink := &fakeSink{}
	s := newTestSource(t, sink)
	s.handleWrite(s.root)

	if len(sink.modified) != 0 {
		t.Fatalf("expected directory write to be dropped, got %v", sink.modified)
	}
}
