package pinwatcher

import (
	"path/filepath"
	"testing"
)

type fakeStore struct {
	hydrated     []string
	markedInSync []string
	converted    []string
	dehydrated   []string
}

func (f *fakeStore) Hydrate(clientAbs string, offset, length int64) error {
	f.hydrated = append(f.hydrated, clientAbs)
	return nil
}

func (f *fakeStore) MarkInSync(clientAbs string) error {
	f.markedInSync = append(f.markedInSync, clientAbs)
	return nil
}

func (f *fakeStore) ConvertAndDehydrate(clientAbs string, identity []byte) error {
	f.converted = append(f.converted, clientAbs)
	return nil
}

func (f *fakeStore) Dehydrate(clientAbs string, offset, length int64) error {
	f.dehydrated = append(f.dehydrated, clientAbs)
	return nil
}

func TestRelativeToWithinRoot(t *testing.T) {
	root := filepath.FromSlash("/sync/client")
	rel, err := relativeTo(root, filepath.Join(root, "docs", "a.txt"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rel != "docs/a.txt" {
		t.Fatalf("expected docs/a.txt, got %s", rel)
	}
}

func TestRelativeToOutsideRootFails(t *testing.T) {
	root := filepath.FromSlash("/sync/client")
	_, err := relativeTo(root, filepath.FromSlash("/other/a.txt"))
	if err == nil {
		t.Fatal("expected error for path outside root")
	}
}

func TestOnPinnedHydratesAndMarksInSync(t *testing.T) {
	store := &fakeStore{}
	w := New(t.TempDir(), store, nil)
	path := filepath.Join(w.root, "report.docx")

	w.onPinned(path)

	if len(store.hydrated) != 1 || store.hydrated[0] != path {
		t.Fatalf("expected hydrate call for %s, got %v", path, store.hydrated)
	}
	if len(store.markedInSync) != 1 {
		t.Fatalf("expected mark-in-sync call, got %v", store.markedInSync)
	}
}

func TestHandleAttributeChangeIgnoresUnreadablePinState(t *testing.T) {
	store := &fakeStore{}
	w := New(t.TempDir(), store, nil)

	w.stateMu.Lock()
	w.last["x"] = 0 // CF_PIN_STATE_UNSPECIFIED sentinel; populated below via real call path instead
	w.stateMu.Unlock()

	// Without a real placeholder on disk QueryPinState will error (or report
	// Unspecified on non-Windows), so handleAttributeChange should not call
	// into the store at all; this exercises the early-return path rather
	// than the transition logic covered by TestOnPinnedHydratesAndMarksInSync.
	w.handleAttributeChange(filepath.Join(w.root, "missing.txt"))

	if len(store.hydrated) != 0 || len(store.dehydrated) != 0 {
		t.Fatalf("expected no store calls for an unreadable pin state, got hydrated=%v dehydrated=%v", store.hydrated, store.dehydrated)
	}
}
