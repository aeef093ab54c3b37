package remotefeed

import "testing"

func TestDiffDetectsCreateDeleteAndRename(t *testing.T) {
	previous := map[string]snapshotEntry{
		"docs/a.txt":    {size: 10},
		"docs/gone.txt": {size: 5},
	}
	current := map[string]snapshotEntry{
		"docs/a.txt":      {size: 10},
		"docs/new/gone.txt": {size: 5}, // same basename, moved directory
		"docs/fresh.txt":  {size: 1},
	}

	events := diff(previous, current)

	var creates, deletes, renames int
	for _, ev := range events {
		switch ev.Kind {
		case RemoteCreate:
			creates++
			if ev.RelativePath != "docs/fresh.txt" {
				t.Fatalf("unexpected create event for %s", ev.RelativePath)
			}
		case RemoteDelete:
			deletes++
		case RemoteRename:
			renames++
			if ev.OldRelativePath != "docs/gone.txt" || ev.RelativePath != "docs/new/gone.txt" {
				t.Fatalf("unexpected rename pairing: %+v", ev)
			}
		}
	}

	if creates != 1 || deletes != 0 || renames != 1 {
		t.Fatalf("expected 1 create, 0 delete, 1 rename, got creates=%d deletes=%d renames=%d", creates, deletes, renames)
	}
}

func TestDiffNoChanges(t *testing.T) {
	snap := map[string]snapshotEntry{"a.txt": {size: 1}}
	if events := diff(snap, snap); len(events) != 0 {
		t.Fatalf("expected no events for identical snapshots, got %v", events)
	}
}

type fakeLister struct {
	entries []ListedEntry
	err     error
}

func (f *fakeLister) ListRemoteRecursive(remotePath string) ([]ListedEntry, error) {
	return f.entries, f.err
}

func TestPollBaselineEmitsNoEvents(t *testing.T) {
	lister := &fakeLister{entries: []ListedEntry{{Path: "a.txt", Size: 1}}}
	f := NewPollingFeed(lister, nil)

	f.poll(true)

	select {
	case ev := <-f.Events():
		t.Fatalf("expected no events from baseline poll, got %+v", ev)
	default:
	}
}

func TestPollAfterBaselineEmitsCreate(t *testing.T) {
	lister := &fakeLister{entries: nil}
	f := NewPollingFeed(lister, nil)
	f.poll(true)

	lister.entries = []ListedEntry{{Path: "new.txt", Size: 4}}
	f.poll(false)

	select {
	case ev := <-f.Events():
		if ev.Kind != RemoteCreate || ev.RelativePath != "new.txt" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	default:
		t.Fatal("expected a create event")
	}
}
