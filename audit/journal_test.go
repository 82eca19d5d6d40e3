package audit

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"leasehub/core/events"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	journal, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { journal.Close() })
	return journal
}

func TestJournalAppendAssignsSequence(t *testing.T) {
	journal := openTestJournal(t)
	journal.nowFn = func() time.Time { return time.Unix(1_700_000_000, 0) }

	first, err := journal.Append(&events.Event{Type: "rental.listed", Attributes: map[string]string{"id": "1"}})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	second, err := journal.Append(&events.Event{Type: "rental.rented", Attributes: map[string]string{"id": "1"}})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if first != 1 || second != 2 {
		t.Fatalf("sequence numbers %d, %d", first, second)
	}
}

func TestJournalReplayPreservesOrder(t *testing.T) {
	journal := openTestJournal(t)
	want := []string{"rental.listed", "rental.rented", "rental.completed"}
	for _, typ := range want {
		if _, err := journal.Append(&events.Event{Type: typ}); err != nil {
			t.Fatalf("append %s: %v", typ, err)
		}
	}

	var got []string
	var lastSeq uint64
	if err := journal.Replay(func(entry Entry) error {
		if entry.Seq <= lastSeq {
			t.Fatalf("sequence not increasing: %d after %d", entry.Seq, lastSeq)
		}
		lastSeq = entry.Seq
		got = append(got, entry.Type)
		return nil
	}); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("replayed %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("replayed %v, want %v", got, want)
		}
	}
}

func TestJournalReplayStopsOnError(t *testing.T) {
	journal := openTestJournal(t)
	for i := 0; i < 3; i++ {
		if _, err := journal.Append(&events.Event{Type: "rental.listed"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	stop := errors.New("stop")
	var seen int
	err := journal.Replay(func(Entry) error {
		seen++
		if seen == 2 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Fatalf("expected stop error, got %v", err)
	}
	if seen != 2 {
		t.Fatalf("saw %d entries, want 2", seen)
	}
}

func TestJournalSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	journal, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := journal.Append(&events.Event{Type: "rental.cancelled", Attributes: map[string]string{"id": "9"}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := journal.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	var entries []Entry
	if err := reopened.Replay(func(entry Entry) error {
		entries = append(entries, entry)
		return nil
	}); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(entries) != 1 || entries[0].Type != "rental.cancelled" || entries[0].Attributes["id"] != "9" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	seq, err := reopened.Append(&events.Event{Type: "rental.listed"})
	if err != nil {
		t.Fatalf("append after reopen: %v", err)
	}
	if seq != 2 {
		t.Fatalf("sequence after reopen = %d, want 2", seq)
	}
}

func TestJournalEmitDoesNotPanicOnFailure(t *testing.T) {
	journal := openTestJournal(t)
	journal.Close()
	journal.Emit(&events.Event{Type: "rental.listed"})
}
