package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/unveil/unveil/pkg/gatelib"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func record(id string, finalized time.Time, outcome string) *gatelib.RunRecord {
	return &gatelib.RunRecord{
		ID:          id,
		URL:         "https://deck.test/" + id,
		SessionID:   "sess-1",
		StartedAt:   finalized.Add(-2 * time.Second),
		FinalizedAt: finalized,
		Outcome:     outcome,
		ElapsedMs:   2000,
		Combined:    1,
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("blank path accepted")
	}
}

func TestRecordAndList(t *testing.T) {
	s, _ := openTestStore(t)

	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2", "r3"} {
		rec := record(id, base.Add(time.Duration(i)*time.Second), gatelib.OutcomeRevealed)
		if id == "r2" {
			rec.Outcome = gatelib.OutcomeCanceled
			rec.TimedOut = true
			rec.Memoized = true
		}
		if err := s.Record(rec); err != nil {
			t.Fatalf("Record %s: %v", id, err)
		}
	}

	all, err := s.List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	for i, want := range []string{"r1", "r2", "r3"} {
		if all[i].ID != want {
			t.Fatalf("order = [%s %s %s], want chronological", all[0].ID, all[1].ID, all[2].ID)
		}
	}

	r2 := all[1]
	if r2.Outcome != gatelib.OutcomeCanceled || !r2.TimedOut || !r2.Memoized {
		t.Fatalf("r2 = %+v", r2)
	}
	if r2.URL != "https://deck.test/r2" || r2.SessionID != "sess-1" || r2.ElapsedMs != 2000 {
		t.Fatalf("r2 fields = %+v", r2)
	}
	if !r2.FinalizedAt.Equal(base.Add(time.Second)) {
		t.Fatalf("finalized = %v", r2.FinalizedAt)
	}

	last, err := s.List(2)
	if err != nil {
		t.Fatalf("List(2): %v", err)
	}
	if len(last) != 2 || last[0].ID != "r2" || last[1].ID != "r3" {
		t.Fatalf("List(2) = %v", ids(last))
	}
}

func TestListEmpty(t *testing.T) {
	s, _ := openTestStore(t)
	recs, err := s.List(10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("len = %d", len(recs))
	}
}

func TestRecordNil(t *testing.T) {
	s, _ := openTestStore(t)
	if err := s.Record(nil); err == nil {
		t.Fatal("nil record accepted")
	}
}

func TestRecordOverwritesSameID(t *testing.T) {
	s, _ := openTestStore(t)
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	if err := s.Record(record("r1", at, gatelib.OutcomeRevealed)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	updated := record("r1", at, gatelib.OutcomeCanceled)
	if err := s.Record(updated); err != nil {
		t.Fatalf("re-Record: %v", err)
	}
	recs, err := s.List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 || recs[0].Outcome != gatelib.OutcomeCanceled {
		t.Fatalf("records = %v", ids(recs))
	}
}

func TestFlush(t *testing.T) {
	s, _ := openTestStore(t)
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	for _, id := range []string{"r1", "r2"} {
		if err := s.Record(record(id, at, gatelib.OutcomeRevealed)); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	recs, err := s.List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("flush left %d records", len(recs))
	}
}

func TestReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	if err := s.Record(record("r1", at, gatelib.OutcomeRevealed)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	recs, err := s2.List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "r1" {
		t.Fatalf("records = %v", ids(recs))
	}
}

func ids(recs []*gatelib.RunRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}
