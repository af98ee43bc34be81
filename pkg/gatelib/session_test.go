package gatelib

import (
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestFileSessionStorePersists(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/sessions.unveil"

	s, err := NewFileSessionStore(testLogger(), fs, path, time.Hour)
	if err != nil {
		t.Fatalf("NewFileSessionStore: %v", err)
	}
	if s.Seen("k1") {
		t.Fatal("fresh store claims to have seen k1")
	}
	if err := s.Mark("k1"); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	if !s.Seen("k1") {
		t.Fatal("marked key not seen")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// A new store over the same file sees the flag.
	s2, err := NewFileSessionStore(testLogger(), fs, path, time.Hour)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if !s2.Seen("k1") {
		t.Fatal("flag did not survive reopen")
	}
	if s2.Seen("k2") {
		t.Fatal("phantom flag after reopen")
	}
}

func TestFileSessionStoreCorruptFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/sessions.unveil"
	if err := afero.WriteFile(fs, path, []byte("not a gob stream"), 0666); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s, err := NewFileSessionStore(testLogger(), fs, path, time.Hour)
	if err != nil {
		t.Fatalf("corrupt file should not fail open: %v", err)
	}
	defer s.Close()
	if s.Len() != 0 {
		t.Fatalf("corrupt store has %d entries, want 0", s.Len())
	}
	if err := s.Mark("k1"); err != nil {
		t.Fatalf("Mark over corrupt file: %v", err)
	}
}

func TestFileSessionStoreClearAndFlush(t *testing.T) {
	fs := afero.NewMemMapFs()
	s, err := NewFileSessionStore(testLogger(), fs, "/s", time.Hour)
	if err != nil {
		t.Fatalf("NewFileSessionStore: %v", err)
	}
	defer s.Close()

	s.Mark("a")
	s.Mark("b")
	if err := s.Clear("a"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if s.Seen("a") || !s.Seen("b") {
		t.Fatal("Clear removed the wrong flag")
	}
	if err := s.Clear("missing"); err != nil {
		t.Fatalf("Clear of a missing key: %v", err)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if s.Seen("b") || s.Len() != 0 {
		t.Fatal("Flush left flags behind")
	}
}

func TestFileSessionStoreTTL(t *testing.T) {
	fs := afero.NewMemMapFs()
	s, err := NewFileSessionStore(testLogger(), fs, "/s", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("NewFileSessionStore: %v", err)
	}
	defer s.Close()

	s.Mark("k")
	if !s.Seen("k") {
		t.Fatal("fresh mark not seen")
	}
	time.Sleep(80 * time.Millisecond)
	if s.Seen("k") {
		t.Fatal("expired mark still seen")
	}
	// The entry is kept until swept.
	if s.Len() != 1 {
		t.Fatalf("Len = %d before sweep", s.Len())
	}
	if n := s.Sweep(); n != 1 {
		t.Fatalf("Sweep = %d, want 1", n)
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d after sweep", s.Len())
	}
}

func TestMemSessionStore(t *testing.T) {
	s := NewMemSessionStore(50 * time.Millisecond)
	if s.Seen("k") {
		t.Fatal("fresh store claims to have seen k")
	}
	s.Mark("k")
	if !s.Seen("k") {
		t.Fatal("marked key not seen")
	}
	s.Clear("k")
	if s.Seen("k") {
		t.Fatal("cleared key still seen")
	}

	s.Mark("a")
	s.Mark("b")
	time.Sleep(80 * time.Millisecond)
	s.Mark("c")
	if n := s.Sweep(); n != 2 {
		t.Fatalf("Sweep = %d, want 2", n)
	}
	if !s.Seen("c") {
		t.Fatal("sweep dropped a live flag")
	}

	s.Flush()
	if s.Seen("c") {
		t.Fatal("flushed flag still seen")
	}
}
