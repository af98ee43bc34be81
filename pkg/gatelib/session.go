package gatelib

import (
	"encoding/gob"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// SessionStore holds the once-per-session reveal flags, keyed by gate
// identity. Marks carry a timestamp so stale sessions can be swept.
type SessionStore interface {
	// Seen reports whether key was marked within the store's TTL.
	Seen(key string) bool
	// Mark records a successful finalization for key.
	Mark(key string) error
	// Clear removes the flag for key.
	Clear(key string) error
	// Flush removes every flag.
	Flush() error
	// Sweep drops expired flags and returns how many were dropped.
	Sweep() int
}

// FileSessionStore is a SessionStore persisted as a gob file. A corrupt or
// truncated file is discarded and the store starts fresh.
type FileSessionStore struct {
	mu      sync.Mutex
	f       afero.File
	ttl     time.Duration
	entries map[string]time.Time
	l       *log.Logger
}

// NewFileSessionStore opens or creates the session file at path. A nil fs
// means the OS filesystem, an empty path means SessionFilePath(), a
// non-positive ttl means DEF_SESSION_TTL.
func NewFileSessionStore(l *log.Logger, fs afero.Fs, path string, ttl time.Duration) (*FileSessionStore, error) {
	if l == nil {
		l = log.Default()
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if path == "" {
		path = SessionFilePath()
	}
	if ttl <= 0 {
		ttl = DEF_SESSION_TTL
	}
	f, err := fs.OpenFile(path, fileFlagsRW, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open session file: %w", err)
	}
	s := &FileSessionStore{
		f:       f,
		ttl:     ttl,
		entries: make(map[string]time.Time),
		l:       l,
	}
	if err := gob.NewDecoder(f).Decode(&s.entries); err != nil {
		// Fresh or unreadable file, either way start over.
		s.entries = make(map[string]time.Time)
	}
	return s, nil
}

func (s *FileSessionStore) Seen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.entries[key]
	if !ok {
		return false
	}
	return time.Since(at) < s.ttl
}

func (s *FileSessionStore) Mark(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = time.Now()
	return s.persistLocked()
}

func (s *FileSessionStore) Clear(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return nil
	}
	delete(s.entries, key)
	return s.persistLocked()
}

func (s *FileSessionStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]time.Time)
	return s.persistLocked()
}

func (s *FileSessionStore) Sweep() (n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, at := range s.entries {
		if time.Since(at) >= s.ttl {
			delete(s.entries, key)
			n++
		}
	}
	if n > 0 {
		if err := s.persistLocked(); err != nil {
			s.l.Printf("session store: sweep persist failed: %s\n", err.Error())
		}
	}
	return n
}

// Len is the number of live flags, expired ones included until swept.
func (s *FileSessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *FileSessionStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

func (s *FileSessionStore) persistLocked() error {
	if err := s.f.Truncate(0); err != nil {
		return err
	}
	if _, err := s.f.Seek(0, 0); err != nil {
		return err
	}
	return gob.NewEncoder(s.f).Encode(s.entries)
}

// MemSessionStore is an in-memory SessionStore for embedded use and tests.
type MemSessionStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]time.Time
}

func NewMemSessionStore(ttl time.Duration) *MemSessionStore {
	if ttl <= 0 {
		ttl = DEF_SESSION_TTL
	}
	return &MemSessionStore{
		ttl:     ttl,
		entries: make(map[string]time.Time),
	}
}

func (s *MemSessionStore) Seen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.entries[key]
	return ok && time.Since(at) < s.ttl
}

func (s *MemSessionStore) Mark(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = time.Now()
	return nil
}

func (s *MemSessionStore) Clear(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemSessionStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]time.Time)
	return nil
}

func (s *MemSessionStore) Sweep() (n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, at := range s.entries {
		if time.Since(at) >= s.ttl {
			delete(s.entries, key)
			n++
		}
	}
	return n
}
