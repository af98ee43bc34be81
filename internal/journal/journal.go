// Package journal persists finished run records in SQLite so list and
// history survive daemon restarts.
package journal

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/unveil/unveil/pkg/gatelib"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	url          TEXT NOT NULL,
	session_id   TEXT NOT NULL DEFAULT '',
	started_at   INTEGER NOT NULL,
	finalized_at INTEGER NOT NULL,
	outcome      TEXT NOT NULL,
	timed_out    INTEGER NOT NULL DEFAULT 0,
	memoized     INTEGER NOT NULL DEFAULT 0,
	elapsed_ms   INTEGER NOT NULL DEFAULT 0,
	combined     REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS runs_finalized_at ON runs (finalized_at DESC);
`

// Store is a SQLite-backed run journal.
type Store struct {
	sqlDB *sql.DB
}

var _ gatelib.Journal = (*Store)(nil)

// DefaultPath is the journal location inside the current config directory.
func DefaultPath() string {
	return filepath.Join(gatelib.ConfigDir, "journal.db")
}

// Open opens (creating if needed) the journal database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("journal path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping journal db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Record inserts one finished run. Re-recording an id overwrites the row.
func (s *Store) Record(r *gatelib.RunRecord) error {
	if r == nil {
		return fmt.Errorf("record is required")
	}
	_, err := s.sqlDB.Exec(
		`INSERT OR REPLACE INTO runs (
		   id, url, session_id, started_at, finalized_at,
		   outcome, timed_out, memoized, elapsed_ms, combined
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.URL,
		r.SessionID,
		toMillis(r.StartedAt),
		toMillis(r.FinalizedAt),
		r.Outcome,
		boolToInt(r.TimedOut),
		boolToInt(r.Memoized),
		r.ElapsedMs,
		r.Combined,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// List returns the most recent limit records in chronological order. A
// non-positive limit returns everything.
func (s *Store) List(limit int) ([]*gatelib.RunRecord, error) {
	query := `SELECT id, url, session_id, started_at, finalized_at,
	                 outcome, timed_out, memoized, elapsed_ms, combined
	            FROM runs
	           ORDER BY finalized_at DESC, rowid DESC`
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = s.sqlDB.Query(query+` LIMIT ?`, limit)
	} else {
		rows, err = s.sqlDB.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []*gatelib.RunRecord
	for rows.Next() {
		var (
			rec                    gatelib.RunRecord
			startedAt, finalizedAt int64
			timedOut, memoized     int
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.URL,
			&rec.SessionID,
			&startedAt,
			&finalizedAt,
			&rec.Outcome,
			&timedOut,
			&memoized,
			&rec.ElapsedMs,
			&rec.Combined,
		); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		rec.StartedAt = fromMillis(startedAt)
		rec.FinalizedAt = fromMillis(finalizedAt)
		rec.TimedOut = timedOut != 0
		rec.Memoized = memoized != 0
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	reverse(records)
	return records, nil
}

// Flush deletes every journaled record.
func (s *Store) Flush() error {
	if _, err := s.sqlDB.Exec(`DELETE FROM runs`); err != nil {
		return fmt.Errorf("flush runs: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func reverse(records []*gatelib.RunRecord) {
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
}
