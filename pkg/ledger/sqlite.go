package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/hardenctl/pkg/stig"

	_ "modernc.org/sqlite"
)

// Store persists the compliance history in SQLite (modernc.org/sqlite, pure
// Go). Appends are serialized so concurrent sessions sharing one ledger file
// never interleave a read-modify-write.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the ledger database at the given path.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scans (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp   TEXT NOT NULL,
		score       REAL NOT NULL,
		pass_count  INTEGER NOT NULL,
		fail_count  INTEGER NOT NULL,
		cat1_fails  INTEGER NOT NULL DEFAULT 0,
		cat2_fails  INTEGER NOT NULL DEFAULT 0,
		cat3_fails  INTEGER NOT NULL DEFAULT 0,
		applied     TEXT NOT NULL DEFAULT '[]'
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordScan appends one snapshot. Per-severity counts are computed from the
// findings passed here, not re-derived from prior ledger state. The row is
// durable before RecordScan returns.
func (s *Store) RecordScan(ctx context.Context, score stig.Score, findings []stig.Finding, applied []string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := newEntry(score, findings, applied)
	appliedJSON, err := json.Marshal(entry.Applied)
	if err != nil {
		return Entry{}, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO scans (timestamp, score, pass_count, fail_count, cat1_fails, cat2_fails, cat3_fails, applied)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Timestamp.Format(time.RFC3339),
		entry.Score, entry.PassCount, entry.FailCount,
		entry.CatIFails, entry.CatIIFails, entry.CatIIIFails,
		string(appliedJSON),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("record scan: %w", err)
	}
	entry.ID, _ = res.LastInsertId()
	return entry, nil
}

// History returns every entry in append order.
func (s *Store) History(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, score, pass_count, fail_count, cat1_fails, cat2_fails, cat3_fails, applied
		 FROM scans ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	defer rows.Close()

	var history []Entry
	for rows.Next() {
		var (
			e           Entry
			ts          string
			appliedJSON string
		)
		if err := rows.Scan(&e.ID, &ts, &e.Score, &e.PassCount, &e.FailCount,
			&e.CatIFails, &e.CatIIFails, &e.CatIIIFails, &appliedJSON); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.Timestamp, _ = time.Parse(time.RFC3339, ts)
		if err := json.Unmarshal([]byte(appliedJSON), &e.Applied); err != nil {
			e.Applied = []string{}
		}
		history = append(history, e)
	}
	return history, rows.Err()
}

// Improvement compares the first and latest snapshots. The second return is
// false when fewer than two scans have been recorded; that is not an error.
func (s *Store) Improvement(ctx context.Context) (*Improvement, bool, error) {
	history, err := s.History(ctx)
	if err != nil {
		return nil, false, err
	}
	imp, ok := improvement(history)
	return imp, ok, nil
}
