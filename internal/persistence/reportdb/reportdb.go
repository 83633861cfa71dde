// Package reportdb stores desync reports and command log dumps in a
// small sqlite database, so a dead session leaves something queryable
// behind.
package reportdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"railverse.dev/internal/netsync"
)

type DB struct {
	db *sql.DB

	ch   chan netsync.DesyncReport
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &DB{
		db: db,
		ch: make(chan netsync.DesyncReport, 64),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS desyncs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at TEXT NOT NULL,
			tick INTEGER NOT NULL,
			participant INTEGER NOT NULL,
			reason TEXT NOT NULL,
			digest TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_desyncs_tick ON desyncs(tick);`,
		`CREATE TABLE IF NOT EXISTS command_dumps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at TEXT NOT NULL,
			tick INTEGER NOT NULL,
			ring TEXT NOT NULL,
			dump TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Report implements netsync.DesyncReporter. The write happens on the
// writer goroutine; blocking here would stall the session loop at the
// worst possible moment.
func (s *DB) Report(ctx context.Context, r netsync.DesyncReport) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- r:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// RecordDump stores a textual command log dump (one of the two rings)
// alongside the desync reports.
func (s *DB) RecordDump(tick uint64, ring, dump string) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT INTO command_dumps(at, tick, ring, dump) VALUES (datetime('now'), ?, ?, ?)`,
		tick, ring, dump)
	return err
}

func (s *DB) loop() {
	for r := range s.ch {
		_, err := s.db.Exec(
			`INSERT INTO desyncs(at, tick, participant, reason, digest) VALUES (?, ?, ?, ?, ?)`,
			r.At.UTC().Format("2006-01-02T15:04:05.000Z"),
			r.Tick, r.Participant, r.Reason,
			fmt.Sprintf("%016x", r.Digest))
		if err != nil {
			// Nothing sane to do from the writer goroutine; the
			// session already logged the desync itself.
			continue
		}
	}
}

// Dump is one stored command ring dump.
type Dump struct {
	At   string
	Tick uint64
	Ring string
	Text string
}

// Dumps returns stored command log dumps, newest first.
func (s *DB) Dumps(ctx context.Context, limit int) ([]Dump, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, tick, ring, dump FROM command_dumps ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Dump
	for rows.Next() {
		var d Dump
		if err := rows.Scan(&d.At, &d.Tick, &d.Ring, &d.Text); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Desyncs returns the stored reports, newest first.
func (s *DB) Desyncs(ctx context.Context, limit int) ([]netsync.DesyncReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, tick, participant, reason, digest FROM desyncs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []netsync.DesyncReport
	for rows.Next() {
		var r netsync.DesyncReport
		var at, digest string
		if err := rows.Scan(&at, &r.Tick, &r.Participant, &r.Reason, &digest); err != nil {
			return nil, err
		}
		if ts, err := time.Parse("2006-01-02T15:04:05.000Z", at); err == nil {
			r.At = ts
		}
		if d, err := strconv.ParseUint(digest, 16, 64); err == nil {
			r.Digest = d
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
