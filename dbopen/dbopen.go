// CLAUDE:SUMMARY Opens the yeoju SQLite file (modernc) shared by recordstore and observability, applies pragmas and component schemas in one transaction.
// Package dbopen opens the single SQLite file that backs submitted records and
// the editor event log.
//
//	db, err := dbopen.Open("data/yeoju.db",
//		dbopen.WithMkdirAll(),
//		dbopen.WithSchema(recordstore.Schema),
//		dbopen.WithSchema(observability.Schema))
//
// Tests use OpenMemory, which pins the pool to one connection.
package dbopen

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

const memoryPath = ":memory:"

type pragma struct {
	name  string
	value string
}

type settings struct {
	pragmas  []pragma
	schemas  []string
	mkdir    bool
	maxConns int
}

func defaultPragmas() []pragma {
	return []pragma{
		{"foreign_keys", "ON"},
		{"journal_mode", "WAL"},
		{"busy_timeout", "10000"},
		{"synchronous", "NORMAL"},
	}
}

// Option customises Open.
type Option func(*settings)

// WithPragma sets a PRAGMA, replacing the default of the same name.
func WithPragma(name, value string) Option {
	return func(s *settings) {
		for i := range s.pragmas {
			if s.pragmas[i].name == name {
				s.pragmas[i].value = value
				return
			}
		}
		s.pragmas = append(s.pragmas, pragma{name, value})
	}
}

// WithBusyTimeout sets busy_timeout in milliseconds.
func WithBusyTimeout(ms int) Option { return WithPragma("busy_timeout", fmt.Sprint(ms)) }

// WithSchema queues DDL. All queued schemas run in one transaction after
// the pragmas.
func WithSchema(ddl string) Option { return func(s *settings) { s.schemas = append(s.schemas, ddl) } }

// WithMkdirAll creates the parent directory of the database file.
func WithMkdirAll() Option { return func(s *settings) { s.mkdir = true } }

// WithMaxOpenConns caps the pool.
func WithMaxOpenConns(n int) Option { return func(s *settings) { s.maxConns = n } }

// Open opens the database at path and prepares it.
func Open(path string, opts ...Option) (*sql.DB, error) {
	s := settings{pragmas: defaultPragmas()}
	for _, o := range opts {
		o(&s)
	}
	if path == memoryPath {
		// each connection to :memory: is its own database
		s.maxConns = 1
	} else if s.mkdir {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("dbopen: mkdir %s: %w", filepath.Dir(path), err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("dbopen: open %s: %w", path, err)
	}
	if s.maxConns > 0 {
		db.SetMaxOpenConns(s.maxConns)
	}
	if err := prepare(db, &s); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func prepare(db *sql.DB, s *settings) error {
	for _, p := range s.pragmas {
		if _, err := db.Exec("PRAGMA " + p.name + " = " + p.value); err != nil {
			return fmt.Errorf("dbopen: pragma %s: %w", p.name, err)
		}
	}
	if len(s.schemas) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("dbopen: begin schema: %w", err)
	}
	for i, ddl := range s.schemas {
		if _, err := tx.Exec(ddl); err != nil {
			tx.Rollback()
			return fmt.Errorf("dbopen: schema %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dbopen: commit schema: %w", err)
	}
	return nil
}

// OpenMemory opens a private in-memory database closed at test cleanup.
func OpenMemory(t testing.TB, opts ...Option) *sql.DB {
	t.Helper()
	db, err := Open(memoryPath, opts...)
	if err != nil {
		t.Fatalf("dbopen.OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
