// Package sqlite implements the repository interfaces on SQLite.
//
// modernc.org/sqlite is a pure-Go translation of SQLite, so the binary needs
// no C toolchain. It registers itself with database/sql as "sqlite".
//
// CONSTRAINTS LIVE IN THE SCHEMA:
// Every uniqueness rule of the registry is a UNIQUE constraint in the
// migrations, and counters are bumped with `SET n = n + 1`. The Go code never
// checks-then-inserts; it inserts and translates the constraint error.
//
//   - UNIQUE violation      → apperror.ErrConflict
//   - FOREIGN KEY violation → apperror.ErrNotFound (the parent disappeared)
//   - sql.ErrNoRows         → apperror.ErrNotFound
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/chrisokchen/bbdsl-platform/internal/apperror"
	"github.com/chrisokchen/bbdsl-platform/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// MemoryPath opens a private in-memory database. Used by tests and the CLI.
const MemoryPath = ":memory:"

// DB wraps the sql.DB connection pool and implements repository.Store.
type DB struct {
	conn   *sql.DB
	logger *slog.Logger
}

// New opens the database at dbPath and applies pending migrations.
//
// Pragmas go in the DSN so that every pooled connection gets them, not just
// the first one:
//   - busy_timeout: writers wait for the lock instead of failing with SQLITE_BUSY
//   - journal_mode(WAL): readers don't block behind a writer
//   - foreign_keys: enforced per connection, off by default in SQLite
//
// An in-memory database exists per connection, so the pool is pinned to a
// single connection in that case.
func New(dbPath string, logger *slog.Logger) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	if dbPath == MemoryPath {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn, logger: logger}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

func dsn(dbPath string) string {
	pragmas := []string{
		"_pragma=busy_timeout(5000)",
		"_pragma=foreign_keys(1)",
		"_time_format=sqlite",
	}
	if dbPath != MemoryPath {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)")
	}
	return dbPath + "?" + strings.Join(pragmas, "&")
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// now is the single source of timestamps; everything is stored in UTC so
// that text ordering of DATETIME columns matches time ordering.
func now() time.Time {
	return time.Now().UTC()
}

func isConstraint(err error, codes ...int) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	for _, c := range codes {
		if se.Code() == c {
			return true
		}
	}
	return false
}

func isUniqueViolation(err error) bool {
	if isConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	if isConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// likePattern builds a `%term%` pattern for `LIKE ? ESCAPE '\'`.
// Wildcards typed by the user match literally.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}

// nullString stores "" as NULL. Used for nullable UNIQUE columns so that
// many rows can leave them unset.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// optional binds a nil pointer as NULL.
func optional(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func checkAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return notFound(resource, id)
	}
	return nil
}

func notFound(resource, id string) error {
	return apperror.NotFound(resource, id)
}
