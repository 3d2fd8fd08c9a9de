package sqlite

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// migrate applies every pending embedded migration.
//
// The migrate instance is deliberately not closed: its sqlite driver closes
// the *sql.DB it was given, which the repository still owns.
func (db *DB) migrate() error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("loading embedded migrations: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db.conn, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("initialising migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("initialising migrator: %w", err)
	}
	m.Log = &migrateLogger{logger: db.logger}

	from, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("schema is dirty at version %d, manual repair required", from)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("applying migrations: %w", err)
	}

	to, _, _ := m.Version()
	db.logger.Info("database migrated",
		slog.Int("from_version", int(from)),
		slog.Int("to_version", int(to)),
	)
	return nil
}

// SchemaVersion returns the applied migration version and its dirty flag.
func (db *DB) SchemaVersion() (uint, bool, error) {
	var (
		version uint
		dirty   bool
	)
	err := db.conn.QueryRow(`SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	if err != nil {
		return 0, false, fmt.Errorf("sqlite: reading schema version: %w", err)
	}
	return version, dirty, nil
}

// migrateLogger adapts golang-migrate's logger to slog.
type migrateLogger struct {
	logger *slog.Logger
}

func (l *migrateLogger) Printf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *migrateLogger) Verbose() bool {
	return false
}
