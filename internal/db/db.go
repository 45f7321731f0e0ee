// Package db persists sweep results in SQLite so runs with different
// configurations can be compared after the fact.
package db

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/shotboundary/internal/monitoring"
	"github.com/banshee-data/shotboundary/internal/timeutil"
)

var logger = monitoring.NewLogger("db")

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrationsFS returns the embedded schema migrations.
func MigrationsFS() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err) // the embed pattern guarantees the directory
	}
	return sub
}

type DB struct {
	*sql.DB

	// Clock stamps recorded sweeps.
	Clock timeutil.Clock
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// OpenDB opens the database and applies connection pragmas without touching
// the schema.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Pragmas are per connection.
	sqlDB.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	return &DB{DB: sqlDB, Clock: timeutil.RealClock{}}, nil
}

// NewDB opens the database and migrates it to the latest schema.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(MigrationsFS()); err != nil {
		db.Close()
		return nil, err
	}
	version, _, err := db.MigrateVersion(MigrationsFS())
	if err != nil {
		db.Close()
		return nil, err
	}
	logger.Printf("Opened %s at schema version %d", path, version)
	return db, nil
}
