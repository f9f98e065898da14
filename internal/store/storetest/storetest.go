// Package storetest opens throwaway migrated SQLite databases for tests.
package storetest

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/winbingo/core/database"
)

// Open returns a migrated SQLite database under t.TempDir, closed on cleanup.
func Open(t testing.TB) *sqlx.DB {
	t.Helper()
	cfg := database.Config{Driver: database.DriverSQLite, Path: filepath.Join(t.TempDir(), "winbingo.db")}
	if err := database.RunMigrations(cfg); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
