package database

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/m3rciful/winbingo/migrations"
)

func TestSelectApplied(t *testing.T) {
	files := []string{"000001_init.up.sql", "000002_requests.up.sql", "000003_states.up.sql"}
	cases := []struct {
		from, to uint64
		want     []string
	}{
		{0, 3, files},
		{1, 3, files[1:]},
		{3, 3, nil},
		{2, 1, nil},
	}
	for _, tc := range cases {
		got := selectApplied(files, tc.from, tc.to)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("selectApplied(%d,%d) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestEmbeddedMigrationsPerDriver(t *testing.T) {
	for _, driver := range []string{DriverPostgres, DriverSQLite} {
		files := listMigrationFiles(migrations.FS, driver)
		if len(files) == 0 {
			t.Fatalf("no migrations embedded for %s", driver)
		}
		if parseVersion(files[0]) != 1 {
			t.Fatalf("first %s migration = %s", driver, files[0])
		}
	}
}

func TestRunMigrationsSQLite(t *testing.T) {
	cfg := Config{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "wallet.db")}
	if err := RunMigrations(cfg); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// A second run is a no-op.
	if err := RunMigrations(cfg); err != nil {
		t.Fatalf("migrate again: %v", err)
	}

	db, err := Connect(cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"users", "history", "requests", "user_states"} {
		var n int
		if err := db.Get(&n, db.Rebind("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?"), table); err != nil {
			t.Fatalf("lookup %s: %v", table, err)
		}
		if n != 1 {
			t.Fatalf("table %s missing", table)
		}
	}
}

func TestNormalizeDriver(t *testing.T) {
	cfg := Config{Driver: "MySQL"}
	if err := cfg.Normalize(); err == nil {
		t.Fatal("expected unsupported driver error")
	}
	cfg = Config{Host: "db", Name: "winbingo", User: "bot", Password: "p@ss"}
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("normalize postgres: %v", err)
	}
	if cfg.Driver != DriverPostgres || cfg.Port != "5432" || cfg.SSLMode != "disable" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if got := cfg.MigrateURL(); got != "postgres://bot:p%40ss@db:5432/winbingo?sslmode=disable" {
		t.Fatalf("migrate url = %s", got)
	}
}
