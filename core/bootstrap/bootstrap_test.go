package bootstrap

import (
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/winbingo/core/config"
	coredatabase "github.com/m3rciful/winbingo/core/database"
)

func TestRunOrder(t *testing.T) {
	var steps []string
	res, err := Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: func(*coreconfig.Config) error { steps = append(steps, "logger"); return nil },
		Migrate:    func(coredatabase.Config) error { steps = append(steps, "migrate"); return nil },
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			steps = append(steps, "connect")
			return nil, nil
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(steps) != 3 || steps[0] != "logger" || steps[1] != "connect" || steps[2] != "migrate" {
		t.Fatalf("steps = %v", steps)
	}
	if err := res.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestRunReportsMigrationError(t *testing.T) {
	boom := errors.New("dirty database")
	res, err := Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: func(*coreconfig.Config) error { return nil },
		Migrate:    func(coredatabase.Config) error { return boom },
		Connect:    func(coredatabase.Config) (*sqlx.DB, error) { return nil, nil },
	})
	if !errors.Is(err, boom) || res != nil {
		t.Fatalf("res = %v, err = %v", res, err)
	}
}

func TestSkipMigrations(t *testing.T) {
	migrated := false
	_, err := Run(Options{
		Config:         &coreconfig.Config{},
		SkipMigrations: true,
		LoggerInit:     func(*coreconfig.Config) error { return nil },
		Migrate:        func(coredatabase.Config) error { migrated = true; return nil },
		Connect:        func(coredatabase.Config) (*sqlx.DB, error) { return nil, nil },
	})
	if err != nil || migrated {
		t.Fatalf("err = %v, migrated = %v", err, migrated)
	}
}

func TestNilConfig(t *testing.T) {
	if err := Migrate(Options{}); err == nil {
		t.Fatalf("nil config accepted")
	}
}
