// Package bootstrap brings up the logger and database shared by every
// command: connect, then migrate.
package bootstrap

import (
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/winbingo/core/config"
	coredatabase "github.com/m3rciful/winbingo/core/database"
	"github.com/m3rciful/winbingo/core/logger"
)

// Options control the bootstrap pipeline. Nil funcs take the core defaults.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config

	// SkipMigrations connects without applying migrations.
	SkipMigrations bool

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
}

// Result exposes infrastructure initialized by the pipeline.
type Result struct {
	DB *sqlx.DB
}

// Close releases the database handle.
func (r *Result) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// Run initializes the logger, connects, and applies migrations.
func Run(opts Options) (*Result, error) {
	if err := initLogger(opts); err != nil {
		return nil, err
	}
	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}
	res := &Result{DB: db}
	if opts.SkipMigrations {
		return res, nil
	}
	if err := migrate(opts); err != nil {
		return nil, errors.Join(err, res.Close())
	}
	return res, nil
}

// Migrate initializes the logger and applies migrations only.
func Migrate(opts Options) error {
	if err := initLogger(opts); err != nil {
		return err
	}
	return migrate(opts)
}

func initLogger(opts Options) error {
	if opts.Config == nil {
		return errors.New("bootstrap: nil config provided")
	}
	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return fmt.Errorf("bootstrap: logger init failed: %w", err)
	}
	return nil
}

func migrate(opts Options) error {
	run := opts.Migrate
	if run == nil {
		run = coredatabase.RunMigrations
	}
	if err := run(opts.Database); err != nil {
		return fmt.Errorf("bootstrap: migrations failed: %w", err)
	}
	return nil
}
