// Package main applies the PostgreSQL schema migrations for the postgres
// record store.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"github.com/cory-johannsen/growbot/internal/config"
	"github.com/cory-johannsen/growbot/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file; empty uses defaults and the environment")
	source := flag.String("source", "file://migrations", "migration source URL")
	direction := flag.String("direction", "up", "migration direction: up or down")
	steps := flag.Int("steps", 0, "number of steps (0 = all)")
	flag.Parse()

	logger, err := observability.NewCLILogger("info")
	if err != nil {
		observability.Fatal(nil, "initializing logger", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		observability.Fatal(logger, "loading config", err)
	}

	if err := migrateSchema(*source, cfg.Database, *direction, *steps, logger); err != nil {
		observability.Fatal(logger, "migration failed", err)
	}
	_ = logger.Sync()
}

// migrateSchema moves the schema steps migrations in direction; steps <= 0
// applies every pending migration.
func migrateSchema(source string, db config.DatabaseConfig, direction string, steps int, logger *zap.Logger) error {
	start := time.Now()

	var n int
	switch direction {
	case "up":
		n = steps
	case "down":
		n = -steps
	default:
		return fmt.Errorf("invalid direction %q: must be 'up' or 'down'", direction)
	}

	m, err := migrate.New(source, db.DSN())
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	switch {
	case n != 0:
		err = m.Steps(n)
	case direction == "up":
		err = m.Up()
	default:
		err = m.Down()
	}
	noChange := errors.Is(err, migrate.ErrNoChange)
	if err != nil && !noChange {
		return err
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return fmt.Errorf("reading schema version: %w", verr)
	}
	logger.Info("schema migrated",
		zap.String("direction", direction),
		zap.Bool("changed", !noChange),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
		zap.Duration("elapsed", time.Since(start)),
	)
	fmt.Fprintf(os.Stdout, "version=%d dirty=%v\n", version, dirty)
	return nil
}
