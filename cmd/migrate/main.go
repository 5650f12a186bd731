package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"

	"github.com/hackgods/vet-clinic-scheduling/internal/config"
	"github.com/hackgods/vet-clinic-scheduling/internal/db"
	"github.com/hackgods/vet-clinic-scheduling/pkg/logging"
)

// Usage: migrate [-steps N] up|down|version
func main() {
	steps := flag.Int("steps", 0, "number of migrations to apply (0 = all for up, 1 for down)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel).With("service", "migrate")

	if cfg.PostgresDSN == "" {
		logger.Error("POSTGRES_DSN is required")
		os.Exit(1)
	}

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "up"
	}

	if err := run(cfg.PostgresDSN, cmd, *steps, logger); err != nil {
		logger.Error("migration failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

func run(dsn, cmd string, steps int, logger *logging.Logger) error {
	if cmd == "up" && steps == 0 {
		if err := db.Migrate(dsn); err != nil {
			return err
		}
		logger.Info("schema up to date")
		return nil
	}

	m, err := db.NewMigrator(dsn)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	switch cmd {
	case "up":
		err = m.Steps(steps)
	case "down":
		if steps <= 0 {
			steps = 1
		}
		err = m.Steps(-steps)
	case "version":
		v, dirty, verr := m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			logger.Info("no migrations applied")
			return nil
		}
		if verr != nil {
			return verr
		}
		logger.Info("schema version", "version", v, "dirty", dirty)
		return nil
	default:
		return fmt.Errorf("unknown command %q (want up, down or version)", cmd)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	logger.Info("migration applied", "command", cmd, "steps", steps)
	return nil
}
