package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/growbot/internal/config"
	"github.com/cory-johannsen/growbot/internal/game/attempt"
	"github.com/cory-johannsen/growbot/internal/game/cooldown"
	"github.com/cory-johannsen/growbot/internal/game/dice"
	"github.com/cory-johannsen/growbot/internal/storage/file"
	"github.com/cory-johannsen/growbot/internal/storage/postgres"
	"github.com/cory-johannsen/growbot/internal/storage/record"
)

// openRepository builds the configured record store. The returned close
// function releases it and is never nil.
func openRepository(ctx context.Context, cfg config.Config, logger *zap.Logger) (attempt.Repository, func(), error) {
	switch cfg.Storage.Backend {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return nil, func() {}, err
		}
		return postgres.NewRecordRepository(pool.DB(), logger), pool.Close, nil
	case "file":
		format, err := record.ParseFormat(cfg.Storage.Format)
		if err != nil {
			return nil, func() {}, err
		}
		logger.Info("using file storage",
			zap.String("root", cfg.Storage.Root),
			zap.Stringer("format", format),
		)
		return file.NewStore(cfg.Storage.Root, format, logger), func() {}, nil
	}
	return nil, func() {}, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

func buildPolicy(cfg config.GameConfig) (cooldown.Policy, error) {
	switch cfg.CooldownPolicy {
	case "rolling":
		return cooldown.NewRollingPolicy(cfg.CooldownWindow), nil
	case "calendar":
		loc, err := cfg.Location()
		if err != nil {
			return nil, fmt.Errorf("resolving timezone %q: %w", cfg.Timezone, err)
		}
		p, err := cooldown.NewCalendarPolicy(cfg.ResetSchedule, loc)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown cooldown policy %q", cfg.CooldownPolicy)
}

func buildTable(cfg config.GameConfig) (dice.Table, error) {
	if cfg.WeightsFile == "" {
		return dice.DefaultTable(), nil
	}
	return dice.LoadTableFromFile(cfg.WeightsFile)
}
