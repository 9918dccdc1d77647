// Package main provides the Telegram bot binary: one attempt per player per
// day, scores kept per chat.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/growbot/internal/config"
	"github.com/cory-johannsen/growbot/internal/game/attempt"
	"github.com/cory-johannsen/growbot/internal/game/dice"
	"github.com/cory-johannsen/growbot/internal/observability"
	"github.com/cory-johannsen/growbot/internal/server"
	"github.com/cory-johannsen/growbot/internal/telegram"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file; empty uses defaults and the environment")
	flag.Parse()

	debug, debugSet := os.LookupEnv("DEBUG")
	envFile, err := envFileFor(debug, debugSet)
	if err != nil {
		log.Fatalf("selecting env file: %v", err)
	}
	envLoaded, err := loadEnvFile(envFile)
	if err != nil {
		log.Fatalf("%v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, "growbot")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting bot",
		zap.String("env_file", envFile),
		zap.Bool("env_file_loaded", envLoaded),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("cooldown_policy", cfg.Game.CooldownPolicy),
	)

	ctx := context.Background()

	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("opening record store", zap.Error(err))
	}
	defer closeRepo()

	policy, err := buildPolicy(cfg.Game)
	if err != nil {
		logger.Fatal("building cooldown policy", zap.Error(err))
	}
	table, err := buildTable(cfg.Game)
	if err != nil {
		logger.Fatal("loading weight table", zap.Error(err))
	}
	logger.Info("weight table loaded",
		zap.Int("ranges", len(table)),
		zap.Float64("total_weight", table.TotalWeight()),
	)

	roller := dice.NewLoggedRoller(table, dice.NewCryptoSource(), logger)
	engine := attempt.NewEngine(repo, policy, roller, logger)

	api, err := telegram.NewAPI(cfg.Telegram.Token, logger)
	if err != nil {
		logger.Fatal("connecting to telegram", zap.Error(err))
	}
	handler := telegram.NewHandler(api, engine, cfg.Game.TopSize, logger)
	bot := telegram.NewBot(api, handler, cfg.Telegram.PollTimeout, logger)

	lc := server.NewLifecycle(logger)
	lc.Add("telegram", bot)

	logger.Info("bot ready", zap.Duration("startup", time.Since(start)))

	if err := lc.Run(ctx); err != nil {
		logger.Error("bot stopped with error", zap.Error(err))
		closeRepo()
		_ = logger.Sync()
		os.Exit(1)
	}
}
