package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"reqgather/internal/app"
	"reqgather/internal/auth"
	"reqgather/internal/config"
	"reqgather/internal/logging"
	"reqgather/internal/telegram"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}
	cfg := config.New()
	if cfg.TelegramBotToken == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN is required")
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}

	var allowRepo auth.Repository
	if cfg.AllowlistPath != "" {
		repo, err := auth.NewFileRepository(cfg.AllowlistPath)
		if err != nil {
			logger.Warn("failed to init allowlist repo", zap.Error(err))
		} else {
			allowRepo = repo
		}
	}
	authSvc, err := auth.NewWithRepo(allowRepo, cfg.AllowedUsers)
	if err != nil {
		logger.Fatal("❌ failed to init auth", zap.Error(err))
	}

	if cfg.RequireBranding {
		// The bot has no profile flow; profiles come from the HTTP API.
		logger.Warn("REQUIRE_BRANDING is set: chats are refused until a profile is submitted via POST /v1/branding")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("❌ failed to init services", zap.Error(err))
	}
	defer a.Close()

	sched, err := a.Maintenance()
	if err != nil {
		logger.Fatal("❌ failed to init scheduler", zap.Error(err))
	}
	sched.Start()
	defer sched.Stop()

	bot, err := telegram.New(cfg.TelegramBotToken, authSvc, a.Interview, a.KV, logger.Named("telegram"))
	if err != nil {
		logger.Fatal("❌ failed to create bot", zap.Error(err))
	}
	bot.Start(ctx)
}
