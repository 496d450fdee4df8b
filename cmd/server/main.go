package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"reqgather/internal/api"
	"reqgather/internal/app"
	"reqgather/internal/config"
	"reqgather/internal/logging"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}
	cfg := config.New()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
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

	router := api.NewRouter(api.Deps{
		Interview: a.Interview,
		Branding:  a.Branding,
		Estimator: a.Estimator,
		Artefacts: a.Files,
		Gatherer:  a.Registry,
		APIToken:  cfg.APIToken,
		Log:       logger.Named("http"),
	})
	if cfg.APIToken == "" {
		logger.Warn("⚠️ API_TOKEN is empty, /v1 is unauthenticated")
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := api.Serve(ctx, srv, logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("❌ http server failed", zap.Error(err))
	}
}
