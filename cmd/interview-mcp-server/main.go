package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"reqgather/internal/app"
	"reqgather/internal/config"
	"reqgather/internal/logging"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}
	cfg := config.New()

	// zap writes to stderr; stdout carries the protocol.
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("❌ failed to init services", zap.Error(err))
	}
	defer a.Close()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "reqgather-interview-mcp",
		Version: "1.0.0",
	}, nil)

	t := &tools{engine: a.Interview, log: logger.Named("mcp")}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "interview_turn",
		Description: "Answers the last question of a requirements interview and returns the next question, or the final requirements",
	}, t.Turn)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "interview_state",
		Description: "Returns the stored state of an interview session",
	}, t.State)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "interview_reset",
		Description: "Deletes an interview session so it can start over",
	}, t.Reset)

	logger.Info("🔗 starting interview MCP server on stdin/stdout", zap.Int("tools", 3))
	if err := server.Run(ctx, mcp.NewStdioTransport()); err != nil && ctx.Err() == nil {
		logger.Fatal("❌ server failed", zap.Error(err))
	}
}
