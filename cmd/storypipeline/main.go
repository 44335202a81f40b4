package main

import (
	"context"
	"os"

	"StoryPipeline/internal/app"
	"StoryPipeline/internal/config"
	"StoryPipeline/internal/logging"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("application setup failed", "error", err)
		os.Exit(1)
	}

	actor := os.Getenv("USER")
	if actor == "" {
		actor = "cli"
	}

	if err := application.Run(ctx, actor); err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}
