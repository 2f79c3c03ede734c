package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/campusq/campusq/api"
	"github.com/campusq/campusq/internal/app"
	"github.com/campusq/campusq/internal/config"
)

// runServe initializes and starts the HTTP API server.
func runServe() error {
	logger := initLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting campusq", "version", AppVersion)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	srv := api.NewServer(a.DBPool, a.Forum, a.Chatbot, a.Promoter,
		cfg.ChatRatePerMinute, logger.With("component", "api"))

	return srv.Run(ctx, cfg.ListenAddr)
}
