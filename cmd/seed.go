package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/campusq/campusq/internal/app"
	"github.com/campusq/campusq/internal/config"
	"github.com/campusq/campusq/internal/promoter"
)

// runSeed loads a JSON array of facts from path into the knowledge store.
// Already-seeded facts are skipped, so re-running after a partial failure
// only processes what is missing.
func runSeed(path string) error {
	logger := initLogger()

	facts, err := promoter.LoadFactsFile(path)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	result, err := a.Seeder.Seed(ctx, facts)
	if err != nil {
		return fmt.Errorf("seeding: %w", err)
	}

	fmt.Printf("Seeded %d facts (%d skipped, %d failed)\n",
		result.Inserted, result.Skipped, result.Failed)
	if result.Failed > 0 {
		return fmt.Errorf("%d facts failed, re-run to retry", result.Failed)
	}
	return nil
}
