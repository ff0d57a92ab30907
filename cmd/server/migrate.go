package main

import (
	"context"
	"fmt"

	"talking-avatar/backend/internal/store"
	"talking-avatar/backend/pkg/config"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply credential store migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), config.Load())
		},
	}
}

func runMigrate(ctx context.Context, cfg *config.Config) error {
	log := setupLogger(cfg)

	// Open runs the migrations
	st, err := store.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("migrate %s store: %w", cfg.Database.Driver, err)
	}
	defer st.Close()

	log.Info("Migrations applied", "driver", cfg.Database.Driver)
	return nil
}
