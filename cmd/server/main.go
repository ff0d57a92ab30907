package main

import (
	"os"

	"talking-avatar/backend/pkg/config"
	"talking-avatar/backend/pkg/logger"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "avatar-backend",
		Short:         "Talking avatar chat backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), config.New())
		},
	}

	root.AddCommand(newServeCmd(), newMigrateCmd())
	return root
}

// setupLogger installs the global logger described by cfg
func setupLogger(cfg *config.Config) *logger.Logger {
	log := logger.New(logger.ConfigFrom(cfg.Logging.Level, cfg.Logging.Format))
	logger.SetGlobal(log)
	return log
}
