package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/hiring-pipeline/database"
	"github.com/jonathan/hiring-pipeline/internal/config"
)

var (
	migrateSteps int
	migrateYes   bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration tool",
	Long:  `Database migration tool for managing schema versions. Use with 'up' or 'down' subcommands.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Usage()
	},
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending database migrations",
	RunE:  runMigrateUp,
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert database migrations",
	Long: `Revert applied migrations. WARNING: reverting the initial migration drops
every pipeline, job and candidate.

Examples:
  # Revert one migration
  hiring_pipeline migrate down --num-steps 1 --yes`,
	RunE: runMigrateDown,
}

func init() {
	migrateDownCmd.Flags().IntVarP(&migrateSteps, "num-steps", "n", 1, "Number of migrations to revert (0 = all)")
	migrateDownCmd.Flags().BoolVarP(&migrateYes, "yes", "y", false, "Skip the confirmation prompt")

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	rootCmd.AddCommand(migrateCmd)
}

func migrationLogger() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := config.NewLogger(os.Stderr, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func runMigrateUp(_ *cobra.Command, _ []string) error {
	cfg, logger, err := migrationLogger()
	if err != nil {
		return err
	}

	logger.Info("Applying database migrations")
	if err := database.MigrateUp(cfg.DatabaseURL); err != nil {
		return err
	}
	reportVersion(logger, cfg.DatabaseURL)
	return nil
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	if migrateSteps < 0 {
		return fmt.Errorf("--num-steps must be non-negative, got %d", migrateSteps)
	}

	cfg, logger, err := migrationLogger()
	if err != nil {
		return err
	}

	if !migrateYes {
		fmt.Fprint(cmd.OutOrStdout(), "This may destroy data. Continue? (yes/no): ")
		var response string
		if _, err := fmt.Fscanln(cmd.InOrStdin(), &response); err != nil {
			return fmt.Errorf("failed to read user input: %w", err)
		}
		if response != "yes" && response != "y" {
			logger.Info("Migration cancelled by user")
			return nil
		}
	}

	logger.Info("Reverting database migrations", "steps", migrateSteps)
	if err := database.MigrateDown(cfg.DatabaseURL, migrateSteps); err != nil {
		return err
	}
	reportVersion(logger, cfg.DatabaseURL)
	return nil
}

func reportVersion(logger *slog.Logger, connString string) {
	version, dirty, err := database.GetVersion(connString)
	switch {
	case err != nil:
		logger.Warn("Unable to get migration version", "error", err)
	case dirty:
		logger.Warn("Database is in a dirty state", "version", version)
	default:
		logger.Info("Migrations complete", "version", version)
	}
}
