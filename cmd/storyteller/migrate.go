package main

import (
	"fmt"
	"strconv"

	"storyteller-bot/internal/config"
	"storyteller-bot/internal/database"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the story archive schema",
	}

	withMigrator := func(run func(m *database.Migrator, log *zap.Logger, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(false)
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			defer func() { _ = log.Sync() }()

			pool, err := database.Connect(cmd.Context(), database.PoolConfig{
				DSN:          cfg.GetDSN(),
				MaxConns:     2,
				ConnectTries: cfg.DBConnectTries,
				RetryDelay:   dbRetryDelay,
			}, log)
			if err != nil {
				return err
			}
			defer pool.Close()
			return run(database.NewMigrator(database.MigrationsFS, database.MigrationsDir, pool, log), log, args)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(m *database.Migrator, _ *zap.Logger, _ []string) error {
				return m.Up()
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(m *database.Migrator, _ *zap.Logger, _ []string) error {
				return m.Down()
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(m *database.Migrator, log *zap.Logger, _ []string) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				log.Info("Schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
				fmt.Printf("version=%d dirty=%t\n", version, dirty)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Set the schema version without running migrations (fixes a dirty state)",
			Args:  cobra.ExactArgs(1),
			RunE: withMigrator(func(m *database.Migrator, _ *zap.Logger, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				return m.Force(v)
			}),
		},
	)
	return cmd
}
