package main

// Run database migrations:
//   go run ./cmd/migrate up
//   go run ./cmd/migrate down
//   go run ./cmd/migrate status

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"jobtracker-backend/internal/shared/config"
	"jobtracker-backend/internal/shared/storage/db"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var databaseURL string

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the jobtracker Postgres schema",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Postgres URL (defaults to DATABASE_URL)")

	withDB := func(run func(ctx context.Context, sqlDB *sql.DB, cmd *cobra.Command) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			url := databaseURL
			if url == "" {
				url = config.Load().DatabaseURL
			}
			ctx := cmd.Context()
			sqlDB, err := db.Connect(ctx, url, db.PoolOptions(db.ProfileMigrate))
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer sqlDB.Close()
			return run(ctx, sqlDB, cmd)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: withDB(func(ctx context.Context, sqlDB *sql.DB, cmd *cobra.Command) error {
				if err := db.RunMigrations(ctx, sqlDB); err != nil {
					return err
				}
				return printVersion(ctx, sqlDB, cmd)
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: withDB(func(ctx context.Context, sqlDB *sql.DB, cmd *cobra.Command) error {
				if err := db.RollbackMigration(ctx, sqlDB); err != nil {
					return err
				}
				return printVersion(ctx, sqlDB, cmd)
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show which migrations are applied",
			Args:  cobra.NoArgs,
			RunE: withDB(func(ctx context.Context, sqlDB *sql.DB, cmd *cobra.Command) error {
				return db.MigrationStatus(ctx, sqlDB)
			}),
		},
	)
	return root
}

func printVersion(ctx context.Context, sqlDB *sql.DB, cmd *cobra.Command) error {
	version, err := db.MigrationVersion(ctx, sqlDB)
	if err != nil {
		return err
	}
	cmd.Printf("schema version %d\n", version)
	return nil
}
