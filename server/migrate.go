package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/idlink/internal/config"
	"github.com/devilmonastery/idlink/internal/infrastructure/database/sqlstore"
	"github.com/devilmonastery/idlink/migrations"
)

func newMigrateCommand(cfg func() *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long:  "Commands for applying, rolling back and inspecting the idlink schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := openDatabase(cmd.Context(), cfg())
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := conn.RunMigrations(migrations.FS); err != nil {
				return err
			}
			return printVersion(cmd, conn)
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			conn, err := openDatabase(cmd.Context(), cfg())
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := conn.RollbackMigrations(migrations.FS, steps); err != nil {
				return err
			}
			slog.Info("migrations rolled back", "steps", steps)
			return printVersion(cmd, conn)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := openDatabase(cmd.Context(), cfg())
			if err != nil {
				return err
			}
			defer conn.Close()
			return printVersion(cmd, conn)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "force VERSION",
		Short:   "Force the schema version (use to fix dirty migration state)",
		Args:    cobra.ExactArgs(1),
		Example: "  server migrate force 1",
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			conn, err := openDatabase(cmd.Context(), cfg())
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := conn.ForceMigrationVersion(migrations.FS, version); err != nil {
				return err
			}
			return printVersion(cmd, conn)
		},
	})

	return cmd
}

func printVersion(cmd *cobra.Command, conn *sqlstore.Connection) error {
	version, dirty, err := conn.MigrationVersion(migrations.FS)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "version: %d, dirty: %t\n", version, dirty)
	return nil
}
