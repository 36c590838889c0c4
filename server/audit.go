package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/idlink/internal/config"
	"github.com/devilmonastery/idlink/internal/infrastructure/database/sqlstore"
)

func newAuditCommand(cfg func() *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit trail commands",
	}

	var olderThan time.Duration
	prune := &cobra.Command{
		Use:     "prune",
		Short:   "Delete audit events older than the retention window",
		Example: "  server audit prune --older-than 2160h",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			conn, err := openMigrated(cmd, cfg())
			if err != nil {
				return err
			}
			defer conn.Close()

			cutoff := time.Now().Add(-olderThan)
			deleted, err := sqlstore.NewAuditRepository(conn.DB).DeleteBefore(cmd.Context(), cutoff)
			if err != nil {
				return err
			}

			slog.Info("audit events pruned", "deleted", deleted, "cutoff", cutoff.UTC().Format(time.RFC3339))
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d audit events\n", deleted)
			return nil
		},
	}
	prune.Flags().DurationVar(&olderThan, "older-than", 90*24*time.Hour, "Retention window")
	cmd.AddCommand(prune)

	return cmd
}
