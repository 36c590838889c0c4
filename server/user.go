package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/idlink/internal/config"
	"github.com/devilmonastery/idlink/internal/domain/repositories"
	"github.com/devilmonastery/idlink/internal/domain/services"
	"github.com/devilmonastery/idlink/internal/infrastructure/database/sqlstore"
	"github.com/devilmonastery/idlink/migrations"
)

func newUserCommand(cfg func() *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User inspection commands",
		Long:  "Commands for inspecting users and their linked provider identities",
	}

	cmd.AddCommand(newUserShowCommand(cfg))
	cmd.AddCommand(newUserListCommand(cfg))

	return cmd
}

// openMigrated connects and brings the schema up to date
func openMigrated(cmd *cobra.Command, cfg *config.Config) (*sqlstore.Connection, error) {
	conn, err := openDatabase(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}
	if err := conn.RunMigrations(migrations.FS); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return conn, nil
}

func newUserShowCommand(cfg func() *config.Config) *cobra.Command {
	var (
		email    string
		activity int
	)

	cmd := &cobra.Command{
		Use:     "show",
		Short:   "Show a user, the provider identities linked to it and recent activity",
		Example: "  server user show --email alice@example.com",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := openMigrated(cmd, cfg())
			if err != nil {
				return err
			}
			defer conn.Close()

			svc := services.NewUserService(sqlstore.NewUserRepository(conn.DB), sqlstore.NewProviderLinkRepository(conn.DB))
			user, links, err := svc.GetUserWithLinks(cmd.Context(), email)
			if err != nil {
				if services.IsUserNotFound(err) {
					return fmt.Errorf("no user with email %s", email)
				}
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "ID:\t%s\n", user.ID)
			fmt.Fprintf(w, "Email:\t%s\n", user.Email)
			fmt.Fprintf(w, "Display name:\t%s\n", user.DisplayName)
			if user.AvatarURL != nil {
				fmt.Fprintf(w, "Avatar:\t%s\n", *user.AvatarURL)
			}
			fmt.Fprintf(w, "Created:\t%s\n", user.CreatedAt.Format(time.RFC3339))
			fmt.Fprintf(w, "Updated:\t%s\n", user.UpdatedAt.Format(time.RFC3339))
			fmt.Fprintln(w)
			fmt.Fprintln(w, "PROVIDER\tSUBJECT\tLINKED")
			for _, link := range links {
				fmt.Fprintf(w, "%s\t%s\t%s\n", link.Provider, link.ProviderUserID, link.CreatedAt.Format(time.RFC3339))
			}

			if activity > 0 {
				events, err := sqlstore.NewAuditRepository(conn.DB).ListByEmail(cmd.Context(), user.Email, activity)
				if err != nil {
					return err
				}
				fmt.Fprintln(w)
				fmt.Fprintln(w, "TIME\tACTION\tRESULT\tIP")
				for _, e := range events {
					result := "ok"
					if !e.Success && e.Reason != nil {
						result = *e.Reason
					}
					ip := "-"
					if e.IPAddress != nil {
						ip = *e.IPAddress
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.CreatedAt.Format(time.RFC3339), e.Action, result, ip)
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "User email (required)")
	cmd.Flags().IntVar(&activity, "activity", 10, "Number of recent audit events to show (0 to hide)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newUserListCommand(cfg func() *config.Config) *cobra.Command {
	var opts repositories.ListUsersOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := openMigrated(cmd, cfg())
			if err != nil {
				return err
			}
			defer conn.Close()

			svc := services.NewUserService(sqlstore.NewUserRepository(conn.DB), sqlstore.NewProviderLinkRepository(conn.DB))
			users, total, err := svc.ListUsers(cmd.Context(), opts)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tEMAIL\tDISPLAY NAME\tCREATED")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Email, u.DisplayName, u.CreatedAt.Format(time.RFC3339))
			}
			fmt.Fprintf(w, "\n%d of %d users\n", len(users), total)
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "Maximum users to show")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "Users to skip")
	cmd.Flags().StringVar(&opts.Search, "search", "", "Filter by email or display name")

	return cmd
}
