package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/idlink/internal/auth/emails"
	"github.com/devilmonastery/idlink/internal/auth/oauth"
	"github.com/devilmonastery/idlink/internal/auth/oidc"
	"github.com/devilmonastery/idlink/internal/config"
	"github.com/devilmonastery/idlink/internal/domain/entities"
	"github.com/devilmonastery/idlink/internal/domain/services"
	"github.com/devilmonastery/idlink/internal/infrastructure/database/sqlstore"
	"github.com/devilmonastery/idlink/internal/pkg/idgen"
	"github.com/devilmonastery/idlink/internal/pkg/logger"
	"github.com/devilmonastery/idlink/migrations"
	"github.com/devilmonastery/idlink/server/internal/http/handlers"
	"github.com/devilmonastery/idlink/server/internal/session"
)

const shutdownTimeout = 10 * time.Second

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand
type globalFlags struct {
	configPath    string
	logLevel      string
	logFile       string
	logFormat     string
	alsoLogStderr bool
}

func newRootCommand() *cobra.Command {
	var (
		flags        globalFlags
		forceVersion int
		cfg          *config.Config
	)

	cmd := &cobra.Command{
		Use:           "server",
		Short:         "idlink identity server",
		Long:          "Links Google and GitHub logins to a single local user account per email",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(flags.configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return setupServerLogging(cmd, cfg, flags)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), cfg, forceVersion)
		},
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to config file (optional)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error), overrides config")
	cmd.PersistentFlags().StringVar(&flags.logFile, "log-file", "", "Log file path (if specified, logs to file instead of stderr)")
	cmd.PersistentFlags().BoolVar(&flags.alsoLogStderr, "alsologtostderr", false, "Log to both file and stderr")
	cmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "Log format (text, json), overrides config")
	cmd.Flags().IntVar(&forceVersion, "force-migration", -1, "Force migration version (use to fix dirty migration state)")

	cmd.AddCommand(newMigrateCommand(func() *config.Config { return cfg }))
	cmd.AddCommand(newUserCommand(func() *config.Config { return cfg }))
	cmd.AddCommand(newAuditCommand(func() *config.Config { return cfg }))

	return cmd
}

// setupServerLogging configures the global logger; flags win over the config file
func setupServerLogging(cmd *cobra.Command, cfg *config.Config, flags globalFlags) error {
	level, format, file := cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File
	if cmd.Flags().Changed("log-level") {
		level = flags.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		format = flags.logFormat
	}
	if cmd.Flags().Changed("log-file") {
		file = flags.logFile
	}

	globalLogger, err := logger.SetupLogger(logger.Config{
		Level:         logger.ParseLevel(level),
		LogFile:       file,
		LogToStderr:   file == "",
		AlsoLogStderr: flags.alsoLogStderr,
		Format:        format,
		Service:       "idlink",
		Environment:   cfg.Environment,
	})
	if err != nil {
		return err
	}

	slog.SetDefault(globalLogger)
	return nil
}

// openDatabase connects with retries, for container startup ordering
func openDatabase(ctx context.Context, cfg *config.Config) (*sqlstore.Connection, error) {
	log := slog.Default().With("component", "database")

	maxRetries := 10
	retryDelay := 2 * time.Second

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		conn, err := sqlstore.NewConnection(cfg.Database.Driver, cfg.Database.ConnectionString())
		if err == nil {
			log.Info("connected to database", "driver", cfg.Database.Driver)
			return conn, nil
		}
		lastErr = err

		if cfg.Database.Driver == config.DriverSQLite || i == maxRetries-1 {
			break
		}
		log.Warn("failed to connect to database",
			"attempt", i+1,
			"max_retries", maxRetries,
			"error", err,
			"retry_delay", retryDelay)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
		retryDelay *= 2
		if retryDelay > 30*time.Second {
			retryDelay = 30 * time.Second
		}
	}
	return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.Database.Driver, lastErr)
}

func runServer(ctx context.Context, cfg *config.Config, forceVersion int) error {
	log := slog.Default().With("component", "server")
	log.Info("starting server initialization", "environment", cfg.Environment)

	if err := idgen.Initialize(cfg.NodeID); err != nil {
		return fmt.Errorf("failed to initialize ID generator: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	if forceVersion >= 0 {
		log.Info("force setting migration version", "version", forceVersion)
		if err := conn.ForceMigrationVersion(migrations.FS, forceVersion); err != nil {
			return fmt.Errorf("failed to force migration version: %w", err)
		}
		log.Info("migration version forced, exiting", "version", forceVersion)
		return nil
	}

	if err := conn.RunMigrations(migrations.FS); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	clients, err := oauth.NewClients(cfg.Auth.Providers)
	if err != nil {
		return fmt.Errorf("failed to initialize providers: %w", err)
	}
	for _, p := range cfg.Auth.Providers {
		log.Info("identity provider configured", "name", p.Name, "client_id", p.ClientID)
	}

	sources := map[entities.Provider]emails.Source{}
	if gh, ok := cfg.Auth.Provider(entities.ProviderGitHub.Slug()); ok {
		sources[entities.ProviderGitHub] = emails.NewGitHubSource(gh.EmailsURL, cfg.Auth.EmailLookupTimeout)
	}

	users := sqlstore.NewUserRepository(conn.DB)
	logins := services.NewLoginService(
		oidc.NewDefaultRegistry(),
		emails.NewResolver(cfg.Auth.EmailLookupTimeout, sources),
		services.NewReconcileService(sqlstore.NewUnitOfWork(conn.DB)),
	)

	secret, generated, err := session.DecodeSecret(cfg.Session.Secret)
	if err != nil {
		return err
	}
	if generated {
		log.Warn("no session secret configured, generating random one (sessions won't persist)")
	}
	sessions := session.NewManager(secret, cfg.Session.MaxAge, cfg.Session.Secure)

	h := handlers.New(handlers.Options{
		Clients:     clients,
		Logins:      logins,
		Profiles:    services.NewProfileService(users),
		Sessions:    sessions,
		Health:      conn,
		Audit:       sqlstore.NewAuditRepository(conn.DB),
		FrontendURL: cfg.HTTP.FrontendURL,
	}, slog.Default())

	srv := &http.Server{
		Addr:              cfg.HTTP.Address(),
		Handler:           handlers.NewRouter(h, slog.Default().With("component", "http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to serve http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}
