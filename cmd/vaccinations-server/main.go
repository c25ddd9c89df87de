package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/vaccinations/internal/config"
	"github.com/ehr/vaccinations/internal/domain/eventlog"
	"github.com/ehr/vaccinations/internal/domain/outcome"
	"github.com/ehr/vaccinations/internal/domain/patient"
	"github.com/ehr/vaccinations/internal/domain/patientsession"
	"github.com/ehr/vaccinations/internal/domain/programme"
	"github.com/ehr/vaccinations/internal/domain/reply"
	"github.com/ehr/vaccinations/internal/domain/vaccination"
	"github.com/ehr/vaccinations/internal/platform/db"
	"github.com/ehr/vaccinations/internal/platform/middleware"
	"github.com/ehr/vaccinations/migrations"
)

const version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "vaccinations-server",
		Short:        "School vaccination patient session API",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(organisationCmd())
	root.AddCommand(outcomeCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// loadConfig loads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	logger := zerolog.New(out).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	return logger.Level(cfg.Level())
}

func connect(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		ApplicationName: "vaccinations-server",
	})
}

// migrationSource prefers a directory on disk and falls back to the
// migrations compiled into the binary.
func migrationSource(dir string) fs.FS {
	if dir != "" {
		return os.DirFS(dir)
	}
	return migrations.FS
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Running migrations on schema: %s\n", schema)
			count, err := db.NewMigratorFS(pool, migrationSource(dir)).Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(out, "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", db.SchemaName("default"), "Target schema for migrations")
	upCmd.Flags().String("dir", "", "Path to migrations directory (defaults to the embedded set)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigratorFS(pool, migrationSource(dir)).Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatuses(cmd.OutOrStdout(), schema, statuses)
			return nil
		},
	}
	statusCmd.Flags().String("schema", db.SchemaName("default"), "Target schema for migrations")
	statusCmd.Flags().String("dir", "", "Path to migrations directory (defaults to the embedded set)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printStatuses(out io.Writer, schema string, statuses []db.MigrationStatus) {
	fmt.Fprintf(out, "Migration status for schema: %s\n", schema)
	fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func organisationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "organisation",
		Short: "Manage organisations",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an organisation schema and migrate it",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Creating organisation schema: %s\n", db.SchemaName(name))
			if err := db.CreateOrganisationSchema(ctx, pool, name, migrationSource(cfg.MigrationsDir)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Organisation created successfully.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Organisation identifier (alphanumeric)")

	cmd.AddCommand(createCmd)
	return cmd
}

// outcomeFlags are the keys of the patient session printed by `outcome`.
type outcomeFlags struct {
	patientID    uuid.UUID
	programmeID  string
	sessionID    uuid.UUID
	organisation string
}

func parseOutcomeFlags(cmd *cobra.Command) (outcomeFlags, error) {
	var f outcomeFlags
	var err error
	raw, _ := cmd.Flags().GetString("patient")
	if f.patientID, err = uuid.Parse(raw); err != nil {
		return f, fmt.Errorf("--patient must be a UUID: %w", err)
	}
	raw, _ = cmd.Flags().GetString("session")
	if f.sessionID, err = uuid.Parse(raw); err != nil {
		return f, fmt.Errorf("--session must be a UUID: %w", err)
	}
	f.programmeID, _ = cmd.Flags().GetString("programme")
	if f.programmeID == "" {
		return f, fmt.Errorf("--programme is required")
	}
	f.organisation, _ = cmd.Flags().GetString("organisation")
	return f, nil
}

func outcomeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outcome",
		Short: "Print the derived status of a patient in a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags, err := parseOutcomeFlags(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if flags.organisation == "" {
				flags.organisation = cfg.DefaultOrganisation
			}
			logger := newLogger(cfg, os.Stderr)

			ctx := context.Background()
			pool, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			ctx, release, err := db.ScopedConn(ctx, pool, flags.organisation)
			defer release()
			if err != nil {
				return err
			}

			a := newApp(pool, logger, cfg, prometheus.NewRegistry())
			ps, err := a.outcomes.Get(ctx, flags.patientID, flags.programmeID, flags.sessionID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(ps)
		},
	}
	cmd.Flags().String("patient", "", "Patient ID")
	cmd.Flags().String("programme", "", "Programme ID, e.g. hpv")
	cmd.Flags().String("session", "", "Session ID")
	cmd.Flags().String("organisation", "", "Organisation (defaults to DEFAULT_ORGANISATION)")
	return cmd
}

// app holds the services of one process.
type app struct {
	events       *eventlog.Service
	patients     *patient.Service
	programmes   *programme.Service
	replies      *reply.Service
	vaccinations *vaccination.Service
	outcomes     *patientsession.Service
}

func newApp(pool *pgxpool.Pool, logger zerolog.Logger, cfg *config.Config, reg prometheus.Registerer) *app {
	tx := db.Transactor{}
	a := &app{}
	a.events = eventlog.NewService(eventlog.NewRepoPG(pool))
	a.patients = patient.NewService(patient.NewRepoPG(pool))
	a.programmes = programme.NewService(programme.NewProgrammeRepoPG(pool), programme.NewSessionRepoPG(pool), a.events, tx)
	a.replies = reply.NewService(reply.NewRepoPG(pool), a.programmes, a.events, tx)
	a.vaccinations = vaccination.NewService(vaccination.NewRepoPG(pool), a.programmes, a.patients, a.events, tx)
	a.outcomes = patientsession.NewService(a.patients, a.programmes, a.events, a.replies, a.vaccinations,
		outcome.NewEngine(logger), patientsession.NewMetrics(reg))
	a.outcomes.SetClock(cfg.Clock())
	return a
}

// routeRegistrar is implemented by every domain handler.
type routeRegistrar interface {
	RegisterRoutes(api *echo.Group)
}

func (a *app) handlers() []routeRegistrar {
	return []routeRegistrar{
		eventlog.NewHandler(a.events),
		patient.NewHandler(a.patients),
		programme.NewHandler(a.programmes),
		reply.NewHandler(a.replies),
		vaccination.NewHandler(a.vaccinations),
		patientsession.NewHandler(a.outcomes),
	}
}

// newEcho builds the HTTP server without the organisation middleware, which
// needs a live pool.
func newEcho(cfg *config.Config, logger zerolog.Logger, reg *prometheus.Registry) (*echo.Echo, *echo.Group) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.NewHTTPMetrics(reg).Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowHeaders: []string{"Content-Type", "X-Request-ID", db.OrganisationHeader},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return e, e.Group("/api/v1")
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg, os.Stdout)

	ctx := context.Background()
	pool, err := connect(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	e, apiV1 := newEcho(cfg, logger, reg)
	e.GET("/health/db", db.HealthHandler(pool, version))
	apiV1.Use(db.OrganisationMiddleware(pool, cfg.DefaultOrganisation))

	a := newApp(pool, logger, cfg, reg)
	for _, h := range a.handlers() {
		h.RegisterRoutes(apiV1)
	}
	if cfg.Today != "" {
		logger.Warn().Str("today", cfg.Today).Msg("clock pinned by TODAY")
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
