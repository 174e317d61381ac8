package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medcore/hms/internal/config"
	"github.com/medcore/hms/internal/domain/appointment"
	"github.com/medcore/hms/internal/domain/asset"
	"github.com/medcore/hms/internal/domain/identity"
	"github.com/medcore/hms/internal/domain/laboratory"
	"github.com/medcore/hms/internal/domain/medicalrecord"
	"github.com/medcore/hms/internal/domain/nursing"
	"github.com/medcore/hms/internal/domain/patient"
	"github.com/medcore/hms/internal/domain/pharmacy"
	"github.com/medcore/hms/internal/domain/staff"
	"github.com/medcore/hms/internal/platform/auth"
	"github.com/medcore/hms/internal/platform/db"
	"github.com/medcore/hms/internal/platform/metrics"
	"github.com/medcore/hms/internal/platform/middleware"
	"github.com/medcore/hms/internal/platform/reporting"
	"github.com/medcore/hms/internal/platform/websocket"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hms-server",
		Short: "Hospital management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
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

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// loadConfig reads and validates the configuration.
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

func jwtConfig(cfg *config.Config) auth.JWTConfig {
	return auth.JWTConfig{
		Issuer:     cfg.JWTIssuer,
		SigningKey: []byte(cfg.JWTSecret),
		TTL:        cfg.TokenTTL,
	}
}

func poolConfig(cfg *config.Config) db.PoolConfig {
	return db.PoolConfig{
		URL:              cfg.DatabaseURL,
		MaxConns:         cfg.DBMaxConns,
		MinConns:         cfg.DBMinConns,
		Timezone:         cfg.Timezone,
		StatementTimeout: cfg.DBStmtTimeout,
		AppName:          "hms-server",
	}
}

// services holds every domain service built over one pool.
type services struct {
	staff        *staff.Service
	patients     *patient.Service
	appointments *appointment.Service
	records      *medicalrecord.Service
	pharmacy     *pharmacy.Service
	laboratory   *laboratory.Service
	nursing      *nursing.Service
	assets       *asset.Service
	identity     *identity.Service
}

func buildServices(pool *pgxpool.Pool, cfg *config.Config, loc *time.Location, logger zerolog.Logger,
	events websocket.Publisher, m *metrics.Metrics) *services {
	tx := db.PoolTransactor{Runner: pool}

	staffSvc := staff.NewService(staff.NewDepartmentRepoPG(pool), staff.NewDoctorRepoPG(pool), staff.NewVisitTypeRepoPG(pool))

	apptSvc := appointment.NewService(appointment.NewRepoPG(pool), tx, logger)
	apptSvc.SetPublisher(events)
	apptSvc.SetMetrics(m)
	apptSvc.SetLocation(loc)

	pharmSvc := pharmacy.NewService(pharmacy.NewMedicineRepoPG(pool), pharmacy.NewPrescriptionRepoPG(pool), tx, logger)
	pharmSvc.SetMetrics(m)

	labSvc := laboratory.NewService(laboratory.NewRequestRepoPG(pool), laboratory.NewResultRepoPG(pool), tx, logger)
	labSvc.SetPublisher(events)
	labSvc.SetMetrics(m)

	nursingSvc := nursing.NewService(nursing.NewNurseRepoPG(pool), nursing.NewShiftRepoPG(pool), tx, logger)
	nursingSvc.SetMetrics(m)
	nursingSvc.SetLocation(loc)

	assetSvc := asset.NewService(asset.NewRepoPG(pool), tx, func(ctx context.Context, id uuid.UUID) error {
		_, err := staffSvc.GetDepartment(ctx, id)
		return err
	})
	assetSvc.SetMetrics(m)

	return &services{
		staff:        staffSvc,
		patients:     patient.NewService(patient.NewRepoPG(pool)),
		appointments: apptSvc,
		records:      medicalrecord.NewService(medicalrecord.NewRepoPG(pool)),
		pharmacy:     pharmSvc,
		laboratory:   labSvc,
		nursing:      nursingSvc,
		assets:       assetSvc,
		identity:     identity.NewService(identity.NewRepoPG(pool), auth.NewIssuer(jwtConfig(cfg)), logger),
	}
}

// unauthenticatedPaths are reachable without a bearer token.
var unauthenticatedPaths = []string{"/health", "/metrics", identity.LoginPath}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		bootLogger := newLogger(nil)
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg)

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid timezone")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, poolConfig(cfg))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Live events and metrics
	hub := websocket.NewHub(logger)
	defer hub.Close()

	m := metrics.New()
	m.GaugeFunc("db", "pool_acquired_conns", "Connections currently checked out of the pool.", func() float64 {
		return float64(pool.Stat().AcquiredConns())
	})
	m.GaugeFunc("db", "pool_total_conns", "Connections currently open in the pool.", func() float64 {
		return float64(pool.Stat().TotalConns())
	})
	m.GaugeFunc("websocket", "clients", "Connected live event clients.", func() float64 {
		return float64(hub.ClientCount())
	})
	m.GaugeFunc("websocket", "dropped_events_total", "Events dropped for slow clients.", func() float64 {
		return float64(hub.Dropped())
	})

	svcs := buildServices(pool, cfg, loc, logger, hub, m)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger, func(route string) { m.CountEvent("http_panic", route) }))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(m.Middleware())
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(jwtConfig(cfg)))
	} else {
		e.Use(auth.JWTMiddleware(jwtConfig(cfg), unauthenticatedPaths...))
	}

	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))

	// Health and metrics
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", m.Handler())

	// API groups
	apiV1 := e.Group("/api/v1")
	identity.NewHandler(svcs.identity).RegisterRoutes(apiV1)
	staff.NewHandler(svcs.staff).RegisterRoutes(apiV1)
	patient.NewHandler(svcs.patients).RegisterRoutes(apiV1)
	appointment.NewHandler(svcs.appointments).RegisterRoutes(apiV1)
	medicalrecord.NewHandler(svcs.records).RegisterRoutes(apiV1)
	pharmacy.NewHandler(svcs.pharmacy).RegisterRoutes(apiV1)
	laboratory.NewHandler(svcs.laboratory).RegisterRoutes(apiV1)
	nursing.NewHandler(svcs.nursing).RegisterRoutes(apiV1)
	asset.NewHandler(svcs.assets).RegisterRoutes(apiV1)
	reporting.NewHandler(pool, loc).RegisterRoutes(apiV1)
	websocket.NewHandler(hub, cfg.CORSOrigins).RegisterRoutes(apiV1)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Str("timezone", loc.String()).Msg("starting hms server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			return withMigrator(cmd, func(ctx context.Context, migrator *db.Migrator) error {
				fmt.Printf("Running migrations on schema: %s\n", schema)
				count, err := migrator.Up(ctx, schema)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			return withMigrator(cmd, func(ctx context.Context, migrator *db.Migrator) error {
				statuses, err := migrator.Status(ctx, schema)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				fmt.Printf("Migration status for schema: %s\n", schema)
				printMigrationStatus(os.Stdout, statuses)
				return nil
			})
		},
	}

	for _, c := range []*cobra.Command{upCmd, statusCmd} {
		c.Flags().String("schema", "public", "Target schema for migrations")
		c.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
		cmd.AddCommand(c)
	}
	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(ctx context.Context, migrator *db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = cfg.MigrationsDir
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, poolConfig(cfg))
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, db.NewMigrator(pool, dir))
}

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}
