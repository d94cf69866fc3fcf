package main

import (
	"context"
	"fmt"
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

	"github.com/clavis/clavis/internal/config"
	"github.com/clavis/clavis/internal/domain/action"
	"github.com/clavis/clavis/internal/domain/analytics"
	"github.com/clavis/clavis/internal/domain/customtype"
	"github.com/clavis/clavis/internal/domain/safety"
	"github.com/clavis/clavis/internal/platform/auth"
	"github.com/clavis/clavis/internal/platform/db"
	"github.com/clavis/clavis/internal/platform/middleware"
	"github.com/clavis/clavis/internal/platform/websocket"
	"github.com/clavis/clavis/internal/workflow"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clavis-server",
		Short: "Clavis clinical workflow engine",
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
		Short: "Start the workflow API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.Migrate(ctx, pool); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Println("Schema applied successfully.")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo patients and sample actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.Migrate(ctx, pool); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			if err := seedDemoData(ctx, pool); err != nil {
				return fmt.Errorf("seed failed: %w", err)
			}
			fmt.Println("Demo data loaded.")
			return nil
		},
	}
}

// seedPatient is one row of demo data. IDs are fixed so the seed command is
// idempotent and API examples in the docs stay valid.
type seedPatient struct {
	ID         uuid.UUID
	Name       string
	Age        int
	Gender     string
	Discharged bool
}

func demoPatients() []seedPatient {
	return []seedPatient{
		{ID: uuid.MustParse("6fa1d2a0-0001-4a7b-9c3e-000000000001"), Name: "Amara Osei", Age: 52, Gender: "female"},
		{ID: uuid.MustParse("6fa1d2a0-0002-4a7b-9c3e-000000000002"), Name: "Jonas Berg", Age: 67, Gender: "male"},
		{ID: uuid.MustParse("6fa1d2a0-0003-4a7b-9c3e-000000000003"), Name: "Priya Nair", Age: 34, Gender: "female"},
		{ID: uuid.MustParse("6fa1d2a0-0004-4a7b-9c3e-000000000004"), Name: "Tomás Rivera", Age: 45, Gender: "male", Discharged: true},
	}
}

type seedAction struct {
	id        uuid.UUID
	patientID uuid.UUID
	kind      workflow.ActionKind
	title     string
	priority  workflow.Priority
}

func demoActions() []seedAction {
	patients := demoPatients()
	return []seedAction{
		{uuid.MustParse("7fb2e3b0-0001-4a7b-9c3e-000000000001"), patients[0].ID, workflow.KindDiagnostic, "CBC Panel", workflow.PriorityRoutine},
		{uuid.MustParse("7fb2e3b0-0002-4a7b-9c3e-000000000002"), patients[0].ID, workflow.KindMedication, "Metformin 500mg", workflow.PriorityUrgent},
		{uuid.MustParse("7fb2e3b0-0003-4a7b-9c3e-000000000003"), patients[1].ID, workflow.KindDiagnostic, "Chest X-Ray", workflow.PriorityCritical},
		{uuid.MustParse("7fb2e3b0-0004-4a7b-9c3e-000000000004"), patients[2].ID, workflow.KindReferral, "Cardiology consult", workflow.PriorityRoutine},
	}
}

func seedDemoData(ctx context.Context, pool *pgxpool.Pool) error {
	for _, p := range demoPatients() {
		_, err := pool.Exec(ctx, `
			INSERT INTO patient (id, name, age, gender, discharged)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING`,
			p.ID, p.Name, p.Age, p.Gender, p.Discharged)
		if err != nil {
			return fmt.Errorf("insert patient %s: %w", p.Name, err)
		}
	}

	// A handful of open actions so queues and analytics have something to show.
	now := time.Now().UTC()
	for _, s := range demoActions() {
		initial, err := workflow.InitialState(s.kind)
		if err != nil {
			return err
		}
		deadline := workflow.ComputeDeadline(s.priority, now)
		department := workflow.DefaultDepartment(s.kind, s.title, "")
		_, err = pool.Exec(ctx, `
			INSERT INTO clinical_action
				(id, patient_id, action_type, title, current_state, priority, department, sla_deadline, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'seed')
			ON CONFLICT (id) DO NOTHING`,
			s.id, s.patientID, string(s.kind), s.title, initial, string(s.priority), department, deadline)
		if err != nil {
			return fmt.Errorf("insert action %s: %w", s.title, err)
		}
		_, err = pool.Exec(ctx, `
			INSERT INTO action_event (id, action_id, actor_id, actor_role, previous_state, new_state, notes)
			VALUES ($1, $2, 'seed', 'ADMIN', '', $3, 'action created')
			ON CONFLICT (id) DO NOTHING`,
			uuid.New(), s.id, initial)
		if err != nil {
			return fmt.Errorf("insert creation event for %s: %w", s.title, err)
		}
	}
	return nil
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply schema")
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.ResolvedAuthMode() == "development" {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.JWTSigningKey),
		}))
	}

	// API group
	api := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	api.Use(middleware.RateLimit(rateLimitCfg))

	// Realtime hub
	hub := websocket.NewHub(logger)
	wsHandler := websocket.NewHandler(hub)
	wsHandler.RegisterRoutes(e.Group(""))

	// Domain wiring. The safety engine reads actions through the view source
	// so the two packages stay decoupled.
	graphs := workflow.NewGraphCache()

	typeRepo := customtype.NewRepoPG(pool)
	typeSvc := customtype.NewService(typeRepo, graphs)
	customtype.NewHandler(typeSvc).RegisterRoutes(api)

	actionRepo := action.NewRepoPG(pool)
	eventRepo := action.NewEventRepoPG(pool)
	patientDir := action.NewPatientDirPG(pool)
	views := action.NewViewSource(actionRepo, typeSvc)

	safetyRepo := safety.NewRepoPG(pool)
	safetySvc := safety.NewService(safetyRepo, views, hub, logger)
	safety.NewHandler(safetySvc).RegisterRoutes(api)

	actionSvc := action.NewService(pool, actionRepo, eventRepo, patientDir, typeSvc, views, safetySvc, hub, logger)
	action.NewHandler(actionSvc).RegisterRoutes(api)

	analyticsSvc := analytics.NewService(analytics.NewRepoPG(pool))
	analytics.NewHandler(analyticsSvc).RegisterRoutes(api)

	// SLA monitor
	monitorCtx, monitorCancel := context.WithCancel(ctx)
	defer monitorCancel()
	monitor := action.NewMonitor(actionRepo, views, hub, cfg.SLAScanInterval, logger)
	go monitor.Run(monitorCtx)

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	monitorCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
