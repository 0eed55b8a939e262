package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/acilhq/acil/internal/config"
	"github.com/acilhq/acil/internal/domain/analysis"
	"github.com/acilhq/acil/internal/domain/handoff"
	"github.com/acilhq/acil/internal/domain/notes"
	"github.com/acilhq/acil/internal/domain/org"
	"github.com/acilhq/acil/internal/domain/patient"
	"github.com/acilhq/acil/internal/platform/access"
	"github.com/acilhq/acil/internal/platform/ai"
	"github.com/acilhq/acil/internal/platform/auth"
	"github.com/acilhq/acil/internal/platform/db"
	"github.com/acilhq/acil/internal/platform/middleware"
	"github.com/acilhq/acil/internal/platform/notification"
)

// devUserID is the fixed principal injected by DevAuthMiddleware when a
// request carries no Authorization header in development mode.
var devUserID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

func main() {
	rootCmd := &cobra.Command{
		Use:   "acil-server",
		Short: "ACIL emergency department API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(orgCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the ACIL API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
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

			migrator := db.NewMigrator(pool, dir)
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "org_default", "Target schema for migrations")
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

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

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", "org_default", "Target schema for migrations")
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is destructive and not supported by the built-in runner.")
			fmt.Println("Restore the schema from a backup or write a forward migration instead.")
			return nil
		},
	})

	return cmd
}

func orgCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Manage organizations",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new organization schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			dir, _ := cmd.Flags().GetString("dir")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

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

			fmt.Printf("Creating organization schema: org_%s\n", name)
			if err := db.CreateOrgSchema(ctx, pool, name, dir); err != nil {
				return err
			}
			fmt.Println("Organization created successfully.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Organization identifier (alphanumeric)")
	createCmd.Flags().String("dir", "./migrations", "Path to migrations directory")

	cmd.AddCommand(createCmd)
	return cmd
}

// errorHandler renders every HTTP error as a {"error": "..."} body so
// clients get a uniform shape regardless of which layer rejected the
// request.
func errorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		message := "internal server error"

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if msg, ok := he.Message.(string); ok {
				message = msg
			}
		}
		if code >= http.StatusInternalServerError {
			logger.Error().Err(err).Str("path", c.Request().URL.Path).Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, map[string]string{"error": message})
	}
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Org-ID"},
	}))
	e.Use(middleware.RequestTimeout(30 * time.Second))

	// Auth middleware
	if cfg.IsDev() && cfg.AuthDevSecret == "" {
		e.Use(auth.DevAuthMiddleware(devUserID))
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthDevSecret),
		}))
	}

	// Organization middleware pins each request to its schema
	e.Use(db.OrgMiddleware(pool, cfg.DefaultOrg))

	// Chart access audit trail
	e.Use(middleware.Audit(logger))

	// Rate limiting: windowed counters keyed by principal (or client IP),
	// failing open in development and closed in production.
	store := middleware.NewMemoryCounterStore()
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go store.StartCleanup(cleanupCtx, 5*time.Minute)
	limiter := middleware.NewRateLimiter(store, middleware.DefaultLimits(), middleware.FailModeForEnv(cfg.Env), logger)

	apiV1 := e.Group("/api/v1")
	apiV1.Use(limiter.Middleware(middleware.ClassAPI))

	// Notification senders. Without a configured gateway, deliveries go to
	// the structured log.
	emailSender := &notification.LogEmailSender{Logger: logger}
	smsSender := &notification.LogSMSSender{Logger: logger}
	notifier := notification.NewManager(emailSender, smsSender, notification.NewTemplateEngine())

	// AI provider is optional; analysis requests fail with 502 when absent.
	var provider ai.Provider
	if cfg.OpenAIKey != "" || cfg.GeminiKey != "" {
		provider, err = ai.NewProvider(cfg.AIProvider, cfg.OpenAIKey, cfg.GeminiKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure AI provider")
		}
		logger.Info().Str("provider", provider.Name()).Msg("AI provider configured")
	} else {
		logger.Warn().Msg("no AI provider configured; analysis endpoints disabled")
	}

	// Repositories
	workspaceRepo := org.NewWorkspaceRepoPG(pool)
	membershipRepo := org.NewMembershipRepoPG(pool)
	invitationRepo := org.NewInvitationRepoPG(pool)
	patientRepo := patient.NewRepoPG(pool)
	vitalsRepo := patient.NewVitalsRepoPG(pool)
	notesRepo := notes.NewRepoPG(pool)
	handoffRepo := handoff.NewRepoPG(pool)
	analysisRepo := analysis.NewRepoPG(pool)

	// Services
	orgSvc := org.NewService(workspaceRepo, membershipRepo, invitationRepo, notifier)
	patientSvc := patient.NewService(patientRepo, vitalsRepo, notifier, cfg.AlertSMS)
	notesSvc := notes.NewService(notesRepo)
	handoffSvc := handoff.NewService(handoffRepo, notifier)
	analysisSvc := analysis.NewService(analysisRepo, patientSvc, provider)

	// Access resolver: workspace membership plus the patient→workspace hop
	accessStore := access.NewStorePG(pool)
	resolver := access.NewResolver(accessStore, accessStore)

	// Handlers
	org.NewHandler(orgSvc, resolver).RegisterRoutes(apiV1)
	patient.NewHandler(patientSvc, resolver).RegisterRoutes(apiV1)
	notes.NewHandler(notesSvc, resolver).RegisterRoutes(apiV1)
	handoff.NewHandler(handoffSvc, workspaceRepo, resolver, cfg.NotifyEmail).RegisterRoutes(apiV1)
	analysis.NewHandler(analysisSvc, resolver, limiter).RegisterRoutes(apiV1)

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
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		var startErr error
		if cfg.TLSEnabled {
			startErr = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			startErr = e.Start(addr)
		}
		if startErr != nil && startErr != http.ErrServerClosed {
			logger.Fatal().Err(startErr).Msg("server error")
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
