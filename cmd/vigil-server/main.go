package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vigil/vigil/internal/config"
	"github.com/vigil/vigil/internal/domain/crisis"
	"github.com/vigil/vigil/internal/domain/handoff"
	"github.com/vigil/vigil/internal/domain/message"
	"github.com/vigil/vigil/internal/domain/review"
	"github.com/vigil/vigil/internal/domain/risk"
	"github.com/vigil/vigil/internal/platform/alerting"
	"github.com/vigil/vigil/internal/platform/auth"
	"github.com/vigil/vigil/internal/platform/db"
	"github.com/vigil/vigil/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vigil-server",
		Short: "Crisis detection and escalation API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the crisis detection API server",
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
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
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
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

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
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
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

	// Detection lexicon
	var lexicon *risk.CompiledLexicon
	if cfg.LexiconPath != "" {
		lexicon, err = risk.LoadLexicon(cfg.LexiconPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.LexiconPath).Msg("failed to load lexicon")
		}
		logger.Info().Str("path", cfg.LexiconPath).Msg("loaded detection lexicon")
	} else {
		lexicon = risk.MustDefault()
		logger.Info().Msg("using built-in detection lexicon")
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSecret),
		}))
	}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		dbHealth := db.CheckHealth(c.Request().Context(), pool)
		status := http.StatusOK
		if dbHealth.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		return c.JSON(status, map[string]interface{}{
			"status":   dbHealth.Status,
			"database": dbHealth,
		})
	})

	apiV1 := e.Group("/api/v1")

	// -- Wire domains --

	inTx := db.RunnerFor(pool)
	notifier := alerting.NewLogNotifier(logger)
	thresholds := risk.Thresholds{MediumMin: cfg.SeverityMediumMin, HighMin: cfg.SeverityHighMin}
	tunables := crisis.Tunables{FlagThreshold: cfg.FlagThreshold, HysteresisDelta: cfg.HysteresisDelta}

	// Messages
	msgRepo := message.NewRepoPG(pool)
	msgSvc := message.NewService(msgRepo)
	msgHandler := message.NewHandler(msgSvc)
	msgHandler.RegisterRoutes(apiV1)

	// Risk scoring
	riskRepo := risk.NewRepoPG(pool)
	analyzer := risk.NewAnalyzer(lexicon, msgRepo, riskRepo, thresholds, logger)

	// Crisis state and audit trail
	stateRepo := crisis.NewStateRepoPG(pool)
	eventRepo := crisis.NewEventRepoPG(pool)
	interventionRepo := crisis.NewInterventionRepoPG(pool)
	crisisSvc := crisis.NewService(stateRepo, eventRepo, inTx, tunables, logger)

	// Clinical reviews
	reviewRepo := review.NewRepoPG(pool)
	reviewSvc := review.NewService(reviewRepo, eventRepo, inTx, thresholds, logger)
	reviewHandler := review.NewHandler(reviewSvc)
	reviewHandler.RegisterRoutes(apiV1)

	// Human handoffs; high-risk handoffs open a post-crisis review.
	handoffRepo := handoff.NewRepoPG(pool)
	handoffSvc := handoff.NewService(handoffRepo, eventRepo, reviewSvc, notifier, inTx, thresholds, logger)
	handoffHandler := handoff.NewHandler(handoffSvc)
	handoffHandler.RegisterRoutes(apiV1)

	// Interventions; high-severity escalations initiate an automatic handoff.
	executor := crisis.NewExecutor(interventionRepo, eventRepo, notifier, handoffSvc, inTx, logger)
	crisisHandler := crisis.NewHandler(msgSvc, analyzer, crisisSvc, executor, riskRepo)
	crisisHandler.RegisterRoutes(apiV1)

	// Graceful shutdown
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
