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
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/alcortex/alcortex/internal/config"
	"github.com/alcortex/alcortex/internal/domain/activity"
	"github.com/alcortex/alcortex/internal/domain/diagnosis"
	"github.com/alcortex/alcortex/internal/domain/intake"
	"github.com/alcortex/alcortex/internal/domain/record"
	"github.com/alcortex/alcortex/internal/domain/user"
	"github.com/alcortex/alcortex/internal/platform/auth"
	"github.com/alcortex/alcortex/internal/platform/db"
	"github.com/alcortex/alcortex/internal/platform/kvstore"
	"github.com/alcortex/alcortex/internal/platform/middleware"
	"github.com/alcortex/alcortex/internal/provider"
)

// submitAdapter runs the analyze-then-persist round trip for the intake
// machine. It lives in main to keep the intake and diagnosis packages from
// importing each other.
type submitAdapter struct {
	diagnosisSvc *diagnosis.Service
	store        *record.Store
	activitySvc  *activity.Service
}

// SubmitSnapshot implements intake.Submitter. The record is written only
// after a fully validated analysis; a failure at any stage surfaces to the
// machine and nothing is persisted.
func (a *submitAdapter) SubmitSnapshot(ctx context.Context, frozen *intake.PatientSnapshot, language, imageURI string) (string, error) {
	result, err := a.diagnosisSvc.Analyze(ctx, frozen, language, imageURI)
	if err != nil {
		return "", err
	}

	owner := auth.UserEmailFromContext(ctx)
	rec := &record.SavedRecord{
		ID:       uuid.NewString(),
		Date:     time.Now().UTC(),
		Patient:  frozen,
		Analysis: result,
		Owner:    owner,
	}
	if err := a.store.Save(ctx, rec); err != nil {
		return "", err
	}

	a.activitySvc.Log(ctx, owner, "SAVE_RECORD "+rec.ID)
	return rec.ID, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "alcortex-server",
		Short: "Alcortex clinical decision support server",
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
		Short: "Start the API server",
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

			count, err := db.NewMigrator(pool, dir).Up(ctx)
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

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
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

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is destructive and not supported by the built-in runner.")
			fmt.Println("Restore from a database backup instead.")
			return nil
		},
	})

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

	// Database. The pool is created lazily: an unreachable database at
	// startup means the local fallback stores serve until it returns.
	pool, err := db.NewLazyPool(cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid database configuration")
	}
	defer pool.Close()
	if err := pool.Ping(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("database unreachable at startup, serving from local stores")
	} else {
		logger.Info().Msg("connected to database")
	}

	// Local fallback store
	local := kvstore.NewFileStore(cfg.LocalStoreDir)
	if err := local.Init(); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize local store")
	}
	defer local.Close()

	// AI provider
	aiClient := provider.NewGeminiClient(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel, cfg.AITimeoutDuration(), logger)

	// Domain services
	diagnosisSvc := diagnosis.NewService(aiClient, logger)
	recordStore := record.NewStore(record.NewRepoPG(pool), record.NewLocalVault(local, cfg.LocalVaultCap), cfg.RemoteTimeoutDuration(), logger)
	userSvc := user.NewService(user.NewRepoPG(pool), user.NewLocalRegistry(local), cfg.RemoteTimeoutDuration(), logger)
	activitySvc := activity.NewService(activity.NewRepoPG(pool), activity.NewLocalLog(local), cfg.RemoteTimeoutDuration(), logger)

	machine := intake.NewMachine(local, &submitAdapter{
		diagnosisSvc: diagnosisSvc,
		store:        recordStore,
		activitySvc:  activitySvc,
	}, logger)
	defer machine.Close()

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M", "20M"))
	e.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth
	if cfg.ResolvedAuthMode() == "development" {
		e.Use(auth.DevMiddleware())
	} else {
		e.Use(auth.BearerMiddleware([]byte(cfg.AuthSecret)))
	}

	// Routes
	api := e.Group("/api")
	diagnosis.NewHandler(diagnosisSvc).RegisterRoutes(api)
	record.NewHandler(recordStore).RegisterRoutes(api)
	user.NewHandler(userSvc).RegisterRoutes(api)
	activity.NewHandler(activitySvc).RegisterRoutes(api)
	intake.NewHandler(machine).RegisterRoutes(api)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "OK"})
	})
	e.GET("/health/db", db.HealthHandler(pool))

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
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
