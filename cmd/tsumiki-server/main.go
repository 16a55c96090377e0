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

	"github.com/tsumiki/tsumiki/internal/config"
	"github.com/tsumiki/tsumiki/internal/domain/billing"
	"github.com/tsumiki/tsumiki/internal/domain/catalog"
	"github.com/tsumiki/tsumiki/internal/domain/child"
	"github.com/tsumiki/tsumiki/internal/domain/facility"
	"github.com/tsumiki/tsumiki/internal/domain/usage"
	"github.com/tsumiki/tsumiki/internal/platform/auth"
	"github.com/tsumiki/tsumiki/internal/platform/db"
	"github.com/tsumiki/tsumiki/internal/platform/middleware"
)

// batchSource feeds the billing engine with facility and child master
// data and usage-derived day facts, bridging the other domains without
// coupling them to the billing package.
type batchSource struct {
	facilities *facility.Service
	children   *child.Service
	usage      *usage.Service
}

func (s *batchSource) Facility(ctx context.Context, id uuid.UUID) (billing.FacilityInfo, error) {
	f, err := s.facilities.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, facility.ErrNotFound) {
			return billing.FacilityInfo{}, billing.ErrFacilityNotFound
		}
		return billing.FacilityInfo{}, err
	}
	return billing.FacilityInfo{
		ID:         f.ID,
		Name:       f.Name,
		OfficeCode: f.OfficeCode,
		UnitPrice:  f.UnitPrice,
	}, nil
}

func (s *batchSource) Children(ctx context.Context, facilityID uuid.UUID) ([]billing.ChildInfo, error) {
	const pageSize = 200
	var infos []billing.ChildInfo
	for offset := 0; ; offset += pageSize {
		page, total, err := s.children.ListByFacility(ctx, facilityID, pageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, ch := range page {
			infos = append(infos, billing.ChildInfo{
				ID:                ch.ID,
				Name:              ch.Name,
				BeneficiaryNumber: ch.BeneficiaryNumber,
				ServiceType:       ch.ServiceType,
				UpperLimitAmount:  ch.UpperLimitAmount,
			})
		}
		if offset+len(page) >= total || len(page) == 0 {
			return infos, nil
		}
	}
}

func (s *batchSource) MonthFacts(ctx context.Context, facilityID uuid.UUID, yearMonth string) ([]billing.DayFact, error) {
	records, err := s.usage.ListByFacilityMonth(ctx, facilityID, yearMonth)
	if err != nil {
		return nil, err
	}
	return usage.BillingFacts(records), nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "tsumiki-server",
		Short: "Childcare billing API server",
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
		Short: "Start the billing API server",
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
			if dir == "" {
				dir = cfg.MigrationsDir
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
	upCmd.Flags().String("dir", "", "Path to migrations directory")
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
			if dir == "" {
				dir = cfg.MigrationsDir
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
	statusCmd.Flags().String("dir", "", "Path to migrations directory")
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
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
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

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit, cfg.BulkBodyLimit))
	e.Use(middleware.RequestTimeout(time.Duration(cfg.RequestTimeout) * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.ResolvedAuthMode() == "development" {
		logger.Warn().Msg("development auth mode: all requests run as dev-user")
		e.Use(auth.DevAuthMiddleware(auth.AuthSkipper))
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Secret:   cfg.JWTSecret,
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			Skipper:  auth.AuthSkipper,
		}))
	}

	// API group with rate limiting
	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// -- Register domain handlers --

	catalogRepo := catalog.NewPostgresRepository(pool)
	catalogSvc := catalog.NewService(catalogRepo)
	catalog.NewHandler(catalogSvc).RegisterRoutes(apiV1)

	facilityRepo := facility.NewPostgresRepository(pool)
	facilitySvc := facility.NewService(facilityRepo, cfg.DefaultUnitPrice)
	facility.NewHandler(facilitySvc).RegisterRoutes(apiV1)

	childRepo := child.NewPostgresRepository(pool)
	childSvc := child.NewService(childRepo)
	child.NewHandler(childSvc).RegisterRoutes(apiV1)

	usageRepo := usage.NewPostgresRepository(pool)
	usageSvc := usage.NewService(usageRepo)
	usage.NewHandler(usageSvc).RegisterRoutes(apiV1)

	billingRepo := billing.NewPostgresRepository(pool)
	billingSvc := billing.NewService(billingRepo, catalogSvc)
	source := &batchSource{facilities: facilitySvc, children: childSvc, usage: usageSvc}
	billing.NewHandler(billingSvc, source).RegisterRoutes(apiV1)

	// Warm the catalog so the first billing run does not pay the load.
	if _, err := catalogSvc.Load(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to preload service-code catalog")
	}

	// Start server with graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
