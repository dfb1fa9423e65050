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

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/simurgh/internal/config"
	"github.com/xxxsen/simurgh/internal/db"
	"github.com/xxxsen/simurgh/internal/handler"
	"github.com/xxxsen/simurgh/internal/job"
	"github.com/xxxsen/simurgh/internal/metrics"
	"github.com/xxxsen/simurgh/internal/middleware"
	"github.com/xxxsen/simurgh/internal/notify"
	"github.com/xxxsen/simurgh/internal/pkg/password"
	"github.com/xxxsen/simurgh/internal/repo"
	"github.com/xxxsen/simurgh/internal/repo/memrepo"
	"github.com/xxxsen/simurgh/internal/schedule"
	"github.com/xxxsen/simurgh/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "simurgh",
		Short: "simurgh identity verification service",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the http server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}

	notifierCmd := &cobra.Command{
		Use:   "notifier",
		Short: "run the notification dispatcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runNotifier(cfg)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cfg.Storage != config.StoragePostgres {
				return fmt.Errorf("migrate requires postgres storage")
			}
			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer conn.Close()
			return db.ApplyMigrations(conn)
		},
	}

	hashCmd := &cobra.Command{
		Use:   "hash-password <password>",
		Short: "print the bcrypt hash for admin.password_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := password.Hash(args[0])
			if err != nil {
				return err
			}
			cmd.Println(hash)
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, notifierCmd, migrateCmd, hashCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded",
		zap.String("config", path),
		zap.String("storage", cfg.Storage),
	)
	return cfg, nil
}

func openStores(cfg *config.Config) (repo.Stores, func(), error) {
	if cfg.Storage == config.StorageMemory {
		logutil.GetLogger(context.Background()).Warn("using in-memory storage, data is lost on exit")
		return memrepo.New().Stores(), func() {}, nil
	}
	conn, err := db.Open(cfg.Database)
	if err != nil {
		return repo.Stores{}, nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		_ = conn.Close()
		return repo.Stores{}, nil, fmt.Errorf("migrations: %w", err)
	}
	return repo.NewStores(conn, cfg.Database.TxTimeout()), func() { _ = conn.Close() }, nil
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func newDispatchScheduler(cfg *config.Config, stores repo.Stores, m *metrics.Metrics) (*schedule.CronScheduler, error) {
	sender, err := notify.New(cfg.Notifier)
	if err != nil {
		return nil, fmt.Errorf("init notifier: %w", err)
	}
	dispatcher := service.NewNotificationDispatcher(stores, sender, cfg.Notifier.BatchSize, nil, m)
	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewNotificationDispatchJob(dispatcher), cfg.Notifier.Schedule); err != nil {
		return nil, err
	}
	logutil.GetLogger(context.Background()).Info("notification dispatcher configured",
		zap.String("sender", sender.Name()),
		zap.String("schedule", cfg.Notifier.Schedule),
	)
	return scheduler, nil
}

func runServer(cfg *config.Config) error {
	stores, closeStores, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	reg := newRegistry()
	m := metrics.New(reg)
	verificationService := service.NewVerificationService(stores, service.VerificationOptions{
		ClockSkew:         time.Duration(cfg.Verification.ClockSkewSeconds) * time.Second,
		RequestTTL:        time.Duration(cfg.Verification.RequestTTLSeconds) * time.Second,
		NotificationTTL:   time.Duration(cfg.Verification.NotificationTTLSeconds) * time.Second,
		NotificationTitle: cfg.Verification.NotificationTitle,
		Metrics:           m,
	})
	employeeService := service.NewEmployeeService(stores, nil)
	jwtSecret := []byte(cfg.Admin.JWTSecret)
	adminService := service.NewAdminService(cfg.Admin.Username, cfg.Admin.PasswordHash, jwtSecret, time.Hour*time.Duration(cfg.Admin.JWTTTLHours))

	deps := handler.RouterDeps{
		Verifications: handler.NewVerificationHandler(verificationService),
		Employees:     handler.NewEmployeeHandler(employeeService),
		Admin:         handler.NewAdminHandler(adminService),
		Metrics:       promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		JWTSecret:     jwtSecret,
		RateLimit:     time.Duration(cfg.RateLimitMs) * time.Millisecond,
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	var scheduler *schedule.CronScheduler
	if cfg.Notifier.Embedded {
		if scheduler, err = newDispatchScheduler(cfg, stores, m); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logutil.GetLogger(gctx).Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logutil.GetLogger(context.Background()).Info("server stopping...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if scheduler != nil {
		scheduler.Start(gctx)
		defer scheduler.Stop()
	}
	return g.Wait()
}

func runNotifier(cfg *config.Config) error {
	if cfg.Storage == config.StorageMemory {
		return fmt.Errorf("standalone notifier cannot share in-memory storage, set notifier.embedded instead")
	}
	stores, closeStores, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	scheduler, err := newDispatchScheduler(cfg, stores, metrics.New(newRegistry()))
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)
	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("notifier stopping...")
	scheduler.Stop()
	return nil
}
