package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/account-lifecycle/config"
	"github.com/oksasatya/account-lifecycle/internal/application"
	"github.com/oksasatya/account-lifecycle/internal/container"
	"github.com/oksasatya/account-lifecycle/internal/infrastructure/memory"
	pginfra "github.com/oksasatya/account-lifecycle/internal/infrastructure/postgres"
	"github.com/oksasatya/account-lifecycle/internal/interface/middleware"
	"github.com/oksasatya/account-lifecycle/internal/router"
	"github.com/oksasatya/account-lifecycle/internal/scheduler"
	"github.com/oksasatya/account-lifecycle/pkg/helpers"
	"github.com/oksasatya/account-lifecycle/pkg/mailer"
	"github.com/oksasatya/account-lifecycle/pkg/validation"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName, cfg.Env)
	gin.SetMode(cfg.GinMode)
	validation.Init()

	ctx := context.Background()

	// Storage backend
	switch cfg.StorageDriver {
	case "memory":
		logger.Warn("using in-memory storage; data is lost on restart")
		container.SetUnitOfWork(memory.NewStore())
	default:
		pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), pginfra.PoolOptions{
			MaxConns:        cfg.DBMaxConns,
			MinConns:        cfg.DBMinConns,
			MaxConnLifetime: cfg.DBMaxConnLife,
			MaxConnIdleTime: 5 * time.Minute,
		})
		if err != nil {
			logger.Fatalf("failed to connect to postgres: %v", err)
		}
		defer pool.Close()

		if err := pginfra.RunMigrations(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
			logger.Fatalf("migration failed: %v", err)
		}
		container.SetPGPool(pool)
		container.SetUnitOfWork(pginfra.NewUnitOfWork(pool))
	}

	// Redis
	rdb := helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer func() { _ = rdb.Close() }()
	if err := rdb.Ping(ctx).Err(); err != nil {
		helpers.LogError(logger, "redis unavailable; edge rate limiting fails open", err, nil)
	}

	// Async email dispatch via RabbitMQ
	var dispatcher *mailer.Dispatcher
	if cfg.MailSendEnabled {
		pub, err := helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue)
		if err != nil {
			helpers.LogError(logger, "rabbitmq unavailable; verification emails disabled", err, nil)
		} else {
			defer pub.Close()
			dcfg := mailer.DefaultDispatcherConfig()
			dcfg.Workers = cfg.EmailWorkers
			dcfg.QueueSize = cfg.EmailQueueSize
			dispatcher = mailer.NewDispatcher(pub, dcfg, logger)
			if err := dispatcher.Start(ctx); err != nil {
				logger.Fatalf("failed to start email dispatcher: %v", err)
			}
			container.SetMailDispatcher(dispatcher)
		}
	} else {
		logger.Info("MAIL_SEND_ENABLED=false; verification emails are not sent")
	}

	// JWT
	jwtManager := helpers.NewJWTManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)

	// Provide infra singletons to container for registry auto-wiring
	container.SetConfig(cfg)
	container.SetLogger(logger)
	container.SetRedis(rdb)
	container.SetJWT(jwtManager)

	// Reaper for stale unverified accounts
	reaper := application.NewReaper(container.GetUnitOfWork(), cfg.Retention(), cfg.ReaperBatchSize, logger, nil)
	sched := scheduler.New(logger)
	if err := sched.Add("unverified-account-reaper", cfg.ReaperSchedule, reaper); err != nil {
		logger.Fatalf("failed to schedule reaper: %v", err)
	}
	sched.Start()
	helpers.LogInfo(logger, "lifecycle settings loaded", logrus.Fields{
		"storage":             cfg.StorageDriver,
		"max_resend_attempts": cfg.MaxResendAttempts,
		"resend_window":       cfg.ResendWindow.String(),
		"retention_days":      cfg.UnverifiedRetentionDays,
		"mail_enabled":        cfg.MailSendEnabled,
	})

	// Gin engine and global middleware
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.RealIP())
	// CORS
	corsCfg := cors.Config{
		AllowOrigins:     cfg.CORSOrigins(),
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(corsCfg.AllowOrigins) == 0 {
		corsCfg.AllowOrigins = []string{"http://localhost:3000"}
	}
	r.Use(cors.New(corsCfg))
	if cfg.HTTPLogEnabled {
		r.Use(gin.Logger())
	}

	// Registry: auto-register modules using container
	reg := router.NewRegistry(r)
	router.InitModules(reg)
	reg.RegisterAll()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Infof("server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %s\n", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		helpers.LogError(logger, "server forced to shutdown", err, nil)
	}
	if err := sched.Stop(ctxShutdown); err != nil {
		helpers.LogError(logger, "reaper did not stop in time", err, nil)
	}
	if dispatcher != nil {
		if err := dispatcher.Stop(ctxShutdown); err != nil {
			helpers.LogError(logger, "email queue not drained", err, nil)
		}
	}
	logger.Info("server exited properly")
}
