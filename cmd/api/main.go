package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"

	"github.com/alfanzaky/refledger/config"
	kafkaadapter "github.com/alfanzaky/refledger/internal/adapter/kafka"
	"github.com/alfanzaky/refledger/internal/commission"
	"github.com/alfanzaky/refledger/internal/domain"
	"github.com/alfanzaky/refledger/internal/freeze"
	apihandler "github.com/alfanzaky/refledger/internal/handler/api"
	"github.com/alfanzaky/refledger/internal/ledger"
	"github.com/alfanzaky/refledger/internal/lock"
	"github.com/alfanzaky/refledger/internal/referral"
	"github.com/alfanzaky/refledger/internal/repository/postgres"
	redisrepo "github.com/alfanzaky/refledger/internal/repository/redis"
	"github.com/alfanzaky/refledger/internal/usecase"
	"github.com/alfanzaky/refledger/internal/vip"
	"github.com/alfanzaky/refledger/internal/worker"
	"github.com/alfanzaky/refledger/pkg/auth"
	"github.com/alfanzaky/refledger/pkg/logger"
	"github.com/alfanzaky/refledger/pkg/observability"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	// Initialize logger
	logger.Init(cfg.App.Environment)
	defer logger.Close()

	// Print configuration in development mode
	if cfg.App.IsDevelopment() {
		cfg.Print()
	}

	// Initialize database connection
	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		logger.Fatal("Failed to connect to database", logger.ErrorField(err))
	}
	defer db.Close()
	db.SetMaxIdleConns(cfg.Database.MaxIdle)
	db.SetMaxOpenConns(cfg.Database.MaxOpen)
	db.SetConnMaxLifetime(cfg.Database.MaxLife)

	if cfg.Database.AutoMigrate {
		if err := postgres.RunMigrations(db, cfg.Database.MigrationsPath); err != nil {
			logger.Fatal("Failed to run migrations", logger.ErrorField(err))
		}
	}

	store := postgres.NewStore(db)
	dependencies := map[string]observability.Pinger{"postgres": store}

	// Initialize Redis connection
	var (
		rdb    *redis.Client
		cache  domain.BalanceCache
		locker domain.UserLocker = lock.NewKeyed()
	)
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetRedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			logger.Fatal("Failed to connect to Redis", logger.ErrorField(err))
		}
		defer rdb.Close()

		cacheRepo := redisrepo.NewCacheRepository(rdb, cfg.Redis.CacheTTL)
		cache = cacheRepo
		dependencies["redis"] = cacheRepo

		if cfg.Lock.Backend == config.LockBackendRedis {
			locker = redisrepo.NewLockRepository(rdb, redisrepo.LockConfig{
				TTL:        cfg.Lock.TTL,
				RetryDelay: cfg.Lock.RetryDelay,
			})
		}
	}
	logger.Info("Storage initialized",
		logger.Bool("redis", cfg.Redis.Enabled),
		logger.String("lock_backend", cfg.Lock.Backend),
	)

	// Ledger event stream
	var publisher domain.LedgerEventPublisher
	if cfg.Kafka.KafkaEnabled() {
		retry := kafkaadapter.DefaultRetryConfig()
		retry.MaxAttempts = cfg.Kafka.MaxAttempts
		kafkaPublisher := kafkaadapter.NewLedgerPublisher(kafkaadapter.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			WriteTimeout: cfg.Kafka.WriteTimeout,
			Retry:        retry,
		})
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	// Initialize domain services
	clock := clockwork.NewRealClock()
	policy := vip.NewPolicy()
	ledgerSvc := ledger.NewLedger(store, cache, publisher)
	commissionCfg := commission.Config{
		DirectShare: cfg.Commission.DirectShare,
		UplineShare: cfg.Commission.UplineShare,
		Decay:       cfg.Commission.Decay,
		MaxDepth:    cfg.Commission.MaxDepth,
	}
	if err := commissionCfg.Validate(); err != nil {
		logger.Fatal("Invalid commission config", logger.ErrorField(err))
	}
	distributor := commission.NewDistributor(referral.NewGraph(store.Users()), commissionCfg, clock)
	freezer := freeze.NewMachine(policy, cfg.Premium.ProfitBoost, clock)

	// Initialize use cases
	submissionUC := usecase.NewSubmissionUsecase(store, locker, ledgerSvc, distributor, freezer, policy, clock)
	accountUC := usecase.NewAccountUsecase(store, locker, ledgerSvc, policy, clock)
	adminUC := usecase.NewAdminUsecase(store, locker, ledgerSvc, freezer, policy, clock, cfg.App.StartingBalance)

	if cfg.Premium.Seed {
		if _, err := adminUC.SetGlobalPremiumConfig(context.Background(), cfg.Premium.Enabled, cfg.Premium.Position, cfg.Premium.Amount); err != nil {
			logger.Fatal("Failed to seed premium config", logger.ErrorField(err))
		}
	}

	// Start background scheduler
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	schedulerDone := make(chan struct{})
	if cfg.Scheduler.Enabled {
		location, _ := cfg.Scheduler.Location()
		scheduler := worker.NewScheduler(store, ledgerSvc, clock, worker.SchedulerConfig{
			ReconcileSpec:   cfg.Scheduler.ReconcileSpec,
			PeriodResetSpec: cfg.Scheduler.PeriodResetSpec,
			Location:        location,
			JobTimeout:      cfg.Scheduler.JobTimeout,
		})
		go func() {
			defer close(schedulerDone)
			if err := scheduler.Start(workerCtx); err != nil {
				logger.Error("Scheduler failed to start", logger.ErrorField(err))
			}
		}()
	} else {
		close(schedulerDone)
	}

	// Set Gin mode
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize auth service
	authService := auth.NewJWTAuthService(cfg.Auth, clock)

	// Initialize metrics handler
	metricsHandler := observability.NewMetricsHandler(cfg.App.Name, dependencies)

	// Create Gin router
	router := gin.New()
	router.Use(observability.ObservabilityMiddleware())

	// Setup metrics and health endpoints
	router.GET("/metrics", metricsHandler.MetricsEndpoint())
	router.GET("/health", metricsHandler.HealthEndpoint())
	router.GET("/ready", metricsHandler.ReadinessEndpoint())
	router.GET("/live", metricsHandler.LivenessEndpoint())

	// Setup API routes
	apihandler.SetupRoutes(router, apihandler.Handlers{
		Submission: apihandler.NewSubmissionHandler(submissionUC),
		Account:    apihandler.NewAccountHandler(accountUC),
		Admin:      apihandler.NewAdminHandler(adminUC, authService),
	}, authService, cfg.Lock.Timeout)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server",
			logger.String("port", cfg.App.Port),
			logger.String("environment", cfg.App.Environment),
		)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", logger.ErrorField(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Attempt graceful shutdown
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", logger.ErrorField(err))
	}

	workerCancel()
	<-schedulerDone

	logger.Info("Server exited")
}
