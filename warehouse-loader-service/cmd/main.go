package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"ecommerce-dw/pkg/logger"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/config"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/entity"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/handler"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/infrastructure"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/infrastructure/messaging"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/processor"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/repository"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/service"
)

const serviceName = "warehouse-loader"

func main() {
	mode := flag.String("mode", "serve", "serve | once | stage")
	stageName := flag.String("stage", "", "stage to run with -mode=stage")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(serviceName, cfg.LogLevel)

	if cfg.LogstashAddr != "" {
		if err := logger.InitLogstash(cfg.LogstashAddr, serviceName, cfg.LogLevel); err != nil {
			logger.Warn().Err(err).Msg("Failed to connect to Logstash, using stdout only")
		} else {
			logger.Info().Str("logstash_addr", cfg.LogstashAddr).Msg("Connected to Logstash")
		}
	}

	if err := run(cfg, *mode, *stageName); err != nil {
		logger.Error().Err(err).Str("mode", *mode).Msg("Warehouse loader exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, mode, stageName string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := connectDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer closeDB(db)
	logger.Info().
		Str("driver", cfg.Database.Driver).
		Str("database", cfg.Database.DBName).
		Msg("Connected to warehouse database")

	if cfg.Load.AutoMigrate {
		if err := migrate(db, cfg.Database.Driver); err != nil {
			return err
		}
		logger.Info().Msg("Warehouse schema migrated")
	}

	// Блокировка запусков в Redis необязательна для одиночного процесса
	var redisClient *redis.Client
	var runLock repository.RunLockRepository
	if cfg.Redis.Enabled {
		redisClient, err = connectRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		runLock = repository.NewRunLockRepository(redisClient, cfg.Load.LockTTL)
		logger.Info().Str("address", cfg.Redis.Address()).Msg("Connected to Redis, run lock enabled")
	} else {
		logger.Warn().Msg("Redis disabled, concurrent load runs are not prevented")
	}

	var publisher infrastructure.MessagePublisher
	if cfg.Kafka.Enabled {
		kafkaProducer := messaging.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kafkaProducer.Close()
		publisher = kafkaProducer
		logger.Info().
			Strs("brokers", cfg.Kafka.Brokers).
			Str("topic", cfg.Kafka.Topic).
			Msg("Initialized Kafka producer")
	}

	orchestrator := processor.NewOrchestrator(
		buildStages(db, cfg.Load),
		repository.NewLoadRunRepository(db),
		runLock,
		publisher,
		cfg.Load.StageTimeout,
	)

	switch mode {
	case "once":
		report, err := orchestrator.RunAll(ctx, entity.TriggerManual)
		return finishRun(report, err)
	case "stage":
		name, ok := entity.ParseStageName(stageName)
		if !ok {
			return fmt.Errorf("%w: %q", service.ErrUnknownStage, stageName)
		}
		report, err := orchestrator.RunStage(ctx, name, entity.TriggerManual)
		return finishRun(report, err)
	case "serve":
		return serve(ctx, cfg, db, redisClient, orchestrator)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

// buildStages собирает шесть стадий загрузки над общими репозиториями
func buildStages(db *gorm.DB, load config.LoadConfig) []service.Stage {
	stagingRepo := repository.NewStagingRepository(db)
	dateRepo := repository.NewDateRepository(db, load.BatchSize)
	categoryRepo := repository.NewCategoryRepository(db, load.BatchSize)
	productRepo := repository.NewProductRepository(db, load.BatchSize)
	customerRepo := repository.NewCustomerRepository(db, load.BatchSize)
	cartRepo := repository.NewCartFactRepository(db, load.BatchSize)
	itemRepo := repository.NewCartItemFactRepository(db, load.BatchSize)

	return []service.Stage{
		service.NewDateDimensionService(stagingRepo, dateRepo, load.DateStart, load.DateHorizonDays, load.BatchSize),
		service.NewCategoryService(stagingRepo, categoryRepo, load.BatchSize),
		service.NewProductService(stagingRepo, categoryRepo, productRepo, load.BatchSize),
		service.NewCustomerService(stagingRepo, customerRepo, load.DefaultCountry, load.BatchSize),
		service.NewCartFactService(stagingRepo, customerRepo, productRepo, dateRepo, cartRepo, load.BatchSize, load.RejectNoCustomer),
		service.NewCartItemFactService(stagingRepo, productRepo, cartRepo, itemRepo, load.BatchSize),
	}
}

// finishRun пишет сводку по стадиям; упавший запуск завершает процесс с ошибкой
func finishRun(report *entity.LoadReport, err error) error {
	if err != nil {
		return err
	}

	for _, s := range report.Stages {
		event := logger.Info()
		if s.Status == entity.StageStatusFailed || s.Status == entity.StageStatusBlocked {
			event = logger.Error()
		}
		event.
			Str("stage", string(s.Stage)).
			Str("status", string(s.Status)).
			Int("inserted", s.Inserted).
			Int("updated", s.Updated).
			Int("skipped", s.Skipped).
			Int("errored", s.Errored).
			Str("error", s.Error).
			Msg("Stage report")
	}

	logger.Info().
		Str("run_id", report.RunID.String()).
		Str("status", string(report.Status)).
		Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Load run finished")

	if report.Status == entity.RunStatusFailed {
		return errors.New("load run failed")
	}
	return nil
}

func serve(ctx context.Context, cfg *config.Config, db *gorm.DB, redisClient *redis.Client, orchestrator *processor.Orchestrator) error {
	cronScheduler := processor.NewCronScheduler(orchestrator)
	if err := cronScheduler.Start(ctx, cfg.CronSchedule.RunAll); err != nil {
		return fmt.Errorf("failed to start cron scheduler: %w", err)
	}
	defer cronScheduler.Stop()

	authMiddleware := handler.NewAuthMiddleware(cfg.JWT.Secret)
	if cfg.JWT.Secret == "" {
		logger.Warn().Msg("JWT_SECRET is empty, admin load API rejects all requests")
	}

	router := handler.SetupRoutes(
		handler.NewLoadHandler(orchestrator),
		handler.NewHealthCheckHandler(db, redisClient),
		authMiddleware,
	)

	// Запуск через API синхронный: ответ ждет все стадии
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Load.StageTimeout*time.Duration(len(entity.AllStages)) + time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Str("schedule", cfg.CronSchedule.RunAll).
			Msg("Starting Warehouse Loader Service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		return fmt.Errorf("failed to start server: %w", err)
	}

	logger.Info().Msg("Shutting down Warehouse Loader Service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info().Msg("Warehouse Loader Service stopped gracefully")
	return nil
}

func connectDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.Driver == "sqlite" {
		return repository.OpenSQLite(cfg.SQLitePath, gormlogger.Warn)
	}

	gormConfig := &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	}

	var db *gorm.DB
	var err error

	for i := 0; i < 10; i++ {
		db, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
		if err == nil {
			sqlDB, sqlErr := db.DB()
			if sqlErr != nil {
				err = sqlErr
			} else {
				pingErr := sqlDB.Ping()
				if pingErr != nil {
					err = pingErr
				} else {
					sqlDB.SetMaxOpenConns(25)
					sqlDB.SetMaxIdleConns(5)
					sqlDB.SetConnMaxLifetime(5 * time.Minute)
					sqlDB.SetConnMaxIdleTime(1 * time.Minute)
					return db, nil
				}
			}
		}
		logger.Warn().
			Int("attempt", i+1).
			Err(err).
			Msg("Failed to connect to database, retrying...")
		time.Sleep(3 * time.Second)
	}

	return nil, fmt.Errorf("failed to connect after 10 attempts: %w", err)
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

// migrate создает схему хранилища; для SQLite также таблицы снимка
func migrate(db *gorm.DB, driver string) error {
	if driver == "sqlite" {
		if err := repository.AutoMigrateStaging(db); err != nil {
			return err
		}
	}
	return repository.AutoMigrate(db)
}

func connectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	for i := 0; i < 10; i++ {
		if err := client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		logger.Warn().Int("attempt", i+1).Msg("Failed to connect to Redis, retrying...")
		time.Sleep(3 * time.Second)
	}

	client.Close()
	return nil, fmt.Errorf("failed to connect to Redis after 10 attempts")
}
