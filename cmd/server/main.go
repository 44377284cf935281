package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fekuna/omnipos-inventory-service/config"
	"github.com/fekuna/omnipos-inventory-service/pkg/broker"
	"github.com/fekuna/omnipos-inventory-service/pkg/cache"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
	"github.com/fekuna/omnipos-inventory-service/pkg/postgres"

	alertRepoPkg "github.com/fekuna/omnipos-inventory-service/internal/alert/repository"
	alertUCPkg "github.com/fekuna/omnipos-inventory-service/internal/alert/usecase"

	resvRepoPkg "github.com/fekuna/omnipos-inventory-service/internal/reservation/repository"
	resvUCPkg "github.com/fekuna/omnipos-inventory-service/internal/reservation/usecase"

	stockRepoPkg "github.com/fekuna/omnipos-inventory-service/internal/stock/repository"
	stockUCPkg "github.com/fekuna/omnipos-inventory-service/internal/stock/usecase"

	orderListenerPkg "github.com/fekuna/omnipos-inventory-service/internal/order/listener"
	orderUCPkg "github.com/fekuna/omnipos-inventory-service/internal/order/usecase"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// 1. Load Configuration
	_ = godotenv.Load() // Load .env file if it exists
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          "json",
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}

	if cfg.Server.AppEnv == "development" || cfg.Server.AppEnv == "dev" {
		logConfig.IsDevelopment = true
		logConfig.Encoding = "console"
		logConfig.Level = "debug"
	}

	appLogger := logger.NewZapLogger(logConfig)
	defer appLogger.Sync()

	// 3. Connect to Database
	db, err := postgres.NewPostgres(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to database", zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))

	// 4. Initialize Redis
	redisClient, err := cache.NewRedisClient(&cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))

	// 5. Initialize Kafka Consumer
	kafkaConsumer := broker.NewConsumer(&broker.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Kafka.GroupID,
	})
	defer kafkaConsumer.Close()
	appLogger.Info("Connected to Kafka Consumer", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))

	// 6. Initialize Repositories
	stockRepo := stockRepoPkg.NewPGRepository(db)
	resvRepo := resvRepoPkg.NewPGRepository(db)
	alertRepo := alertRepoPkg.NewPGRepository(db)

	// 7. Initialize UseCases
	alertUC := alertUCPkg.NewAlertUseCase(alertRepo, stockRepo, appLogger, cfg.Alert.SuppressionWindow)
	stockUC := stockUCPkg.NewStockUseCase(stockRepo, redisClient, alertUC, appLogger)
	resvUC := resvUCPkg.NewReservationUseCase(resvRepo, redisClient, appLogger, cfg.Reservation.HoldDuration, cfg.Reservation.SweepLimit)
	orderUC := orderUCPkg.NewOrderUseCase(stockUC, resvUC, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 8. Start Listener
	orderListener := orderListenerPkg.NewOrderListener(kafkaConsumer, orderUC, appLogger)
	go orderListener.Start(ctx)

	// 9. Start reservation expiry sweep
	go func() {
		ticker := time.NewTicker(cfg.Reservation.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := resvUC.ExpireSweep(ctx); err != nil {
					appLogger.Error("reservation expiry sweep failed", zap.Error(err))
				}
			}
		}
	}()

	// 10. Start batch expiry alert pass (empty merchant id spans all merchants)
	go func() {
		horizon := time.Duration(cfg.Alert.ExpiryHorizonDays) * 24 * time.Hour
		ticker := time.NewTicker(cfg.Alert.ExpiryCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := alertUC.CheckExpiringBatches(ctx, "", horizon); err != nil {
					appLogger.Error("batch expiry alert pass failed", zap.Error(err))
				}
			}
		}
	}()

	appLogger.Info("Inventory service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	cancel()
	appLogger.Info("Server stopped")
}
