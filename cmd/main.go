package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"shipments-service/internal/carriers"
	"shipments-service/internal/clients"
	"shipments-service/internal/config"
	"shipments-service/internal/events"
	"shipments-service/internal/handlers"
	"shipments-service/internal/middleware"
	"shipments-service/internal/models"
	"shipments-service/internal/repository"
	"shipments-service/internal/services"
)

func main() {
	// .env is a local-dev convenience; in the cluster everything comes from
	// the environment directly.
	_ = godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	logger.Info("Starting Shipments Service...")

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	db, err := connectDatabase(cfg.GetDatabaseDSN())
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	logger.Info("Database connected")

	if err := runMigrations(db); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}
	logger.Info("Database migrations completed")

	// Redis backs the carrier token cache; the service degrades to
	// in-process caching when it is unavailable.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("Failed to parse Redis URL, continuing without Redis")
		} else {
			redisClient = redis.NewClient(opt)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := redisClient.Ping(ctx).Err(); err != nil {
				logger.WithError(err).Warn("Failed to connect to Redis, continuing without Redis")
				redisClient = nil
			} else {
				logger.Info("Connected to Redis")
			}
			cancel()
		}
	} else {
		logger.Info("REDIS_URL not configured, token cache is in-process only")
	}

	// Events are best effort; a missing broker never blocks shipments.
	var publisher *events.Publisher
	if cfg.NATSURL != "" {
		publisher, err = events.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to connect to NATS, events will not be published")
			publisher = nil
		} else {
			defer publisher.Close()
			logger.Info("NATS events publisher initialized")
		}
	}

	tokens := carriers.NewCachedTokenProvider(cfg.Carrier, redisClient, logger)
	carrierClient := carriers.NewHTTPClient(cfg.Carrier, tokens, logger)

	notifier := clients.NewNotificationClient(cfg.Notification.BaseURL)

	shipmentRepo := repository.NewShipmentRepository(db)
	orderRepo := repository.NewOrderRepository(db)

	defaults := services.ShipmentDefaults{
		PickupLocation: cfg.Shipment.PickupLocation,
		WeightKg:       cfg.Shipment.WeightKg,
		LengthCm:       cfg.Shipment.LengthCm,
		BreadthCm:      cfg.Shipment.BreadthCm,
		HeightCm:       cfg.Shipment.HeightCm,
	}

	shipmentService := services.NewShipmentService(shipmentRepo, orderRepo, carrierClient, notifier, publisher, defaults, logger)
	syncService := services.NewSyncService(shipmentRepo, orderRepo, carrierClient, notifier, publisher, logger)

	// Background reconciliation: the carrier has no webhooks, polling is the
	// only way shipment state comes back.
	syncCtx, stopSync := context.WithCancel(context.Background())
	defer stopSync()
	go runSyncLoop(syncCtx, syncService, cfg.Sync, logger)

	router := setupRouter(cfg, shipmentService, syncService, logger)

	logger.WithField("port", cfg.Server.Port).Info("Shipments Service listening")
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logger.WithError(err).Fatal("Server exited")
	}
}

func connectDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func runMigrations(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Order{},
		&models.OrderItem{},
		&models.Shipment{},
	)
}

func runSyncLoop(ctx context.Context, syncService services.SyncService, cfg config.SyncConfig, logger *logrus.Logger) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := syncService.SyncBatch(ctx, cfg.BatchSize); err != nil {
				logger.WithError(err).Error("Scheduled batch sync failed")
			}
		}
	}
}

func setupRouter(cfg *config.Config, shipmentService services.ShipmentService, syncService services.SyncService, logger *logrus.Logger) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.Identity())
	router.Use(middleware.RequestLogging(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy", "service": "shipments-service"})
	})

	shipmentHandler := handlers.NewShipmentHandler(shipmentService, syncService, cfg.Sync.BatchSize)
	api := router.Group("/api/v1")
	shipmentHandler.RegisterRoutes(api, middleware.RequireRole("admin"))

	return router
}
