package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"shipments-service/internal/carriers"
)

// Config holds all configuration for the shipments service
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	RedisURL     string
	NATSURL      string
	Notification NotificationConfig
	Carrier      carriers.Config
	Shipment     ShipmentConfig
	Sync         SyncConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// NotificationConfig holds the notification-service endpoint.
type NotificationConfig struct {
	BaseURL string
}

// ShipmentConfig holds the fixed pickup and package defaults used on
// carrier order creation.
type ShipmentConfig struct {
	PickupLocation string
	WeightKg       float64
	LengthCm       float64
	BreadthCm      float64
	HeightCm       float64
}

// SyncConfig controls the background reconciliation loop.
type SyncConfig struct {
	Interval  time.Duration
	BatchSize int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8088"),
			Env:  getEnv("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "shipments"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		RedisURL: getEnv("REDIS_URL", ""),
		NATSURL:  getEnv("NATS_URL", ""),
		Notification: NotificationConfig{
			BaseURL: getEnv("NOTIFICATION_SERVICE_URL", ""),
		},
		Carrier: carriers.Config{
			BaseURL:  getEnv("SHIPROCKET_BASE_URL", "https://apiv2.shiprocket.in"),
			Email:    getEnv("SHIPROCKET_EMAIL", ""),
			Password: getEnv("SHIPROCKET_PASSWORD", ""),
			Enabled:  getEnvBool("SHIPROCKET_ENABLED", true),
		},
		Shipment: ShipmentConfig{
			PickupLocation: getEnv("SHIPMENT_PICKUP_LOCATION", "Primary"),
			WeightKg:       getEnvFloat("SHIPMENT_WEIGHT_KG", 0.5),
			LengthCm:       getEnvFloat("SHIPMENT_LENGTH_CM", 10),
			BreadthCm:      getEnvFloat("SHIPMENT_BREADTH_CM", 10),
			HeightCm:       getEnvFloat("SHIPMENT_HEIGHT_CM", 10),
		},
		Sync: SyncConfig{
			Interval:  getEnvDuration("SYNC_INTERVAL", 15*time.Minute),
			BatchSize: getEnvAsInt("SYNC_BATCH_SIZE", 50),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}

	if c.Carrier.Enabled {
		if c.Carrier.Email == "" || c.Carrier.Password == "" {
			return fmt.Errorf("SHIPROCKET_EMAIL and SHIPROCKET_PASSWORD are required when SHIPROCKET_ENABLED=true")
		}
	}

	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("SYNC_BATCH_SIZE must be positive")
	}

	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt gets an integer environment variable or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

// getEnvFloat gets a float environment variable or returns a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable or returns a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
