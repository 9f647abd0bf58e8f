package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server
	Port       string
	Env        string
	InstanceID string

	// Database
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	// JWT
	JWTSecret        string
	JWTExpirationDur time.Duration

	// Blob storage. GCSBucket wins over BlobDir when both are set.
	BlobDir            string
	BlobBaseURL        string
	GCSBucket          string
	GCSCredentialsFile string
	MaxAvatarBytes     int64

	// Change fan-out between instances. Disabled when AMQPURL is empty.
	AMQPURL      string
	AMQPExchange string
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	hostname, _ := os.Hostname()

	// Get values from environment variables with defaults
	config := &Config{
		// Server
		Port:       getEnv("PORT", "8080"),
		Env:        getEnv("ENV", "development"),
		InstanceID: getEnv("INSTANCE_ID", hostname),

		// Database
		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "pocketledger"),
		DBPassword: getEnv("DB_PASSWORD", "pocketledger"),
		DBName:     getEnv("DB_NAME", "pocketledger"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		SQLitePath: getEnv("SQLITE_PATH", "data/pocketledger.db"),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),

		// Blob storage
		BlobDir:            getEnv("BLOB_DIR", "data/blobs"),
		BlobBaseURL:        getEnv("BLOB_BASE_URL", "http://localhost:8080/blobs"),
		GCSBucket:          getEnv("GCS_BUCKET", ""),
		GCSCredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),

		// AMQP
		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "pocketledger.changes"),
	}

	// Parse JWT expiration duration
	expStr := getEnv("JWT_EXPIRES_IN", "15m")
	expDur, err := time.ParseDuration(expStr)
	if err != nil {
		log.Printf("Warning: invalid JWT_EXPIRES_IN value '%s', falling back to 15m\n", expStr)
		expDur = 15 * time.Minute
	}
	config.JWTExpirationDur = expDur

	maxStr := getEnv("MAX_AVATAR_BYTES", "5242880")
	maxBytes, err := strconv.ParseInt(maxStr, 10, 64)
	if err != nil || maxBytes <= 0 {
		log.Printf("Warning: invalid MAX_AVATAR_BYTES value '%s', falling back to 5MiB\n", maxStr)
		maxBytes = 5 << 20
	}
	config.MaxAvatarBytes = maxBytes

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// UseSQLite reports whether the service runs on the embedded SQLite database.
func (c *Config) UseSQLite() bool {
	return c.DBDriver == "sqlite"
}

// PostgresURL returns the URL form of the PostgreSQL DSN used by migrations.
func (c *Config) PostgresURL() string {
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + c.DBPort + "/" + c.DBName + "?sslmode=" + c.DBSSLMode
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
