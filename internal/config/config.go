package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config - структура для хранения конфигурации приложения
type Config struct {
	DatabaseURL      string `env:"DATABASE_URL"`
	DatabaseMaxConns int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	StorageDriver    string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	MigrationsPath   string `env:"MIGRATIONS_PATH" envDefault:"file://migrations"`
	HTTPPort         string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat        string `env:"LOG_FORMAT" envDefault:"json"`

	// Redis Config
	RedisEnabled  bool          `env:"REDIS_ENABLED" envDefault:"true"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass     string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	RedisPoolSize int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"5m"`

	// Webhook Config
	WebhookTimeout   time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"10s"`
	WebhookQueueSize int           `env:"WEBHOOK_QUEUE_SIZE" envDefault:"256"`

	// Engine Config
	DuplicateRadiusMeters    float64 `env:"DUPLICATE_RADIUS_METERS" envDefault:"200"`
	VerificationRadiusMeters float64 `env:"VERIFICATION_RADIUS_METERS" envDefault:"500"`
	PromotionThreshold       int     `env:"PROMOTION_THRESHOLD" envDefault:"3"`

	// Categories / classifier
	CategoriesFile string `env:"CATEGORIES_FILE"`
	OpenAIAPIKey   string `env:"OPENAI_API_KEY"`
	OpenAIModel    string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`

	// Статические ключи партнёров, используются до регистрации партнёров через partnerctl
	APIKeys []string `env:"API_KEYS"`
}

// LoadConfig загружает конфигурацию из переменных окружения и .env файла
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла (если есть)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ошибка загрузки файла .env: %w", err)
	}

	cfg := &Config{
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		DatabaseMaxConns:         int32(getEnvAsInt("DB_MAX_CONNS", 10)),
		StorageDriver:            getEnv("STORAGE_DRIVER", StorageDriverPostgres),
		MigrationsPath:           getEnv("MIGRATIONS_PATH", "file://migrations"),
		HTTPPort:                 getEnv("HTTP_PORT", "8080"),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		LogFormat:                getEnv("LOG_FORMAT", "json"),
		RedisEnabled:             getEnvAsBool("REDIS_ENABLED", true),
		RedisAddr:                getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:                os.Getenv("REDIS_PASSWORD"),
		RedisDB:                  getEnvAsInt("REDIS_DB", 0),
		RedisPoolSize:            getEnvAsInt("REDIS_POOL_SIZE", 10),
		CacheTTL:                 getEnvAsDuration("CACHE_TTL", 5*time.Minute),
		WebhookTimeout:           getEnvAsDuration("WEBHOOK_TIMEOUT", 10*time.Second),
		WebhookQueueSize:         getEnvAsInt("WEBHOOK_QUEUE_SIZE", 256),
		DuplicateRadiusMeters:    getEnvAsFloat("DUPLICATE_RADIUS_METERS", 200),
		VerificationRadiusMeters: getEnvAsFloat("VERIFICATION_RADIUS_METERS", 500),
		PromotionThreshold:       getEnvAsInt("PROMOTION_THRESHOLD", 3),
		CategoriesFile:           os.Getenv("CATEGORIES_FILE"),
		OpenAIAPIKey:             os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:              getEnv("OPENAI_MODEL", "gpt-4o-mini"),
	}

	// Загрузка API ключей
	apiKeysStr := os.Getenv("API_KEYS")
	if apiKeysStr != "" {
		cfg.APIKeys = strings.Split(apiKeysStr, ",")
		for i, key := range cfg.APIKeys {
			cfg.APIKeys[i] = strings.TrimSpace(key)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.DuplicateRadiusMeters <= 0 || c.VerificationRadiusMeters <= 0 {
		return fmt.Errorf("radius settings must be positive")
	}
	if c.PromotionThreshold < 1 {
		return fmt.Errorf("PROMOTION_THRESHOLD must be at least 1")
	}
	return nil
}

// getEnv возвращает значение переменной окружения или значение по умолчанию
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt возвращает значение переменной окружения как int или значение по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration возвращает значение переменной окружения как time.Duration или значение по умолчанию
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}
