package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	ServerPort        string
	ServerHost        string
	AuditServerPort   string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	MaxRequestBody    int64
	CORSAllowedOrigin string
	RateLimitRPS      int
	RateLimitBurst    int

	// Model artifacts
	ModelDir           string
	ModelFile          string
	CatalogFile        string
	ModelWatchInterval time.Duration

	// Inference
	TopK                   int
	MinConfidence          float64
	MaxSymptoms            int
	VocabularyPartialMatch bool

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Result cache
	ResultCacheEnabled bool
	ResultCacheTTL     time.Duration
	ResultCachePrefix  string

	// Kafka
	KafkaBrokers         []string
	KafkaGroupID         string
	KafkaPredictionTopic string

	// Audit
	AuditRetention       time.Duration
	AuditCleanupInterval time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerPort:        getEnv("SERVER_PORT", "8090"),
		ServerHost:        getEnv("SERVER_HOST", "0.0.0.0"),
		AuditServerPort:   getEnv("AUDIT_SERVER_PORT", "8091"),
		ReadTimeout:       getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:      getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody:    int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 64*1024)),
		CORSAllowedOrigin: getEnv("CORS_ALLOWED_ORIGIN", "*"),
		RateLimitRPS:      getIntEnv("RATE_LIMIT_RPS", 50),
		RateLimitBurst:    getIntEnv("RATE_LIMIT_BURST", 100),

		ModelDir:           getEnv("MODEL_DIR", "./artifacts"),
		ModelFile:          getEnv("MODEL_FILE", "model.json"),
		CatalogFile:        getEnv("CATALOG_FILE", "catalog.yaml"),
		ModelWatchInterval: getDuration("MODEL_WATCH_INTERVAL", 0),

		TopK:                   getIntEnv("INFERENCE_TOP_K", 4),
		MinConfidence:          getFloatEnv("INFERENCE_MIN_CONFIDENCE", 0.5),
		MaxSymptoms:            getIntEnv("INFERENCE_MAX_SYMPTOMS", 64),
		VocabularyPartialMatch: getBoolEnv("VOCABULARY_PARTIAL_MATCH", false),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "symptomscan"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "symptomscan"),
		PostgresDB:       getEnv("POSTGRES_DB", "symptomscan"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		ResultCacheEnabled: getBoolEnv("RESULT_CACHE_ENABLED", false),
		ResultCacheTTL:     getDuration("RESULT_CACHE_TTL", 10*time.Minute),
		ResultCachePrefix:  getEnv("RESULT_CACHE_PREFIX", "inference"),

		KafkaBrokers:         getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:         getEnv("KAFKA_GROUP_ID", "symptomscan-audit"),
		KafkaPredictionTopic: getEnv("KAFKA_PREDICTION_TOPIC", ""),

		AuditRetention:       getDuration("AUDIT_RETENTION", 30*24*time.Hour),
		AuditCleanupInterval: getDuration("AUDIT_CLEANUP_INTERVAL", 12*time.Hour),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getStringSliceEnv splits a comma separated value, dropping blank entries.
func getStringSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
