package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	ServiceName string

	// MongoDB Configuration
	MongoURI      string
	MongoDatabase string
	MongoTimeout  time.Duration

	// HTTP Server Configuration
	HTTPPort            string
	HTTPReadTimeout     time.Duration
	HTTPWriteTimeout    time.Duration
	HTTPShutdownTimeout time.Duration

	// Logging Configuration
	LogLevel  string
	LogFormat string

	// CORS Configuration
	CORSAllowedOrigins   string
	CORSAllowedMethods   string
	CORSAllowedHeaders   string
	CORSAllowCredentials bool
	CORSMaxAge           int

	// Agenda Configuration
	AgendaEnabled              bool
	AgendaDisableJobProcessing bool
	AgendaStore                string // mongo or memory
	AgendaCollection           string
	AgendaWorkerName           string // Defaults to the hostname
	AgendaProcessEvery         time.Duration
	AgendaMaxConcurrency       int
	AgendaDefaultConcurrency   int
	AgendaDefaultLockLifetime  time.Duration
	AgendaPurgeInterval        string
	AgendaPurgeRetention       time.Duration

	// Render Configuration
	RenderEnabled      bool
	RenderServerURL    string
	RenderTimeout      time.Duration
	RenderResponsePath string
	RenderMaxAttempts  int
}

// Agenda stores
const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	return &Config{
		ServiceName: getEnv("SERVICE_NAME", "agenda"),

		// MongoDB
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017/agenda?authSource=admin"),
		MongoDatabase: getEnv("MONGO_DATABASE", "agenda"),
		MongoTimeout:  getDurationEnv("MONGO_TIMEOUT_SEC", 10) * time.Second,

		// HTTP Server
		HTTPPort:            getEnv("HTTP_PORT", "8080"),
		HTTPReadTimeout:     getDurationEnv("HTTP_READ_TIMEOUT_SEC", 30) * time.Second,
		HTTPWriteTimeout:    getDurationEnv("HTTP_WRITE_TIMEOUT_SEC", 30) * time.Second,
		HTTPShutdownTimeout: getDurationEnv("HTTP_SHUTDOWN_TIMEOUT_SEC", 30) * time.Second,

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// CORS
		CORSAllowedOrigins:   getEnv("CORS_ALLOWED_ORIGINS", "*"),
		CORSAllowedMethods:   getEnv("CORS_ALLOWED_METHODS", "GET, POST, PUT, DELETE, OPTIONS, PATCH"),
		CORSAllowedHeaders:   getEnv("CORS_ALLOWED_HEADERS", "*"),
		CORSAllowCredentials: getBoolEnv("CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAge:           getIntEnv("CORS_MAX_AGE", 3600),

		// Agenda
		AgendaEnabled:              getBoolEnv("AGENDA_ENABLED", false),
		AgendaDisableJobProcessing: getBoolEnv("AGENDA_DISABLE_JOB_PROCESSING", false),
		AgendaStore:                strings.ToLower(getEnv("AGENDA_STORE", StoreMongo)),
		AgendaCollection:           getEnv("AGENDA_COLLECTION", "agenda_jobs"),
		AgendaWorkerName:           getEnv("AGENDA_WORKER_NAME", ""),
		AgendaProcessEvery:         getDurationEnv("AGENDA_PROCESS_EVERY_SEC", 5) * time.Second,
		AgendaMaxConcurrency:       getIntEnv("AGENDA_MAX_CONCURRENCY", 20),
		AgendaDefaultConcurrency:   getIntEnv("AGENDA_DEFAULT_CONCURRENCY", 5),
		AgendaDefaultLockLifetime:  getDurationEnv("AGENDA_DEFAULT_LOCK_LIFETIME_SEC", 600) * time.Second,
		AgendaPurgeInterval:        getEnv("AGENDA_PURGE_INTERVAL", "1 day"),
		AgendaPurgeRetention:       getDurationEnv("AGENDA_PURGE_RETENTION_HOURS", 168) * time.Hour,

		// Render
		RenderEnabled:      getBoolEnv("RENDER_ENABLED", false),
		RenderServerURL:    getEnv("RENDER_SERVER_URL", "http://localhost:5173"),
		RenderTimeout:      getDurationEnv("RENDER_TIMEOUT_SEC", 10) * time.Second,
		RenderResponsePath: getEnv("RENDER_RESPONSE_PATH", "$.html"),
		RenderMaxAttempts:  getIntEnv("RENDER_MAX_ATTEMPTS", 3),
	}
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: Invalid integer value for %s, using default %d", key, defaultValue)
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int) time.Duration {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return time.Duration(intVal)
		}
		log.Printf("Warning: Invalid duration value for %s, using default %d", key, defaultValue)
	}
	return time.Duration(defaultValue)
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
		log.Printf("Warning: Invalid boolean value for %s, using default %t", key, defaultValue)
	}
	return defaultValue
}
