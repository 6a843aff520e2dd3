package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	EventStore   EventStoreConfig
	Auth         AuthConfig
	Geocoder     GeocoderConfig
	LIMS         LIMSConfig
	Notification NotificationConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// RedisConfig holds the session store connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Enabled falls back to the in-memory session store when false
	Enabled bool
}

// EventStoreConfig holds configuration for the EventStoreDB event bus.
type EventStoreConfig struct {
	// Host is the EventStoreDB server hostname
	Host string
	// Port is the gRPC/HTTP port (default 2113)
	Port int
	// Insecure disables TLS (for development)
	Insecure bool
	// Username for authentication (optional)
	Username string
	// Password for authentication (optional)
	Password string
}

// AuthConfig holds the per-role shared credentials and token settings.
// Passwords are bcrypt-hashed at startup; the defaults are development
// values and must be overridden in production.
type AuthConfig struct {
	JWTSecret              string
	SessionTTL             time.Duration
	ClinicianPassword      string
	EpidemiologistPassword string
	AdminPassword          string
}

// GeocoderConfig points at the external address-search service.
type GeocoderConfig struct {
	URL     string
	Enabled bool
	Timeout time.Duration
}

// LIMSConfig holds the state lab's SQL Server connection settings.
type LIMSConfig struct {
	Enabled      bool
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	SSLMode      string
	ResultTable  string
	PollInterval time.Duration
}

// NotificationConfig holds the epi duty notification settings.
type NotificationConfig struct {
	Enabled    bool
	WebhookURL string
}

func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "surveillance"),
			Password: getEnv("DB_PASSWORD", "surveillance"),
			Database: getEnv("DB_NAME", "surveillance"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Enabled:  getEnvBool("REDIS_ENABLED", false),
		},
		EventStore: EventStoreConfig{
			Host:     getEnv("EVENTSTORE_HOST", "localhost"),
			Port:     getEnvInt("EVENTSTORE_PORT", 2113),
			Insecure: getEnvBool("EVENTSTORE_INSECURE", true),
			Username: getEnv("EVENTSTORE_USERNAME", ""),
			Password: getEnv("EVENTSTORE_PASSWORD", ""),
		},
		Auth: AuthConfig{
			JWTSecret:              getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
			SessionTTL:             getEnvDuration("SESSION_TTL", 8*time.Hour),
			ClinicianPassword:      getEnv("AUTH_CLINICIAN_PASSWORD", "klinik-dev"),
			EpidemiologistPassword: getEnv("AUTH_EPIDEMIOLOGIST_PASSWORD", "siasat-dev"),
			AdminPassword:          getEnv("AUTH_ADMIN_PASSWORD", "admin-dev"),
		},
		Geocoder: GeocoderConfig{
			URL:     getEnv("GEOCODER_URL", "https://nominatim.openstreetmap.org"),
			Enabled: getEnvBool("GEOCODER_ENABLED", true),
			Timeout: getEnvDuration("GEOCODER_TIMEOUT", 5*time.Second),
		},
		LIMS: LIMSConfig{
			Enabled:      getEnvBool("LIMS_ENABLED", false),
			Host:         getEnv("LIMS_HOST", "localhost"),
			Port:         getEnvInt("LIMS_PORT", 1433),
			User:         getEnv("LIMS_USER", "surveillance_ro"),
			Password:     getEnv("LIMS_PASSWORD", ""),
			Database:     getEnv("LIMS_DATABASE", "StateLab"),
			SSLMode:      getEnv("LIMS_SSLMODE", "disable"),
			ResultTable:  getEnv("LIMS_RESULT_TABLE", "dbo.MeaslesResults"),
			PollInterval: getEnvDuration("LIMS_POLL_INTERVAL", 5*time.Minute),
		},
		Notification: NotificationConfig{
			Enabled:    getEnvBool("NOTIFY_ENABLED", false),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
