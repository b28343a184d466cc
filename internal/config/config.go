package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Collaboration server
	ServerURL            string
	GameID               string
	UserID               string
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int
	Enabled              bool
	InviteScheme         string

	// Snapshot journal (optional)
	JournalEnabled bool
	JournalKeep    int
	JournalQueue   int
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string

	// Local control API
	StatusHost string
	StatusPort string

	// Observability
	JaegerEndpoint string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		ServerURL:            getEnv("COLLAB_SERVER_URL", "ws://localhost:8080/ws"),
		GameID:               getEnv("COLLAB_GAME_ID", ""),
		UserID:               getEnv("COLLAB_USER_ID", ""),
		ReconnectInterval:    time.Duration(getEnvInt("COLLAB_RECONNECT_INTERVAL_MS", 3000)) * time.Millisecond,
		MaxReconnectAttempts: getEnvInt("COLLAB_MAX_RECONNECT_ATTEMPTS", 5),
		Enabled:              getEnvBool("COLLAB_ENABLED", true),
		InviteScheme:         getEnv("COLLAB_INVITE_SCHEME", "gamesync"),

		JournalEnabled: getEnvBool("JOURNAL_ENABLED", false),
		JournalKeep:    getEnvInt("JOURNAL_KEEP", 200),
		JournalQueue:   getEnvInt("JOURNAL_QUEUE_SIZE", 256),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", "postgres"),
		DBName:         getEnv("DB_NAME", "gamesync"),
		DBSSLMode:      getEnv("DB_SSLMODE", "disable"),

		StatusHost: getEnv("STATUS_HOST", "localhost"),
		StatusPort: getEnv("STATUS_PORT", "7070"),

		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings the session cannot run with
func (c *Config) Validate() error {
	if c.Enabled && c.ServerURL == "" {
		return fmt.Errorf("COLLAB_SERVER_URL is required when collaboration is enabled")
	}
	if c.ReconnectInterval <= 0 {
		return fmt.Errorf("reconnect interval must be positive")
	}
	if c.MaxReconnectAttempts < 0 {
		return fmt.Errorf("max reconnect attempts cannot be negative")
	}
	if c.InviteScheme == "" {
		return fmt.Errorf("invite scheme cannot be empty")
	}
	if c.JournalEnabled && c.JournalKeep <= 0 {
		return fmt.Errorf("JOURNAL_KEEP must be positive")
	}
	if c.JournalEnabled && c.JournalQueue <= 0 {
		return fmt.Errorf("JOURNAL_QUEUE_SIZE must be positive")
	}
	return nil
}

func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
