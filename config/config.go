package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config carries process-wide settings loaded from the environment.
type Config struct {
	DatabaseURL string
	ServerPort  string
	LogLevel    string

	SMTPServer     string
	SMTPPort       int
	SenderEmail    string
	SenderPassword string

	TargetCities      []City
	ScrapeWorkers     int
	RequestsPerMinute int
	MaxPriceCeiling   float64
}

// City is a scrape target.
type City struct {
	Name  string
	State string
}

// DatabaseConfig holds connection pool settings.
type DatabaseConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// DefaultDatabaseConfig returns pool settings suitable for a single
// batch process with a small worker pool.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
		PingTimeout:     10 * time.Second,
	}
}

// LoadConfig reads configuration from .env and the process environment.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Warn("Error loading .env file, using system environment variables")
	}

	return &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		SMTPServer:     getEnv("SMTP_SERVER", "smtp.gmail.com"),
		SMTPPort:       getEnvInt("SMTP_PORT", 587),
		SenderEmail:    getEnv("SENDER_EMAIL", ""),
		SenderPassword: getEnv("SENDER_PASSWORD", ""),

		TargetCities:      parseCities(getEnv("TARGET_CITIES", "Kokomo,IN;Logansport,IN;Indianapolis,IN;Fort Wayne,IN")),
		ScrapeWorkers:     getEnvInt("SCRAPE_WORKERS", 4),
		RequestsPerMinute: getEnvInt("REQUESTS_PER_MINUTE", 10),
		MaxPriceCeiling:   getEnvFloat("MAX_PRICE_CEILING", 200000),
	}
}

// NotificationsEnabled reports whether SMTP credentials are configured.
func (c *Config) NotificationsEnabled() bool {
	return c.SenderEmail != "" && c.SenderPassword != ""
}

// parseCities parses "Name,ST;Name,ST" pairs; malformed entries are
// skipped with a warning.
func parseCities(raw string) []City {
	var cities []City
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ",")
		if len(parts) != 2 {
			logrus.Warnf("Skipping malformed TARGET_CITIES entry: %q", entry)
			continue
		}
		cities = append(cities, City{
			Name:  strings.TrimSpace(parts[0]),
			State: strings.TrimSpace(parts[1]),
		})
	}
	return cities
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		logrus.Warnf("Invalid %s value: %s, using default %d", key, raw, fallback)
		return fallback
	}
	return value
}

func getEnvFloat(key string, fallback float64) float64 {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		logrus.Warnf("Invalid %s value: %s, using default %g", key, raw, fallback)
		return fallback
	}
	return value
}
