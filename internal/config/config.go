// Package config provides configuration management for the scenario simulator.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Scenario sources
const (
	SourceSQLite   = "sqlite"
	SourcePostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Scenario   ScenarioConfig
	Database   DatabaseConfig
	Cache      CacheConfig
	Simulation SimulationConfig
	RateLimit  RateLimitConfig
	Logging    LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// ScenarioConfig selects where scenario series are read from
type ScenarioConfig struct {
	Name            string
	Source          string
	SQLitePath      string
	NewsPath        string
	DescriptionPath string
	DefinitionPath  string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
	MigrationsPath string
}

// URL returns the connection URL used by migrations
func (c PostgresConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", c.User, c.Password, c.Host, c.Port, c.Database)
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// CacheConfig holds timeline cache configuration
type CacheConfig struct {
	Enabled   bool
	TTL       time.Duration
	KeyPrefix string
}

// SimulationConfig holds simulator defaults
type SimulationConfig struct {
	InitialCapital string
	ExportDir      string
	MaxSessions    int
}

// RateLimitConfig holds per-client API rate limits
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
	TrustedProxies    []string // X-Forwarded-For is honored only from these hosts
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env is optional; environment variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Scenario: ScenarioConfig{
			Name:            getEnv("SCENARIO_NAME", "default"),
			Source:          strings.ToLower(getEnv("SCENARIO_SOURCE", SourceSQLite)),
			SQLitePath:      getEnv("SCENARIO_SQLITE_PATH", "data/scenario.db"),
			NewsPath:        getEnv("SCENARIO_NEWS_PATH", ""),
			DescriptionPath: getEnv("SCENARIO_DESCRIPTION_PATH", ""),
			DefinitionPath:  getEnv("SCENARIO_DEFINITION_PATH", ""),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "scenario_simulator"),
				User:           getEnv("POSTGRES_USER", "simulator"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
				MigrationsPath: getEnv("POSTGRES_MIGRATIONS_PATH", "migrations/postgres"),
			},
			ClickHouse: ClickHouseConfig{
				Enabled:  getEnvAsBool("CLICKHOUSE_ENABLED", false),
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "scenario_simulator"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 10),
			},
		},
		Cache: CacheConfig{
			Enabled:   getEnvAsBool("CACHE_ENABLED", false),
			TTL:       getEnvAsDuration("CACHE_TTL", 24*time.Hour),
			KeyPrefix: getEnv("CACHE_KEY_PREFIX", "scenario"),
		},
		Simulation: SimulationConfig{
			InitialCapital: getEnv("SIMULATION_INITIAL_CAPITAL", "100000"),
			ExportDir:      getEnv("SIMULATION_EXPORT_DIR", "exports"),
			MaxSessions:    getEnvAsInt("SIMULATION_MAX_SESSIONS", 100),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsInt("RATE_LIMIT_RPS", 20),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 40),
			TrustedProxies:    getEnvAsList("RATE_LIMIT_TRUSTED_PROXIES"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks values that cannot be defaulted
func (c *Config) Validate() error {
	switch c.Scenario.Source {
	case SourceSQLite:
		if c.Scenario.SQLitePath == "" {
			return fmt.Errorf("SCENARIO_SQLITE_PATH is required for the sqlite source")
		}
	case SourcePostgres:
	default:
		return fmt.Errorf("unknown SCENARIO_SOURCE %q (want %s or %s)", c.Scenario.Source, SourceSQLite, SourcePostgres)
	}

	if c.Database.Postgres.MaxConnections <= 0 {
		return fmt.Errorf("POSTGRES_MAX_CONNECTIONS must be positive")
	}
	if c.Simulation.MaxSessions <= 0 {
		return fmt.Errorf("SIMULATION_MAX_SESSIONS must be positive")
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}

	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated environment variable, dropping blanks
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
