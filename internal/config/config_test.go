package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	// Set some test environment variables
	if err := os.Setenv("SERVER_PORT", "9090"); err != nil {
		t.Fatalf("Failed to set SERVER_PORT: %v", err)
	}
	if err := os.Setenv("SCENARIO_SOURCE", "Postgres"); err != nil {
		t.Fatalf("Failed to set SCENARIO_SOURCE: %v", err)
	}
	if err := os.Setenv("CACHE_TTL", "30s"); err != nil {
		t.Fatalf("Failed to set CACHE_TTL: %v", err)
	}
	defer func() {
		_ = os.Unsetenv("SERVER_PORT")
		_ = os.Unsetenv("SCENARIO_SOURCE")
		_ = os.Unsetenv("CACHE_TTL")
	}()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %v, want %v", cfg.Server.Port, "9090")
	}

	if cfg.Scenario.Source != SourcePostgres {
		t.Errorf("Scenario.Source = %v, want %v", cfg.Scenario.Source, SourcePostgres)
	}

	if cfg.Cache.TTL != 30*time.Second {
		t.Errorf("Cache.TTL = %v, want %v", cfg.Cache.TTL, 30*time.Second)
	}

	if cfg.Simulation.InitialCapital != "100000" {
		t.Errorf("Simulation.InitialCapital = %v, want %v", cfg.Simulation.InitialCapital, "100000")
	}
}

func TestLoadConfigRejectsUnknownSource(t *testing.T) {
	t.Setenv("SCENARIO_SOURCE", "csv")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig() expected error for unknown source")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Scenario:   ScenarioConfig{Source: SourceSQLite, SQLitePath: "scenario.db"},
			Database:   DatabaseConfig{Postgres: PostgresConfig{MaxConnections: 5}},
			Simulation: SimulationConfig{MaxSessions: 10},
			RateLimit:  RateLimitConfig{RequestsPerSecond: 1, Burst: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid sqlite", mutate: func(*Config) {}},
		{name: "valid postgres", mutate: func(c *Config) { c.Scenario.Source = SourcePostgres; c.Scenario.SQLitePath = "" }},
		{name: "sqlite without path", mutate: func(c *Config) { c.Scenario.SQLitePath = "" }, wantErr: true},
		{name: "zero sessions", mutate: func(c *Config) { c.Simulation.MaxSessions = 0 }, wantErr: true},
		{name: "zero burst", mutate: func(c *Config) { c.RateLimit.Burst = 0 }, wantErr: true},
		{name: "zero postgres pool", mutate: func(c *Config) { c.Database.Postgres.MaxConnections = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPostgresURL(t *testing.T) {
	cfg := PostgresConfig{Host: "db", Port: "5432", Database: "sim", User: "u", Password: "p"}
	want := "postgres://u:p@db:5432/sim?sslmode=disable"
	if got := cfg.URL(); got != want {
		t.Errorf("URL() = %v, want %v", got, want)
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns environment variable when set",
			key:          "TEST_KEY",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when environment variable not set",
			key:          "NONEXISTENT_KEY",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				if err := os.Setenv(tt.key, tt.envValue); err != nil {
					t.Fatalf("Failed to set env var: %v", err)
				}
				defer func() {
					_ = os.Unsetenv(tt.key)
				}()
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue int
		envValue     string
		want         int
	}{
		{
			name:         "returns integer when valid",
			key:          "TEST_INT",
			defaultValue: 100,
			envValue:     "200",
			want:         200,
		},
		{
			name:         "returns default when invalid",
			key:          "TEST_INT_INVALID",
			defaultValue: 100,
			envValue:     "invalid",
			want:         100,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_INT_NOTSET",
			defaultValue: 100,
			envValue:     "",
			want:         100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				if err := os.Setenv(tt.key, tt.envValue); err != nil {
					t.Fatalf("Failed to set env var: %v", err)
				}
				defer func() {
					_ = os.Unsetenv(tt.key)
				}()
			}

			got := getEnvAsInt(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvAsInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue time.Duration
		envValue     string
		want         time.Duration
	}{
		{
			name:         "returns duration when valid",
			key:          "TEST_DURATION",
			defaultValue: 10 * time.Second,
			envValue:     "30s",
			want:         30 * time.Second,
		},
		{
			name:         "returns default when invalid",
			key:          "TEST_DURATION_INVALID",
			defaultValue: 10 * time.Second,
			envValue:     "invalid",
			want:         10 * time.Second,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_DURATION_NOTSET",
			defaultValue: 10 * time.Second,
			envValue:     "",
			want:         10 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				if err := os.Setenv(tt.key, tt.envValue); err != nil {
					t.Fatalf("Failed to set env var: %v", err)
				}
				defer func() {
					_ = os.Unsetenv(tt.key)
				}()
			}

			got := getEnvAsDuration(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvAsDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_BOOL_INVALID", "maybe")

	if !getEnvAsBool("TEST_BOOL", false) {
		t.Error("getEnvAsBool() = false, want true")
	}
	if !getEnvAsBool("TEST_BOOL_INVALID", true) {
		t.Error("getEnvAsBool() should fall back to the default when invalid")
	}
	if getEnvAsBool("TEST_BOOL_NOTSET", false) {
		t.Error("getEnvAsBool() should return the default when not set")
	}
}

func TestGetEnvAsList(t *testing.T) {
	t.Setenv("RATE_LIMIT_TRUSTED_PROXIES", " 10.0.0.1, ,10.0.0.2 ")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	got := cfg.RateLimit.TrustedProxies
	if len(got) != 2 || got[0] != "10.0.0.1" || got[1] != "10.0.0.2" {
		t.Errorf("RateLimit.TrustedProxies = %v, want [10.0.0.1 10.0.0.2]", got)
	}

	if list := getEnvAsList("NONEXISTENT_LIST_KEY"); list != nil {
		t.Errorf("getEnvAsList() = %v, want nil", list)
	}
}
