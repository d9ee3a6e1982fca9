package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	// Server
	Port           string
	AllowedOrigins []string // explicit CORS origins; empty means local/private only

	// Storage
	DataDir      string
	DatabasePath string

	// Jikan metadata source
	JikanBaseURL      string
	JikanRetryAttempts int
	JikanRetryDelay   time.Duration

	// Background projection refresh
	RefreshInterval time.Duration

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables and an optional .env file.
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// .env is optional
	_ = viper.ReadInConfig()

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("JIKAN_BASE_URL", "https://api.jikan.moe/v4")
	viper.SetDefault("JIKAN_RETRY_ATTEMPTS", 3)
	viper.SetDefault("JIKAN_RETRY_DELAY", "1s")
	viper.SetDefault("REFRESH_INTERVAL", "6h")
	viper.SetDefault("LOG_LEVEL", "info")

	dataDir := viper.GetString("DATA_DIR")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share", "anirec")
	} else {
		absPath, err := filepath.Abs(dataDir)
		if err != nil {
			return nil, fmt.Errorf("resolve DATA_DIR: %w", err)
		}
		dataDir = absPath
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	databasePath := viper.GetString("DATABASE_PATH")
	if databasePath == "" {
		databasePath = filepath.Join(dataDir, "anirec.db")
	}

	cfg := &Config{
		Port:               viper.GetString("PORT"),
		AllowedOrigins:     splitOrigins(viper.GetString("ALLOWED_ORIGINS")),
		DataDir:            dataDir,
		DatabasePath:       databasePath,
		JikanBaseURL:       strings.TrimRight(viper.GetString("JIKAN_BASE_URL"), "/"),
		JikanRetryAttempts: viper.GetInt("JIKAN_RETRY_ATTEMPTS"),
		JikanRetryDelay:    viper.GetDuration("JIKAN_RETRY_DELAY"),
		RefreshInterval:    viper.GetDuration("REFRESH_INTERVAL"),
		LogLevel:           viper.GetString("LOG_LEVEL"),
	}

	if cfg.JikanBaseURL == "" {
		return nil, fmt.Errorf("JIKAN_BASE_URL must not be empty")
	}
	if cfg.JikanRetryAttempts < 1 {
		return nil, fmt.Errorf("JIKAN_RETRY_ATTEMPTS must be at least 1")
	}
	if cfg.RefreshInterval <= 0 {
		return nil, fmt.Errorf("REFRESH_INTERVAL must be positive")
	}

	return cfg, nil
}

// splitOrigins parses a comma-separated origin list, dropping empty entries.
func splitOrigins(raw string) []string {
	var origins []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, strings.TrimRight(trimmed, "/"))
		}
	}
	return origins
}
