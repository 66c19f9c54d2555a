package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// AniDB
	AniDBUsername  string
	AniDBPassword  string
	AniDBServer    string // host:port of the metadata service
	AniDBLocalPort int    // fixed local UDP port

	// Indexing
	MediaDir     string // root of the local collection
	ScanSchedule string // cron expression for periodic rescans

	// Server
	ServerPort string

	// Paths
	DatabaseFile string // $CONFIG_DIR/anidex.db
	IgnoreFile   string // $CONFIG_DIR/ignore.txt

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Setup viper FIRST to load .env file
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = viper.ReadInConfig()

	// Set defaults
	viper.SetDefault("ANIDB_SERVER", "api.anidb.net:9000")
	viper.SetDefault("ANIDB_LOCAL_PORT", 16835)
	viper.SetDefault("SCAN_SCHEDULE", "0 */6 * * *")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")

	// NOW read CONFIG_DIR from viper (which has loaded .env file)
	configDir := viper.GetString("CONFIG_DIR")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "anidex")
	} else {
		// Convert relative path to absolute path
		absPath, err := filepath.Abs(configDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
		}
		configDir = absPath
	}

	// Create config directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	config := &Config{
		// AniDB
		AniDBUsername:  viper.GetString("ANIDB_USERNAME"),
		AniDBPassword:  viper.GetString("ANIDB_PASSWORD"),
		AniDBServer:    viper.GetString("ANIDB_SERVER"),
		AniDBLocalPort: viper.GetInt("ANIDB_LOCAL_PORT"),

		// Indexing
		MediaDir:     viper.GetString("MEDIA_DIR"),
		ScanSchedule: viper.GetString("SCAN_SCHEDULE"),

		// Server
		ServerPort: viper.GetString("SERVER_PORT"),

		// Paths
		DatabaseFile: filepath.Join(configDir, "anidex.db"),
		IgnoreFile:   filepath.Join(configDir, "ignore.txt"),

		// Logging
		LogLevel: viper.GetString("LOG_LEVEL"),
	}

	// Validate required fields
	if config.AniDBUsername == "" {
		return nil, fmt.Errorf("ANIDB_USERNAME is required")
	}
	if config.AniDBPassword == "" {
		return nil, fmt.Errorf("ANIDB_PASSWORD is required")
	}
	if config.MediaDir == "" {
		return nil, fmt.Errorf("MEDIA_DIR is required")
	}
	mediaDir, err := filepath.Abs(config.MediaDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for MEDIA_DIR: %w", err)
	}
	config.MediaDir = mediaDir

	return config, nil
}
