// Package util provides configuration and logging helpers for nettools.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds process-level configuration. Runtime behaviour (scan and
// speed test intervals, network range, notification credentials) lives in
// the settings table instead, so it can be changed through the API without
// a restart.
type Config struct {
	DataDir  string `mapstructure:"data_dir"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`

	// Web server
	WebPort int `mapstructure:"web_port"`

	// Scan settings
	ScanInterface string        `mapstructure:"scan_interface"`
	ScanTimeout   time.Duration `mapstructure:"scan_timeout"`

	// Ping settings
	PingConcurrency int           `mapstructure:"ping_concurrency"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`

	// Traceroute settings
	TraceMaxHops int `mapstructure:"trace_max_hops"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".nettools")

	return &Config{
		DataDir:  dataDir,
		LogLevel: "info",
		LogFile:  filepath.Join(dataDir, "nettools.log"),

		WebPort: 8000,

		ScanInterface: "eth0",
		ScanTimeout:   120 * time.Second,

		PingConcurrency: 10,
		PingTimeout:     3 * time.Second,

		TraceMaxHops: 30,
	}
}

// LoadConfig loads configuration from file and environment.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	// Ensure config directory exists
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(cfg.DataDir)
	viper.AddConfigPath(".")

	// Set defaults in viper
	viper.SetDefault("data_dir", cfg.DataDir)
	viper.SetDefault("log_level", cfg.LogLevel)
	viper.SetDefault("log_file", cfg.LogFile)
	viper.SetDefault("web_port", cfg.WebPort)
	viper.SetDefault("scan_interface", cfg.ScanInterface)
	viper.SetDefault("scan_timeout", cfg.ScanTimeout)
	viper.SetDefault("ping_concurrency", cfg.PingConcurrency)
	viper.SetDefault("ping_timeout", cfg.PingTimeout)
	viper.SetDefault("trace_max_hops", cfg.TraceMaxHops)

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Unmarshal into config struct
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// EnsureDir ensures a directory exists.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
