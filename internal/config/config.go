package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Remote  RemoteConfig  `mapstructure:"remote"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// RemoteConfig holds backend connection configuration
type RemoteConfig struct {
	URL     string `mapstructure:"url"`      // Backend base URL
	AnonKey string `mapstructure:"anon_key"` // Anonymous API key
}

// SyncConfig holds sync engine tuning
type SyncConfig struct {
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"` // connectivity probe deadline
	Debounce     time.Duration `mapstructure:"debounce"`      // probe result reuse window
	PullTimeout  time.Duration `mapstructure:"pull_timeout"`  // per-pull deadline in full sync
	HistoryCap   int           `mapstructure:"history_cap"`   // local history length ceiling
}

// StorageConfig holds local store configuration
type StorageConfig struct {
	Path     string `mapstructure:"path"`      // bbolt file path, empty = in-memory
	MaxBytes int64  `mapstructure:"max_bytes"` // local storage budget
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File       string `mapstructure:"file"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Remote: RemoteConfig{},
		Sync: SyncConfig{
			ProbeTimeout: 5 * time.Second,
			Debounce:     30 * time.Second,
			PullTimeout:  10 * time.Second,
			HistoryCap:   50,
		},
		Storage: StorageConfig{
			Path:     defaultStorePath(),
			MaxBytes: 5 << 20,
		},
		Logging: LoggingConfig{
			File:       defaultLogPath(),
			Level:      "INFO",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "novelsync", "novelsync.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "novelsync", "novelsync.log")
	}
}

// defaultStorePath returns the default local store path for the current OS
func defaultStorePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "novelsync", "novelsync.db")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "novelsync", "novelsync.db")
	}
}

// defaultConfigPath returns the default config file path for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "novelsync")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "novelsync")
	}
}

// LoadConfig loads configuration from .env, config file, and environment
func LoadConfig() (*Config, error) {
	// .env is optional and never overrides real environment variables
	godotenv.Load()

	cfg := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(defaultConfigPath())
	viper.AddConfigPath(".")

	// Environment variable overrides, e.g. NOVELSYNC_REMOTE_URL
	viper.SetEnvPrefix("NOVELSYNC")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if cfg.Remote.URL == "" {
		cfg.Remote.URL = os.Getenv("NOVELSYNC_REMOTE_URL")
	}
	if cfg.Remote.AnonKey == "" {
		cfg.Remote.AnonKey = os.Getenv("NOVELSYNC_REMOTE_ANON_KEY")
	}

	return cfg, nil
}

// SaveConfig saves the current configuration to file
func SaveConfig(cfg *Config) error {
	configPath := defaultConfigPath()

	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	viper.Set("remote.url", cfg.Remote.URL)
	viper.Set("remote.anon_key", cfg.Remote.AnonKey)

	viper.Set("sync.probe_timeout", cfg.Sync.ProbeTimeout)
	viper.Set("sync.debounce", cfg.Sync.Debounce)
	viper.Set("sync.pull_timeout", cfg.Sync.PullTimeout)
	viper.Set("sync.history_cap", cfg.Sync.HistoryCap)

	viper.Set("storage.path", cfg.Storage.Path)
	viper.Set("storage.max_bytes", cfg.Storage.MaxBytes)

	viper.Set("logging.file", cfg.Logging.File)
	viper.Set("logging.level", cfg.Logging.Level)
	viper.Set("logging.max_size_mb", cfg.Logging.MaxSizeMB)
	viper.Set("logging.max_backups", cfg.Logging.MaxBackups)

	configFile := filepath.Join(configPath, "config.yaml")
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// IsConfigured returns true if the backend URL and anon key are set
func (c *Config) IsConfigured() bool {
	return c.Remote.URL != "" && c.Remote.AnonKey != ""
}
