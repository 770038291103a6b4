package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig holds settings for the embedded SQLite store.
type DatabaseConfig struct {
	// Path is the database file. ":memory:" opens a throwaway store.
	Path string `mapstructure:"path" yaml:"path"`

	// BusyTimeoutMS is how long SQLite waits on a locked database.
	BusyTimeoutMS int `mapstructure:"busy_timeout_ms" yaml:"busy_timeout_ms"`

	// WAL enables write-ahead logging for file-backed databases.
	WAL bool `mapstructure:"wal" yaml:"wal"`
}

// BackupConfig controls where snapshots go and how many are retained.
type BackupConfig struct {
	Dir  string `mapstructure:"dir" yaml:"dir"`
	Keep int    `mapstructure:"keep" yaml:"keep"`
}

// LogConfig controls the slog output.
type LogConfig struct {
	// Path is the log file. Empty logs to stderr.
	Path  string `mapstructure:"path" yaml:"path"`
	Level string `mapstructure:"level" yaml:"level"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Backup   BackupConfig   `mapstructure:"backup" yaml:"backup"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// BusyTimeout returns the configured busy timeout as a duration.
func (c DatabaseConfig) BusyTimeout() time.Duration {
	return time.Duration(c.BusyTimeoutMS) * time.Millisecond
}

// DefaultDir returns ~/.config/actionstore, falling back to the working
// directory when the home directory is unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "actionstore")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/actionstore/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// Default returns a sensible default configuration.
func Default() *AppConfig {
	dir := DefaultDir()
	return &AppConfig{
		Database: DatabaseConfig{
			Path:          filepath.Join(dir, "actions.db"),
			BusyTimeoutMS: 5000,
			WAL:           true,
		},
		Backup: BackupConfig{
			Dir:  filepath.Join(dir, "backups"),
			Keep: 10,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	def := Default()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("database.path", def.Database.Path)
	v.SetDefault("database.busy_timeout_ms", def.Database.BusyTimeoutMS)
	v.SetDefault("database.wal", def.Database.WAL)
	v.SetDefault("backup.dir", def.Backup.Dir)
	v.SetDefault("backup.keep", def.Backup.Keep)
	v.SetDefault("log.level", def.Log.Level)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return def, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return def, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Backup.Keep < 0 {
		return nil, fmt.Errorf("parsing config %s: backup.keep must not be negative", path)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("database", cfg.Database)
	v.Set("backup", cfg.Backup)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
