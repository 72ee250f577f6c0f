// Package config loads the slidered daemon configuration from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAddr           = "127.0.0.1:8765"
	DefaultPattern        = ".pianoroll.json"
	DefaultBackupInterval = 30 * time.Second
	DefaultBackupMaxAge   = 7 * 24 * time.Hour
	DefaultMessageRate    = 120
)

// Config is the daemon configuration. Zero-valued fields in the file keep
// their defaults.
type Config struct {
	Addr           string        `yaml:"addr"`
	Root           string        `yaml:"root"`
	Pattern        string        `yaml:"pattern"`
	BackupDir      string        `yaml:"backup_dir"`
	BackupInterval time.Duration `yaml:"backup_interval"`
	BackupMaxAge   time.Duration `yaml:"backup_max_age"`
	APIKey         string        `yaml:"api_key"`
	Advertise      bool          `yaml:"advertise"`
	Watch          bool          `yaml:"watch"`
	LogFile        string        `yaml:"log_file"`
	Debug          bool          `yaml:"debug"`
	// MaxMessagesPerSec limits surface messages per websocket connection.
	MaxMessagesPerSec int `yaml:"max_messages_per_sec"`
}

// DefaultDir returns ~/.config/slidered.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".slidered"
	}
	return filepath.Join(home, ".config", "slidered")
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// Default returns the built-in configuration.
func Default() Config {
	root, err := os.Getwd()
	if err != nil {
		root = "."
	}
	return Config{
		Addr:              DefaultAddr,
		Root:              root,
		Pattern:           DefaultPattern,
		BackupDir:         filepath.Join(DefaultDir(), "backups"),
		BackupInterval:    DefaultBackupInterval,
		BackupMaxAge:      DefaultBackupMaxAge,
		Watch:             true,
		MaxMessagesPerSec: DefaultMessageRate,
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file: %w", err)
	}
	if len(raw) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.Root == "" {
		return fmt.Errorf("root must not be empty")
	}
	if c.Pattern != "" && !strings.HasPrefix(c.Pattern, ".") {
		return fmt.Errorf("pattern %q must be a file suffix starting with '.'", c.Pattern)
	}
	if c.BackupInterval < 0 {
		return fmt.Errorf("backup_interval must not be negative")
	}
	if c.BackupInterval > 0 && c.BackupDir == "" {
		return fmt.Errorf("backup_dir is required when backups are enabled")
	}
	if c.MaxMessagesPerSec < 0 {
		return fmt.Errorf("max_messages_per_sec must not be negative")
	}
	return nil
}
