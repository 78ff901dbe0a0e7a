package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all application configuration
type Config struct {
	Version int          `toml:"version"`
	Feed    FeedConfig   `toml:"feed"`
	Repost  RepostConfig `toml:"repost"`
	Auto    AutoConfig   `toml:"auto"`
	Report  ReportConfig `toml:"report"`
	Email   EmailConfig  `toml:"email"`
}

type FeedConfig struct {
	PostsPerFetch int  `toml:"posts_per_fetch"`
	Headless      bool `toml:"headless"`
}

type RepostConfig struct {
	MaxAttempts       int  `toml:"max_attempts"`
	BackoffSeconds    int  `toml:"backoff_seconds"`
	MaxBackoffSeconds int  `toml:"max_backoff_seconds"`
	CreditOriginal    bool `toml:"credit_original"`
	CleanupMedia      bool `toml:"cleanup_media"`
}

type AutoConfig struct {
	Enabled         bool   `toml:"enabled"`
	IntervalMinutes int    `toml:"interval_minutes"`
	Timezone        string `toml:"timezone"`
}

type ReportConfig struct {
	MaxJobs int `toml:"max_jobs"`
}

type EmailConfig struct {
	Enabled  bool   `toml:"enabled"`
	Provider string `toml:"provider"`
	SMTPHost string `toml:"smtp_host"`
	SMTPPort int    `toml:"smtp_port"`
	SMTPUser string `toml:"smtp_user"`
	SMTPPass string `toml:"smtp_pass"`
	FromAddr string `toml:"from_address"`
	ToAddr   string `toml:"to_address"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Feed: FeedConfig{
			PostsPerFetch: 24,
			Headless:      true,
		},
		Repost: RepostConfig{
			MaxAttempts:       3,
			BackoffSeconds:    30,
			MaxBackoffSeconds: 300,
			CreditOriginal:    true,
			CleanupMedia:      true,
		},
		Auto: AutoConfig{
			Enabled:         false,
			IntervalMinutes: 15,
			Timezone:        "Local",
		},
		Report: ReportConfig{
			MaxJobs: 50,
		},
		Email: EmailConfig{
			Provider: "smtp",
			SMTPPort: 587,
		},
	}
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "reposter"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the platform-appropriate cache directory. Downloaded
// media and activity reports live under here.
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "reposter"), nil
}

// DataDir returns the directory holding the SQLite database.
func DataDir() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "data"), nil
}

// Load reads config from the default location
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads config from an explicit path
func LoadFrom(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the default location
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes config to an explicit path
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
