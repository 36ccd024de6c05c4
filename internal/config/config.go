package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Encryption EncryptionConfig `yaml:"encryption"`
	Generation GenerationConfig `yaml:"generation"`
	Inbox      InboxConfig      `yaml:"inbox"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds HTTP server settings. SecureCookies defaults to true
// and should stay on unless the server is reached over plain HTTP with no
// TLS-terminating proxy in front.
type ServerConfig struct {
	Port          int    `yaml:"port"`
	BasePath      string `yaml:"base_path"`
	SecureCookies bool   `yaml:"secure_cookies"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// EncryptionConfig holds the key used to encrypt stored credentials.
type EncryptionConfig struct {
	Key string `yaml:"key"`
}

// GenerationConfig holds generative service settings.
type GenerationConfig struct {
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// InboxConfig holds the optional import drop-directory settings.
// When Path is empty the inbox watcher is disabled.
type InboxConfig struct {
	Path       string `yaml:"path"`
	OwnerEmail string `yaml:"owner_email"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	FilePath string `yaml:"file_path"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          8080,
			BasePath:      "",
			SecureCookies: true,
		},
		Database: DatabaseConfig{
			Path: "/data/songsmith.db",
		},
		Generation: GenerationConfig{
			Model:   "gemini-2.0-flash",
			BaseURL: "https://generativelanguage.googleapis.com/v1beta",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("SS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("SS_BASE_PATH"); v != "" {
		c.Server.BasePath = v
	}
	if v := os.Getenv("SS_SECURE_COOKIES"); v != "" {
		if secure, err := strconv.ParseBool(v); err == nil {
			c.Server.SecureCookies = secure
		}
	}
	if v := os.Getenv("SS_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("SS_ENCRYPTION_KEY"); v != "" {
		c.Encryption.Key = v
	}
	if v := os.Getenv("SS_MODEL"); v != "" {
		c.Generation.Model = v
	}
	if v := os.Getenv("SS_GENERATION_BASE_URL"); v != "" {
		c.Generation.BaseURL = v
	}
	if v := os.Getenv("SS_INBOX_PATH"); v != "" {
		c.Inbox.Path = v
	}
	if v := os.Getenv("SS_INBOX_OWNER"); v != "" {
		c.Inbox.OwnerEmail = v
	}
	if v := os.Getenv("SS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SS_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("SS_LOG_FILE"); v != "" {
		c.Logging.FilePath = v
	}
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Generation.Model == "" {
		return fmt.Errorf("generation model is required")
	}
	if c.Inbox.Path != "" && c.Inbox.OwnerEmail == "" {
		return fmt.Errorf("inbox.owner_email is required when inbox.path is set")
	}
	c.Server.BasePath = strings.TrimRight(c.Server.BasePath, "/")
	return nil
}
