package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Storage  StorageConfig  `toml:"storage"`
	Library  LibraryConfig  `toml:"library"`
	Inbox    InboxConfig    `toml:"inbox"`
	Queue    QueueConfig    `toml:"queue"`
	CoverArt CoverArtConfig `toml:"cover_art"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Port        string `toml:"port"`
	Host        string `toml:"host"`
	StaticDir   string `toml:"static_dir"`
	EnableCORS  bool   `toml:"enable_cors"`
	ReadTimeout int    `toml:"read_timeout_seconds"`
}

// DatabaseConfig contains database-related configuration
type DatabaseConfig struct {
	Path           string `toml:"path"`
	MaxConnections int    `toml:"max_connections"`
}

// StorageConfig locates the song payload files
type StorageConfig struct {
	PayloadDir string `toml:"payload_dir"`
}

// LibraryConfig controls how the library orders names
type LibraryConfig struct {
	Locale string `toml:"locale"`
}

// InboxConfig describes the directory new audio files are imported from
type InboxConfig struct {
	Path              string   `toml:"path"`
	SupportedFormats  []string `toml:"supported_formats"`
	WatchForChanges   bool     `toml:"watch_for_changes"`
	ScanOnStartup     bool     `toml:"scan_on_startup"`
	DeleteAfterImport bool     `toml:"delete_after_import"`
}

// QueueConfig holds the initial playback queue settings
type QueueConfig struct {
	Loop             bool `toml:"loop"`
	ShuffleOnEnqueue bool `toml:"shuffle_on_enqueue"`
}

// CoverArtConfig configures album art lookups
type CoverArtConfig struct {
	Enabled        bool   `toml:"enabled"`
	BaseURL        string `toml:"base_url"`
	ArchiveURL     string `toml:"archive_url"`
	UserAgent      string `toml:"user_agent"`
	Cooldown       string `toml:"cooldown"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level          string `toml:"level"`
	Format         string `toml:"format"`
	File           string `toml:"file"`
	RequestLogging bool   `toml:"request_logging"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			Host:        "0.0.0.0",
			StaticDir:   "./static",
			EnableCORS:  true,
			ReadTimeout: 30,
		},
		Database: DatabaseConfig{
			Path:           "./legato.db",
			MaxConnections: 5,
		},
		Storage: StorageConfig{
			PayloadDir: "./payloads",
		},
		Library: LibraryConfig{
			Locale: "en",
		},
		Inbox: InboxConfig{
			Path:              "./inbox",
			SupportedFormats:  []string{".flac", ".mp3", ".wav", ".m4a", ".ogg"},
			WatchForChanges:   true,
			ScanOnStartup:     true,
			DeleteAfterImport: false,
		},
		Queue: QueueConfig{},
		CoverArt: CoverArtConfig{
			Enabled:        true,
			BaseURL:        "https://musicbrainz.org/ws/2",
			ArchiveURL:     "https://coverartarchive.org",
			UserAgent:      "legato/1.0 ( https://github.com/legato-music/legato )",
			Cooldown:       "24h",
			TimeoutSeconds: 10,
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "text",
			File:           "",
			RequestLogging: true,
		},
	}
}

// LoadConfig loads configuration from a TOML file. A missing file is created
// with the defaults. Variables from a .env file and the LEGATO_* environment
// are applied on top of the file.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
		fmt.Printf("Created default configuration file at: %s\n", configPath)
	} else if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// a missing .env is fine
	_ = godotenv.Load()
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("LEGATO_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("LEGATO_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("LEGATO_STATIC_DIR"); v != "" {
		cfg.Server.StaticDir = v
	}

	// Storage
	if v := os.Getenv("LEGATO_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("LEGATO_PAYLOAD_DIR"); v != "" {
		cfg.Storage.PayloadDir = v
	}
	if v := os.Getenv("LEGATO_INBOX"); v != "" {
		cfg.Inbox.Path = v
	}
	if v := os.Getenv("LEGATO_LOCALE"); v != "" {
		cfg.Library.Locale = v
	}

	// Cover art
	if v := os.Getenv("LEGATO_COVER_ART"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.CoverArt.Enabled = b
		}
	}
	if v := os.Getenv("LEGATO_COVER_ART_COOLDOWN"); v != "" {
		cfg.CoverArt.Cooldown = v
	}

	// Log
	if v := os.Getenv("LEGATO_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LEGATO_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := os.Getenv("LEGATO_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
}

// SaveToFile saves the configuration to a TOML file
func (c *Config) SaveToFile(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	header := `# Legato Music Library Configuration
# Every value can also be overridden through LEGATO_* environment variables
# or a .env file in the working directory.

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("server port must be numeric: %s", c.Server.Port)
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}
	if c.Storage.PayloadDir == "" {
		return fmt.Errorf("payload directory cannot be empty")
	}

	if c.Inbox.Path == "" {
		return fmt.Errorf("inbox path cannot be empty")
	}
	if len(c.Inbox.SupportedFormats) == 0 {
		return fmt.Errorf("at least one supported audio format must be specified")
	}
	for _, f := range c.Inbox.SupportedFormats {
		if !strings.HasPrefix(f, ".") {
			return fmt.Errorf("supported format must start with a dot: %s", f)
		}
	}

	if c.CoverArt.Enabled {
		if _, err := c.CoverArtCooldown(); err != nil {
			return err
		}
		if c.CoverArt.TimeoutSeconds < 0 {
			return fmt.Errorf("cover art timeout must be positive")
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}

// GetAddress returns the full server address
func (c *Config) GetAddress() string {
	return c.Server.Host + ":" + c.Server.Port
}

// IsFormatSupported checks if an audio format is supported
func (c *Config) IsFormatSupported(format string) bool {
	return slices.Contains(c.Inbox.SupportedFormats, strings.ToLower(format))
}

// CoverArtCooldown parses how long cover-art results are remembered. An empty
// value means the client default.
func (c *Config) CoverArtCooldown() (time.Duration, error) {
	if c.CoverArt.Cooldown == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.CoverArt.Cooldown)
	if err != nil {
		return 0, fmt.Errorf("invalid cover art cooldown %q: %w", c.CoverArt.Cooldown, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("cover art cooldown must be positive")
	}
	return d, nil
}

// CoverArtTimeout returns the lookup request timeout
func (c *Config) CoverArtTimeout() time.Duration {
	return time.Duration(c.CoverArt.TimeoutSeconds) * time.Second
}
