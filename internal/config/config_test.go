package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "legato.toml")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Port != "8080" || cfg.Database.Path != "./legato.db" {
		t.Errorf("Expected defaults, got %+v", cfg.Server)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected default file to be written: %v", err)
	}
	if !strings.HasPrefix(string(data), "# Legato") {
		t.Error("Expected header comment in the default file")
	}

	reloaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Reloading defaults failed: %v", err)
	}
	if reloaded.CoverArt.Cooldown != "24h" || len(reloaded.Inbox.SupportedFormats) != 5 {
		t.Errorf("Defaults did not survive a round trip: %+v", reloaded)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legato.toml")
	content := `
[server]
port = "9090"
host = "127.0.0.1"

[inbox]
path = "/srv/inbox"
delete_after_import = true

[queue]
loop = true

[cover_art]
cooldown = "30m"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.GetAddress() != "127.0.0.1:9090" {
		t.Errorf("Unexpected address %s", cfg.GetAddress())
	}
	if !cfg.Inbox.DeleteAfterImport || cfg.Inbox.Path != "/srv/inbox" {
		t.Errorf("Unexpected inbox config %+v", cfg.Inbox)
	}
	if !cfg.Queue.Loop {
		t.Error("Expected queue loop enabled")
	}
	if d, _ := cfg.CoverArtCooldown(); d != 30*time.Minute {
		t.Errorf("Expected 30m cooldown, got %v", d)
	}
	// untouched sections keep their defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("Expected default log level, got %s", cfg.Logging.Level)
	}
}

func TestLoadConfigRejectsBadToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legato.toml")
	if err := os.WriteFile(path, []byte("[server\nport ="), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LEGATO_PORT", "7000")
	t.Setenv("LEGATO_DB_PATH", "/tmp/other.db")
	t.Setenv("LEGATO_LOG_LEVEL", "DEBUG")
	t.Setenv("LEGATO_COVER_ART", "false")

	cfg := DefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Server.Port != "7000" || cfg.Database.Path != "/tmp/other.db" {
		t.Errorf("Overrides not applied: %+v %+v", cfg.Server, cfg.Database)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected lower-cased level, got %s", cfg.Logging.Level)
	}
	if cfg.CoverArt.Enabled {
		t.Error("Expected cover art disabled")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"empty port", func(c *Config) { c.Server.Port = "" }, true},
		{"non-numeric port", func(c *Config) { c.Server.Port = "http" }, true},
		{"no connections", func(c *Config) { c.Database.MaxConnections = 0 }, true},
		{"no payload dir", func(c *Config) { c.Storage.PayloadDir = "" }, true},
		{"no formats", func(c *Config) { c.Inbox.SupportedFormats = nil }, true},
		{"format without dot", func(c *Config) { c.Inbox.SupportedFormats = []string{"mp3"} }, true},
		{"bad cooldown", func(c *Config) { c.CoverArt.Cooldown = "soon" }, true},
		{"bad cooldown ignored when disabled", func(c *Config) {
			c.CoverArt.Enabled = false
			c.CoverArt.Cooldown = "soon"
		}, false},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, true},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsFormatSupported(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.IsFormatSupported(".MP3") || cfg.IsFormatSupported(".txt") {
		t.Error("Unexpected format support result")
	}
}
