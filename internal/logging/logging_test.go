package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"legato/internal/config"

	"github.com/sirupsen/logrus"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LoggingConfig
		level   logrus.Level
		json    bool
		wantErr bool
	}{
		{"text", config.LoggingConfig{Level: "info", Format: "text"}, logrus.InfoLevel, false, false},
		{"json", config.LoggingConfig{Level: "debug", Format: "json"}, logrus.DebugLevel, true, false},
		{"bad level", config.LoggingConfig{Level: "loud", Format: "text"}, 0, false, true},
		{"bad format", config.LoggingConfig{Level: "info", Format: "xml"}, 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, closer, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			defer closer.Close()

			if logger.GetLevel() != tt.level {
				t.Errorf("Expected level %v, got %v", tt.level, logger.GetLevel())
			}
			_, isJSON := logger.Formatter.(*logrus.JSONFormatter)
			if isJSON != tt.json {
				t.Errorf("Expected json formatter %v, got %T", tt.json, logger.Formatter)
			}
		})
	}
}

func TestNewWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "legato.log")
	logger, closer, err := New(config.LoggingConfig{Level: "warn", Format: "json", File: path})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("hidden")
	logger.WithField("song_id", 3).Warn("visible")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"song_id":3`) {
		t.Errorf("Unexpected log file contents: %s", out)
	}
}
