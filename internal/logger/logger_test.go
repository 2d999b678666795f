package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetupFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	log, closer, err := Setup(Options{Level: "info", Format: "json", File: path})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if closer == nil {
		t.Fatal("file output must return a closer")
	}

	log.Info("hello", "k", "v")
	closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Errorf("log output = %s", data)
	}
}

func TestSetupLevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	log, closer, err := Setup(Options{Level: "warn", File: path})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	log.Info("quiet")
	log.Warn("loud")
	closer.Close()

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "quiet") {
		t.Error("info must be filtered at warn level")
	}
	if !strings.Contains(string(data), "loud") {
		t.Error("warn must pass at warn level")
	}
}
