package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SocketPath == "" || cfg.StateFile == "" || cfg.KeyDir == "" {
		t.Errorf("paths must default: %+v", cfg)
	}
	if cfg.ConnectTimeout != 15*time.Second {
		t.Errorf("ConnectTimeout = %s", cfg.ConnectTimeout)
	}
	if cfg.DeployTimeout != 10*time.Minute {
		t.Errorf("DeployTimeout = %s", cfg.DeployTimeout)
	}
	if cfg.PollInterval != 30*time.Second || cfg.PollLogLines != 50 {
		t.Errorf("poll defaults = %s / %d", cfg.PollInterval, cfg.PollLogLines)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("log defaults = %s / %s", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "helmsman.yaml")
	content := "socket_path: /tmp/custom.sock\nlog_level: debug\npoll_interval: 5s\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SocketPath != "/tmp/custom.sock" {
		t.Errorf("SocketPath = %s", cfg.SocketPath)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s", cfg.LogLevel)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %s", cfg.PollInterval)
	}
	// Untouched keys keep their defaults.
	if cfg.CommandTimeout != 60*time.Second {
		t.Errorf("CommandTimeout = %s", cfg.CommandTimeout)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HELMSMAN_LOG_FORMAT", "json")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %s, want json from env", cfg.LogFormat)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("an explicitly named missing config file must error")
	}
}
