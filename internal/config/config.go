// Package config loads daemon configuration with viper: a helmsman.yaml
// config file, HELMSMAN_* environment overrides, and sensible defaults for
// everything.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the daemon's full configuration.
type Config struct {
	SocketPath string `mapstructure:"socket_path"`
	StateFile  string `mapstructure:"state_file"`
	KeyDir     string `mapstructure:"key_dir"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`

	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	DeployTimeout  time.Duration `mapstructure:"deploy_timeout"`

	PollInterval time.Duration `mapstructure:"poll_interval"`
	PollLogLines int           `mapstructure:"poll_log_lines"`
}

// Load reads configuration from path (or the default search locations when
// path is empty), applies env overrides, and fills defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("helmsman")
	v.SetConfigType("yaml")

	base := stateDir()
	v.SetDefault("socket_path", filepath.Join(base, "helmsman.sock"))
	v.SetDefault("state_file", filepath.Join(base, "state.json"))
	v.SetDefault("key_dir", filepath.Join(base, "keys"))
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("log_file", "")
	v.SetDefault("connect_timeout", 15*time.Second)
	v.SetDefault("command_timeout", 60*time.Second)
	v.SetDefault("deploy_timeout", 10*time.Minute)
	v.SetDefault("poll_interval", 30*time.Second)
	v.SetDefault("poll_log_lines", 50)

	v.SetEnvPrefix("HELMSMAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.AddConfigPath(base)
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			// No config file is fine; defaults and env carry the day.
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// stateDir returns the per-user base directory for daemon state.
func stateDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".helmsman")
	}
	return "/var/lib/helmsman"
}
