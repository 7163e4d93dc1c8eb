package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Backend BackendConfig `mapstructure:"backend"`
	Auth    AuthConfig    `mapstructure:"auth"`
	State   StateConfig   `mapstructure:"state"`
	Chat    ChatConfig    `mapstructure:"chat"`
	Log     LogConfig     `mapstructure:"log"`
}

type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	// CallbackAddr is the loopback address the login flow listens on to
	// capture the provider redirect.
	CallbackAddr string `mapstructure:"callback_addr"`
	OpenBrowser  bool   `mapstructure:"open_browser"`
}

type StateConfig struct {
	// Dir holds the persisted session blob. Empty means $HOME/.mailpilot.
	Dir string `mapstructure:"dir"`
}

type ChatConfig struct {
	// HistoryLimit caps how many messages LoadHistory requests.
	HistoryLimit int `mapstructure:"history_limit"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("backend.base_url", "http://localhost:8000")
	v.SetDefault("backend.timeout", 60*time.Second)
	v.SetDefault("auth.callback_addr", "localhost:3000")
	v.SetDefault("auth.open_browser", true)
	v.SetDefault("chat.history_limit", 50)
	v.SetDefault("log.level", "info")

	// Enable environment variable support
	v.SetEnvPrefix("MAILPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read the config file when present. A missing file is fine, the
	// defaults and environment cover everything.
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
					return nil, fmt.Errorf("read config %s: %w", path, err)
				}
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// MAILPILOT_BACKEND_URL wins over the config file, mirroring how the
	// deployment sets the API origin.
	if baseURL := v.GetString("BACKEND_URL"); baseURL != "" {
		config.Backend.BaseURL = baseURL
	}

	if config.State.Dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		config.State.Dir = filepath.Join(home, ".mailpilot")
	}

	return &config, nil
}

// StateFile returns the path of the persisted session blob.
func (c *Config) StateFile() string {
	return filepath.Join(c.State.Dir, "state.json")
}
