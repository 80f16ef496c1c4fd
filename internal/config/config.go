package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const fileName = "arv.yml"

// Config models arv.yml: credentials for the two external APIs plus
// service defaults.
type Config struct {
	Directory struct {
		BaseURL  string `yaml:"base_url"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"directory"`
	GitLab struct {
		BaseURL string `yaml:"base_url"`
		Token   string `yaml:"token"`
	} `yaml:"gitlab"`
	HTTP struct {
		TimeoutSeconds int `yaml:"timeout_seconds"`
	} `yaml:"http"`
	Defaults struct {
		Frequency string `yaml:"frequency"`
	} `yaml:"defaults"`
	Server struct {
		JWTSecret string `yaml:"jwt_secret"`
		DevToken  string `yaml:"dev_token"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Default returns a config with workable defaults and no credentials.
func Default() *Config {
	c := &Config{}
	c.HTTP.TimeoutSeconds = 10
	c.Defaults.Frequency = "quarterly"
	c.Log.Level = "info"
	return c
}

// Path returns the config file path for the workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, fileName)
}

// Load reads and validates config from workspace. A missing file yields
// the defaults so that offline commands keep working.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("config.http.timeout_seconds must be positive")
	}
	if c.Defaults.Frequency == "" {
		return fmt.Errorf("config.defaults.frequency is required")
	}
	if c.Directory.BaseURL != "" {
		if _, err := url.Parse(c.Directory.BaseURL); err != nil {
			return fmt.Errorf("config.directory.base_url: %w", err)
		}
		if c.Directory.Username == "" || c.Directory.Password == "" {
			return fmt.Errorf("config.directory requires username and password")
		}
	}
	if c.GitLab.BaseURL != "" {
		if _, err := url.Parse(c.GitLab.BaseURL); err != nil {
			return fmt.Errorf("config.gitlab.base_url: %w", err)
		}
		if c.GitLab.Token == "" {
			return fmt.Errorf("config.gitlab requires token")
		}
	}
	return nil
}

// Timeout returns the per-request HTTP timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
