// Package config reads the global ~/.wahook/config.toml.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Webhook configures the external sink endpoints.
type Webhook struct {
	BaseURL        string `toml:"base_url"`
	MessagePath    string `toml:"message_path"`
	ReceiptPath    string `toml:"receipt_path"`
	PresencePath   string `toml:"presence_path"`
	MediaPath      string `toml:"media_path"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Config is the daemon configuration.
type Config struct {
	DefaultSession        string  `toml:"default_session"`
	MediaDir              string  `toml:"media_dir"`
	ReconnectDelaySeconds int     `toml:"reconnect_delay_seconds"`
	Webhook               Webhook `toml:"webhook"`
}

// Default returns the built-in configuration, matching the sink's
// conventional local address.
func Default() *Config {
	return &Config{
		DefaultSession:        "main",
		ReconnectDelaySeconds: 3,
		Webhook: Webhook{
			BaseURL:        "http://localhost:3002",
			MessagePath:    "/webhook/message",
			ReceiptPath:    "/webhook/receipt",
			PresencePath:   "/webhook/presence",
			MediaPath:      "/webhook/media",
			TimeoutSeconds: 10,
		},
	}
}

// Load reads config from path, filling unset fields with defaults.
// A missing file yields the defaults without error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if cfg.ReconnectDelaySeconds <= 0 {
		cfg.ReconnectDelaySeconds = 3
	}
	if cfg.Webhook.TimeoutSeconds <= 0 {
		cfg.Webhook.TimeoutSeconds = 10
	}
	return cfg, nil
}

// Save writes cfg to path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// ReconnectDelay returns the reconnect delay as a duration.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelaySeconds) * time.Second
}

// WebhookTimeout returns the sink call timeout as a duration.
func (c *Config) WebhookTimeout() time.Duration {
	return time.Duration(c.Webhook.TimeoutSeconds) * time.Second
}

// EndpointURL joins the sink base URL with a path.
func (c *Config) EndpointURL(p string) string {
	return c.Webhook.BaseURL + p
}
