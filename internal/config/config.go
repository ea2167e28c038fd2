package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Client    ClientConfig    `yaml:"client"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Stream    StreamConfig    `yaml:"stream"`
}

type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// ClientConfig carries the options forwarded to the external WhatsApp
// client. ClientID names the persisted session; BrowserPath points at an
// external browser executable when the default bundled one is unusable.
type ClientConfig struct {
	Headless    bool   `yaml:"headless"`
	ClientID    string `yaml:"client_id"`
	BrowserPath string `yaml:"browser_path"`
	BridgeURL   string `yaml:"bridge_url"`
}

type DashboardConfig struct {
	MaxChats int `yaml:"max_chats"`
}

type StreamConfig struct {
	KeepAliveInterval time.Duration `yaml:"keep_alive_interval"`
	RetryMillis       int           `yaml:"retry_millis"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Client: ClientConfig{
			Headless:  true,
			ClientID:  "dashboard",
			BridgeURL: "ws://127.0.0.1:8765/ws",
		},
		Dashboard: DashboardConfig{
			MaxChats: 25,
		},
		Stream: StreamConfig{
			KeepAliveInterval: 25 * time.Second,
			RetryMillis:       10000,
		},
	}
}

// Load reads the optional YAML file at path (a missing file is not an
// error; defaults apply), then applies environment overrides. Env wins
// over file.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	cfg.applyEnv()

	if cfg.Dashboard.MaxChats < 1 {
		cfg.Dashboard.MaxChats = 25
	}
	if cfg.Stream.KeepAliveInterval <= 0 {
		cfg.Stream.KeepAliveInterval = 25 * time.Second
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.Port = n
		}
	}
	if v := os.Getenv("HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("HEADLESS"); v != "" {
		c.Client.Headless = v != "false" && v != "0"
	}
	if v := os.Getenv("MAX_CHATS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Dashboard.MaxChats = n
		}
	}
	if v := os.Getenv("CLIENT_ID"); v != "" {
		c.Client.ClientID = v
	}
	if v := os.Getenv("CHROME_PATH"); v != "" {
		c.Client.BrowserPath = v
	}
	if v := os.Getenv("BRIDGE_URL"); v != "" {
		c.Client.BridgeURL = v
	}
}
