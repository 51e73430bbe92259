// Package config holds the settings shared by the motiongraph tools and the
// playground.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/milk9111/motiongraph/motion"
)

type Config struct {
	// TickRate is the fixed simulation rate in ticks per second.
	TickRate int `yaml:"tick_rate"`
	// GraphDir is searched before the embedded definitions.
	GraphDir string `yaml:"graph_dir"`
	// Graph is the definition the playground and run command use.
	Graph        string `yaml:"graph"`
	SideChannels string `yaml:"side_channels"`
	HotReload    bool   `yaml:"hot_reload"`

	Log  LogConfig  `yaml:"log"`
	Save SaveConfig `yaml:"save"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type SaveConfig struct {
	// Backend is "sqlite" or "file".
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

func DefaultConfig() *Config {
	return &Config{
		TickRate:     60,
		GraphDir:     "graphs/defs",
		Graph:        "locomotion",
		SideChannels: "default",
		HotReload:    true,
		Log: LogConfig{
			Level: "info",
		},
		Save: SaveConfig{
			Backend: "sqlite",
			Path:    "saves.db",
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
// Environment variables override both.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) Validate() error {
	if c.TickRate <= 0 || c.TickRate > 1000 {
		return fmt.Errorf("config: tick_rate must be in 1..1000, got %d", c.TickRate)
	}
	if _, err := motion.ParseSideChannelPolicy(c.SideChannels); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Save.Backend {
	case "sqlite", "file":
	default:
		return fmt.Errorf("config: unknown save backend %q", c.Save.Backend)
	}
	return nil
}

// TickDuration is the fixed step in seconds.
func (c *Config) TickDuration() float64 {
	return 1 / float64(c.TickRate)
}

// Policy returns the parsed side channel policy.
func (c *Config) Policy() motion.SideChannelPolicy {
	p, _ := motion.ParseSideChannelPolicy(c.SideChannels)
	return p
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("MOTIONGRAPH_TICK_RATE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: MOTIONGRAPH_TICK_RATE: %w", err)
		}
		c.TickRate = n
	}
	if v := os.Getenv("MOTIONGRAPH_GRAPH_DIR"); v != "" {
		c.GraphDir = v
	}
	if v := os.Getenv("MOTIONGRAPH_GRAPH"); v != "" {
		c.Graph = v
	}
	if v := os.Getenv("MOTIONGRAPH_SIDE_CHANNELS"); v != "" {
		c.SideChannels = v
	}
	if v := os.Getenv("MOTIONGRAPH_HOT_RELOAD"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: MOTIONGRAPH_HOT_RELOAD: %w", err)
		}
		c.HotReload = b
	}
	if v := os.Getenv("MOTIONGRAPH_LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("MOTIONGRAPH_SAVE_BACKEND"); v != "" {
		c.Save.Backend = v
	}
	if v := os.Getenv("MOTIONGRAPH_SAVE_PATH"); v != "" {
		c.Save.Path = v
	}
	return nil
}
