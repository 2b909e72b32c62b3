package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/mugenyume/mugenblock/control"
	"github.com/mugenyume/mugenblock/live"
)

// PageConfig is one page to defend.
type PageConfig struct {
	URL string `yaml:"url"`
	// Mode overrides the stored per-site mode: off, standard, aggressive.
	Mode string `yaml:"mode"`
}

// AppConfig is the mugenblock.yaml file shape.
type AppConfig struct {
	LogLevel string `yaml:"log_level"`

	// DataDir holds the SQLite stores. Default "./data".
	DataDir string `yaml:"data_dir"`

	// RulesFile points to an optional extra rule file merged into the
	// built-in selector rules.
	RulesFile string `yaml:"rules_file"`

	Browser live.BrowserConfig `yaml:"browser"`

	Control struct {
		Enabled        bool `yaml:"enabled"`
		control.Config `yaml:",inline"`
	} `yaml:"control"`

	MCP struct {
		// Transport: "" (disabled) or "stdio".
		Transport string `yaml:"transport"`
	} `yaml:"mcp"`

	Retention struct {
		EventLogsDays int `yaml:"event_logs_days"`
		MetricsDays   int `yaml:"metrics_days"`
	} `yaml:"retention"`

	Pages []PageConfig `yaml:"pages"`
}

func (c *AppConfig) defaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.Retention.EventLogsDays == 0 {
		c.Retention.EventLogsDays = 30
	}
	if c.Retention.MetricsDays == 0 {
		c.Retention.MetricsDays = 7
	}
}

func (c *AppConfig) settingsPath() string {
	return filepath.Join(c.DataDir, "settings.db")
}

func (c *AppConfig) observabilityPath() string {
	return filepath.Join(c.DataDir, "observability.db")
}

func loadConfig(path string) (*AppConfig, error) {
	cfg := &AppConfig{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.defaults()
	return cfg, nil
}
