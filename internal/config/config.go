package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port        int `yaml:"port"`
		MetricsPort int `yaml:"metrics_port"`
	} `yaml:"server"`

	Database struct {
		Path          string `yaml:"path"`
		FlushInterval int    `yaml:"flush_interval_seconds"`
	} `yaml:"database"`

	Scheduler struct {
		TickInterval int `yaml:"tick_interval_ms"`
		MaxRetries   int `yaml:"max_retries"`
	} `yaml:"scheduler"`

	Telemetry struct {
		MaxTemperature   float64 `yaml:"max_temperature"`
		MinEfficiencyPct float64 `yaml:"min_efficiency_pct"`
		GraceSeconds     int     `yaml:"grace_seconds"`
		HistorySize      int     `yaml:"history_size"`
	} `yaml:"telemetry"`

	Machines []MachineConfig `yaml:"machines"`
}

// MachineConfig describes one machine of the bootstrap pool.
type MachineConfig struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Type         string   `yaml:"type"`
	Location     string   `yaml:"location"`
	Capabilities []string `yaml:"capabilities"`
}

// Load reads and parses the YAML configuration file, applying defaults for
// unset values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with all defaults and no machine pool.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.MetricsPort == 0 {
		c.Server.MetricsPort = 9090
	}
	if c.Database.FlushInterval == 0 {
		c.Database.FlushInterval = 10
	}
	if c.Scheduler.TickInterval == 0 {
		c.Scheduler.TickInterval = 500
	}
	if c.Scheduler.MaxRetries == 0 {
		c.Scheduler.MaxRetries = 3
	}
	if c.Telemetry.MaxTemperature == 0 {
		c.Telemetry.MaxTemperature = 90
	}
	if c.Telemetry.MinEfficiencyPct == 0 {
		c.Telemetry.MinEfficiencyPct = 40
	}
	if c.Telemetry.GraceSeconds == 0 {
		c.Telemetry.GraceSeconds = 30
	}
	if c.Telemetry.HistorySize == 0 {
		c.Telemetry.HistorySize = 60
	}
}

// TickInterval returns the scheduler tick interval as a duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Scheduler.TickInterval) * time.Millisecond
}

// GraceWindow returns the telemetry grace window as a duration.
func (c *Config) GraceWindow() time.Duration {
	return time.Duration(c.Telemetry.GraceSeconds) * time.Second
}

// FlushInterval returns the persistence flush interval as a duration.
func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.Database.FlushInterval) * time.Second
}
