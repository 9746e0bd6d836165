package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the YAML configuration layout. Unset fields keep their defaults.
type File struct {
	TargetURL    string        `yaml:"target_url"`
	PollInterval time.Duration `yaml:"poll_interval"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	RetainWindow time.Duration `yaml:"retain_window"`
	DataFile     string        `yaml:"data_file"`
	ListenAddr   string        `yaml:"listen_addr"`
	LogLevel     string        `yaml:"log_level"`
	RateLimit    *float64      `yaml:"rate_limit"`
	RateBurst    int           `yaml:"rate_burst"`
}

// LoadFile parses a YAML configuration file from the given path.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read config file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse config file: %w", err)
	}

	if f.PollInterval < 0 || f.ProbeTimeout < 0 || f.RetainWindow < 0 {
		return File{}, fmt.Errorf("config file %s: durations cannot be negative", path)
	}

	return f, nil
}

func (f File) apply(cfg *Config) {
	if f.TargetURL != "" {
		cfg.TargetURL = f.TargetURL
	}
	if f.PollInterval > 0 {
		cfg.PollInterval = f.PollInterval
	}
	if f.ProbeTimeout > 0 {
		cfg.ProbeTimeout = f.ProbeTimeout
	}
	if f.RetainWindow > 0 {
		cfg.RetainWindow = f.RetainWindow
	}
	if f.DataFile != "" {
		cfg.DataFile = f.DataFile
	}
	if f.ListenAddr != "" {
		cfg.ListenAddr = f.ListenAddr
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if f.RateLimit != nil {
		cfg.RateLimit = *f.RateLimit
	}
	if f.RateBurst != 0 {
		cfg.RateBurst = f.RateBurst
	}
}
