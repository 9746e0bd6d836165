package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nholik/uptime-sentinel/internal/history"
	"github.com/nholik/uptime-sentinel/internal/logging"
	"github.com/nholik/uptime-sentinel/internal/probe"
)

const (
	envConfigFile   = "UPTIME_CONFIG_FILE"
	envTargetURL    = "UPTIME_TARGET_URL"
	envPollInterval = "UPTIME_POLL_INTERVAL"
	envProbeTimeout = "UPTIME_PROBE_TIMEOUT"
	envRetainWindow = "UPTIME_RETAIN_WINDOW"
	envDataFile     = "UPTIME_DATA_FILE"
	envListenAddr   = "UPTIME_LISTEN_ADDR"
	envLogLevel     = "UPTIME_LOG_LEVEL"
	envRateLimit    = "UPTIME_RATE_LIMIT"
	envRateBurst    = "UPTIME_RATE_BURST"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultDataFile     = "data.json"
	defaultListenAddr   = "0.0.0.0:5000"
	defaultLogLevel     = "info"
	defaultRateLimit    = 20
	defaultRateBurst    = 40
)

// Config describes runtime configuration.
type Config struct {
	TargetURL    string
	PollInterval time.Duration
	ProbeTimeout time.Duration
	RetainWindow time.Duration
	DataFile     string
	ListenAddr   string
	LogLevel     string
	// RateLimit is the sustained requests per second allowed on the HTTP
	// surface; zero disables limiting.
	RateLimit float64
	RateBurst int
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		TargetURL:    probe.DefaultTargetURL,
		PollInterval: defaultPollInterval,
		ProbeTimeout: probe.DefaultTimeout,
		RetainWindow: history.DefaultRetainWindow,
		DataFile:     defaultDataFile,
		ListenAddr:   defaultListenAddr,
		LogLevel:     defaultLogLevel,
		RateLimit:    defaultRateLimit,
		RateBurst:    defaultRateBurst,
	}
}

// Load builds configuration from defaults, an optional YAML file, a local
// .env file if present, and environment variables, in increasing precedence.
// Existing environment variables take precedence over values in .env.
// When path is empty, UPTIME_CONFIG_FILE names the YAML file.
func Load(path string) (Config, error) {
	if err := loadDotEnvIfPresent(".env"); err != nil {
		return Config{}, err
	}

	cfg := Default()

	if path == "" {
		path, _ = lookupTrimmed(envConfigFile)
	}
	if path != "" {
		file, err := LoadFile(path)
		if err != nil {
			return Config{}, err
		}
		file.apply(&cfg)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if value, ok := lookupTrimmed(envTargetURL); ok {
		cfg.TargetURL = value
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{envPollInterval, &cfg.PollInterval},
		{envProbeTimeout, &cfg.ProbeTimeout},
		{envRetainWindow, &cfg.RetainWindow},
	}
	for _, d := range durations {
		value, ok := lookupTrimmed(d.key)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	if value, ok := lookupTrimmed(envDataFile); ok {
		cfg.DataFile = value
	}

	if value, ok := lookupTrimmed(envListenAddr); ok {
		cfg.ListenAddr = value
	}

	if value, ok := lookupTrimmed(envLogLevel); ok {
		cfg.LogLevel = value
	}

	if value, ok := lookupTrimmed(envRateLimit); ok {
		limit, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", envRateLimit, err)
		}
		cfg.RateLimit = limit
	}

	if value, ok := lookupTrimmed(envRateBurst); ok {
		burst, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", envRateBurst, err)
		}
		cfg.RateBurst = burst
	}

	return nil
}

// Validate checks that every setting is usable.
func (c Config) Validate() error {
	if c.PollInterval <= 0 {
		return errors.New("poll interval must be greater than zero")
	}
	if c.ProbeTimeout <= 0 {
		return errors.New("probe timeout must be greater than zero")
	}
	if c.RetainWindow < time.Second {
		return errors.New("retain window must be at least one second")
	}
	if err := validateURL(c.TargetURL, "target url"); err != nil {
		return err
	}
	if strings.TrimSpace(c.DataFile) == "" {
		return errors.New("data file must not be empty")
	}
	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}
	if !logging.ValidLevel(c.LogLevel) {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	if c.RateLimit < 0 {
		return errors.New("rate limit cannot be negative")
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return errors.New("rate burst must be at least 1 when rate limiting is enabled")
	}
	return nil
}

func lookupTrimmed(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func loadDotEnvIfPresent(path string) error {
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrNotExist) {
		return nil
	}

	return err
}

func validateURL(value, name string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid %s: scheme must be http or https", name)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid %s: must include host", name)
	}
	return nil
}
