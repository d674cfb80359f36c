// Package config handles YAML configuration parsing and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// HoursPerDay is the required length of an hourly profile.
const HoursPerDay = 24

// HourlyProfile maps hour-of-day (0-23) to the target number of admitted
// visitors for that hour. Immutable after load.
type HourlyProfile []int

// Target returns the visitor target for the given hour.
func (p HourlyProfile) Target(hour int) int {
	return p[hour]
}

// Validate checks the profile shape. An invalid profile is a fatal
// startup error; the process must not begin ticking with one.
func (p HourlyProfile) Validate() error {
	if len(p) != HoursPerDay {
		return fmt.Errorf("hourly profile must have exactly %d entries, got %d", HoursPerDay, len(p))
	}
	for h, v := range p {
		if v < 0 {
			return fmt.Errorf("hourly profile entry for hour %d is negative: %d", h, v)
		}
	}
	return nil
}

// Config is the root configuration structure.
type Config struct {
	HourlyProfile HourlyProfile `yaml:"hourlyProfile"`
	Catalog       string        `yaml:"catalog"`
	Queue         QueueConfig   `yaml:"queue,omitempty"`
	Runner        RunnerConfig  `yaml:"runner,omitempty"`
	Sink          SinkConfig    `yaml:"sink,omitempty"`
	Status        StatusConfig  `yaml:"status,omitempty"`
	Log           LogConfig     `yaml:"log,omitempty"`
}

// QueueConfig controls the admission queue.
type QueueConfig struct {
	Concurrency    int           `yaml:"concurrency"`
	Buffer         int           `yaml:"buffer"`
	StartJitterMax time.Duration `yaml:"startJitterMax"`
}

// RunnerConfig controls journey execution timing.
type RunnerConfig struct {
	MinEventDelay time.Duration `yaml:"minEventDelay"`
	MaxEventDelay time.Duration `yaml:"maxEventDelay"`
}

// SinkConfig configures the OpenPanel event sink.
type SinkConfig struct {
	APIURL       string `yaml:"apiUrl"`
	ClientID     string `yaml:"clientId"`
	ClientSecret string `yaml:"clientSecret"`
	Origin       string `yaml:"origin"`
	RPS          int    `yaml:"rps"` // outbound request rate limit, 0 = unlimited
}

// StatusConfig configures the status HTTP server.
type StatusConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// Default returns a configuration matching the built-in day curve: quiet
// nights, a morning ramp and a lunch peak around hour 12.
func Default() *Config {
	const m = 10
	return &Config{
		HourlyProfile: HourlyProfile{
			m * 20, m * 10, m * 10, m * 10, m * 10, m * 20,
			m * 30, m * 50, m * 80, m * 120, m * 150, m * 180,
			m * 200, m * 160, m * 140, m * 160, m * 180, m * 150,
			m * 120, m * 100, m * 80, m * 60, m * 40, m * 30,
		},
		Catalog: "sessions.json",
		Queue: QueueConfig{
			Concurrency:    10,
			Buffer:         256,
			StartJitterMax: 30 * time.Second,
		},
		Runner: RunnerConfig{
			MinEventDelay: 200 * time.Millisecond,
			MaxEventDelay: 6 * time.Second,
		},
		Sink: SinkConfig{
			APIURL: "https://api.openpanel.dev",
			Origin: "https://nike.com",
		},
		Status: StatusConfig{
			Addr: ":3000",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a YAML configuration file on top of the defaults, applies
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides config fields from the environment.
func (c *Config) applyEnv() error {
	if v := os.Getenv("OPENPANEL_CLIENT_ID"); v != "" {
		c.Sink.ClientID = v
	}
	if v := os.Getenv("OPENPANEL_CLIENT_SECRET"); v != "" {
		c.Sink.ClientSecret = v
	}
	if v := os.Getenv("OPENPANEL_API_URL"); v != "" {
		c.Sink.APIURL = v
	}
	if v := os.Getenv("MOCK_HOURLY_PROFILE"); v != "" {
		profile, err := ParseProfile(v)
		if err != nil {
			return fmt.Errorf("MOCK_HOURLY_PROFILE: %w", err)
		}
		c.HourlyProfile = profile
	}
	return nil
}

// ParseProfile parses a comma-separated list of 24 integers.
func ParseProfile(s string) (HourlyProfile, error) {
	parts := strings.Split(s, ",")
	profile := make(HourlyProfile, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("parsing hourly profile entry %q: %w", part, err)
		}
		profile = append(profile, n)
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return profile, nil
}

// Validate checks the whole configuration for startup-fatal errors.
func (c *Config) Validate() error {
	if err := c.HourlyProfile.Validate(); err != nil {
		return err
	}
	if c.Catalog == "" {
		return fmt.Errorf("catalog path is required")
	}
	if c.Queue.Concurrency < 1 {
		return fmt.Errorf("queue concurrency must be >= 1, got %d", c.Queue.Concurrency)
	}
	if c.Queue.Buffer < 1 {
		return fmt.Errorf("queue buffer must be >= 1, got %d", c.Queue.Buffer)
	}
	if c.Queue.StartJitterMax < 0 {
		return fmt.Errorf("queue startJitterMax must not be negative")
	}
	if c.Runner.MinEventDelay < 0 || c.Runner.MaxEventDelay < c.Runner.MinEventDelay {
		return fmt.Errorf("runner event delay range [%v, %v] is invalid",
			c.Runner.MinEventDelay, c.Runner.MaxEventDelay)
	}
	if c.Sink.APIURL == "" {
		return fmt.Errorf("sink apiUrl is required")
	}
	return nil
}
