// Package config defines the YAML configuration consumed by the usage CLI
// host: application identity, analytics settings, logging, and optional
// OpenTelemetry tracing.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"

	"github.com/telemetrykit/usage/internal/utils"
)

// trackingIDPattern matches property identifiers like "UA-108766680-1".
var trackingIDPattern = regexp.MustCompile(`^UA-\d+-\d+$`)

// Config represents the complete CLI configuration.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Analytics struct {
		TrackingID string `yaml:"trackingId"`
		// Endpoint overrides the collection URL; empty selects the default
		// public endpoint.
		Endpoint string `yaml:"endpoint"`
		// OptIn switches the enablement default: telemetry stays off until
		// the user opts in.
		OptIn bool `yaml:"optIn"`
		// DrainTimeout bounds how long a one-shot command waits for
		// outstanding pings before exiting, in milliseconds.
		DrainTimeoutMillis int `yaml:"drainTimeoutMillis"`
	} `yaml:"analytics"`

	Log struct {
		File string `yaml:"file"`
	} `yaml:"log"`

	OpenTelemetry struct {
		Enabled      bool    `yaml:"enabled"`
		Endpoint     string  `yaml:"endpoint"`
		Insecure     bool    `yaml:"insecure"`
		SamplingRate float64 `yaml:"samplingRate"`
	} `yaml:"opentelemetry"`
}

// SetDefaults sets default values for optional configuration fields.
// This method is called automatically by Validate() before validation.
func (c *Config) SetDefaults() {
	if c.Log.File == "" {
		c.Log.File = "usage.log"
	}
	if c.Analytics.DrainTimeoutMillis == 0 {
		c.Analytics.DrainTimeoutMillis = 500
	}
	if c.OpenTelemetry.Enabled && c.OpenTelemetry.SamplingRate == 0 {
		c.OpenTelemetry.SamplingRate = 1.0
	}
}

// Validate checks the configuration and returns an error describing the
// first failure encountered. Defaults are applied first.
func (c *Config) Validate() error {
	c.SetDefaults()

	if c.App.Name == "" {
		return errors.New("app name is required")
	}
	if c.App.Version == "" {
		return errors.New("app version is required")
	}
	if c.Analytics.TrackingID == "" {
		return errors.New("analytics tracking ID is required")
	}
	if !trackingIDPattern.MatchString(c.Analytics.TrackingID) {
		return fmt.Errorf("invalid tracking ID format: %s (must match UA-XXXX-Y)", c.MaskTrackingID())
	}
	if c.Analytics.Endpoint != "" {
		u, err := url.Parse(c.Analytics.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("invalid analytics endpoint: %s (must be an http or https URL)", c.Analytics.Endpoint)
		}
	}
	if c.Analytics.DrainTimeoutMillis < 0 {
		return fmt.Errorf("invalid drain timeout: %d", c.Analytics.DrainTimeoutMillis)
	}
	if c.OpenTelemetry.Enabled && c.OpenTelemetry.Endpoint == "" {
		return errors.New("opentelemetry endpoint is required when tracing is enabled")
	}
	if c.OpenTelemetry.SamplingRate < 0 || c.OpenTelemetry.SamplingRate > 1 {
		return fmt.Errorf("invalid sampling rate: %f (must be between 0.0 and 1.0)", c.OpenTelemetry.SamplingRate)
	}
	return nil
}

// MaskTrackingID returns the tracking ID with the property number masked,
// safe for inclusion in logs and error messages.
func (c *Config) MaskTrackingID() string {
	id := c.Analytics.TrackingID
	if len(id) <= 6 {
		return "******"
	}
	return id[:3] + "******" + id[len(id)-2:]
}

// Load reads, defaults, and validates the configuration at path.
func Load(path string) (*Config, error) {
	if !utils.FileExists(path) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	var cfg Config
	if err := utils.ReadYAML(&cfg, path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
