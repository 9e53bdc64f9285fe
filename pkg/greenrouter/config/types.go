package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/elevated-systems/green-region-router/pkg/greenrouter/regionmapper"
	"github.com/elevated-systems/green-region-router/pkg/greenrouter/selector"
)

// Config holds all configuration for the region router
type Config struct {
	API           APIConfig           `yaml:"api"`
	Probe         ProbeConfig         `yaml:"probe"`
	Selection     SelectionConfig     `yaml:"selection"`
	Regions       regionmapper.Config `yaml:"regions"`
	Server        ServerConfig        `yaml:"server"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// APIConfig holds configuration for the measurements backend
type APIConfig struct {
	BaseURL     string        `yaml:"baseUrl"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"maxRetries"`
	RetryDelay  time.Duration `yaml:"retryDelay"`
	RateLimit   int           `yaml:"rateLimit"` // requests per second
	CacheTTL    time.Duration `yaml:"cacheTTL"`
	MaxCacheAge time.Duration `yaml:"maxCacheAge"`
}

// ProbeConfig holds configuration for latency probing
type ProbeConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Timeout     time.Duration `yaml:"timeout"`
	Concurrency int           `yaml:"concurrency"`
	URLTemplate string        `yaml:"urlTemplate"` // fmt template with one %s for the region code
}

// SelectionConfig holds configuration for region selection
type SelectionConfig struct {
	DefaultMode         string `yaml:"defaultMode"`
	RegionOverridesPath string `yaml:"regionOverridesPath"`
}

// ServerConfig holds configuration for the HTTP API
type ServerConfig struct {
	Port int `yaml:"port"`
}

// ObservabilityConfig holds configuration for monitoring
type ObservabilityConfig struct {
	MetricsEnabled bool `yaml:"metricsEnabled"`
}

// Validate performs validation of the configuration
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("API base URL is required")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("API timeout must be positive")
	}
	if c.API.MaxRetries < 0 {
		return fmt.Errorf("API max retries must not be negative")
	}
	if c.API.RateLimit <= 0 {
		return fmt.Errorf("API rate limit must be positive")
	}

	if c.Probe.Enabled {
		if err := c.validateProbe(); err != nil {
			return fmt.Errorf("invalid probe config: %v", err)
		}
	}

	if _, ok := selector.ParseTaskMode(c.Selection.DefaultMode); !ok {
		return fmt.Errorf("unknown default task mode %q", c.Selection.DefaultMode)
	}

	if err := validateRegions(c.Regions); err != nil {
		return fmt.Errorf("invalid region config: %v", err)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}

	return nil
}

func (c *Config) validateProbe() error {
	if c.Probe.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.Probe.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if strings.Count(c.Probe.URLTemplate, "%s") != 1 || strings.Count(c.Probe.URLTemplate, "%") != 1 {
		return fmt.Errorf("url template %q must contain exactly one %%s", c.Probe.URLTemplate)
	}
	return nil
}

func validateRegions(regions regionmapper.Config) error {
	if regions.DefaultPUE < 1 {
		return fmt.Errorf("default PUE %.2f must be at least 1", regions.DefaultPUE)
	}
	for i, override := range regions.RegionOverrides {
		if override.Region == "" {
			return fmt.Errorf("override at index %d has no region", i)
		}
		// Zero means "use the default PUE"
		if override.PUE != 0 && override.PUE < 1 {
			return fmt.Errorf("override for %s has PUE %.2f below 1", override.Region, override.PUE)
		}
	}
	return nil
}
