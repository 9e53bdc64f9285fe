package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
	"k8s.io/klog/v2"

	"github.com/elevated-systems/green-region-router/pkg/greenrouter/latency"
	"github.com/elevated-systems/green-region-router/pkg/greenrouter/regionmapper"
	"github.com/elevated-systems/green-region-router/pkg/greenrouter/selector"
)

// Option overrides a loaded setting before validation
type Option func(*Config)

// WithServerPort overrides SERVER_PORT. Zero keeps the environment value.
func WithServerPort(port int) Option {
	return func(c *Config) {
		if port != 0 {
			c.Server.Port = port
		}
	}
}

// WithDefaultMode overrides DEFAULT_TASK_MODE. Empty keeps the environment value.
func WithDefaultMode(mode string) Option {
	return func(c *Config) {
		if mode != "" {
			c.Selection.DefaultMode = mode
		}
	}
}

// LoadFromEnv loads configuration from environment variables, applies opts
// and validates the result
func LoadFromEnv(opts ...Option) (*Config, error) {
	cfg := &Config{
		API: APIConfig{
			BaseURL:     getEnvOrDefault("API_BASE_URL", "http://localhost:3000"),
			Timeout:     getDurationOrDefault("API_TIMEOUT", 10*time.Second),
			MaxRetries:  getIntOrDefault("API_MAX_RETRIES", 3),
			RetryDelay:  getDurationOrDefault("API_RETRY_DELAY", 1*time.Second),
			RateLimit:   getIntOrDefault("API_RATE_LIMIT", 10),
			CacheTTL:    getDurationOrDefault("CACHE_TTL", 30*time.Second),
			MaxCacheAge: getDurationOrDefault("MAX_CACHE_AGE", 5*time.Minute),
		},
		Probe: ProbeConfig{
			Enabled:     getBoolOrDefault("PROBE_ENABLED", true),
			Timeout:     getDurationOrDefault("PROBE_TIMEOUT", 5*time.Second),
			Concurrency: getIntOrDefault("PROBE_CONCURRENCY", 4),
			URLTemplate: getEnvOrDefault("PROBE_URL_TEMPLATE", latency.DefaultURLTemplate),
		},
		Selection: SelectionConfig{
			DefaultMode:         getEnvOrDefault("DEFAULT_TASK_MODE", string(selector.ModeGreen)),
			RegionOverridesPath: os.Getenv("REGION_OVERRIDES_PATH"),
		},
		Regions: regionmapper.Config{
			DefaultPUE: getFloatOrDefault("DEFAULT_PUE", regionmapper.DefaultFallbackPUE),
		},
		Server: ServerConfig{
			Port: getIntOrDefault("SERVER_PORT", 8080),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getBoolOrDefault("METRICS_ENABLED", true),
		},
	}

	if path := cfg.Selection.RegionOverridesPath; path != "" {
		if err := loadRegionOverrides(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load region overrides: %v", err)
		}
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %v", err)
	}

	klog.V(2).InfoS("Loaded configuration",
		"apiBaseURL", cfg.API.BaseURL,
		"probeEnabled", cfg.Probe.Enabled,
		"defaultMode", cfg.Selection.DefaultMode,
		"regionOverrides", len(cfg.Regions.RegionOverrides),
		"defaultPUE", cfg.Regions.DefaultPUE)

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if strValue := os.Getenv(key); strValue != "" {
		if value, err := strconv.Atoi(strValue); err == nil {
			return value
		}
		klog.V(2).InfoS("Invalid integer value, using default",
			"key", key,
			"value", strValue,
			"default", defaultValue)
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if strValue := os.Getenv(key); strValue != "" {
		if value, err := strconv.ParseFloat(strValue, 64); err == nil {
			return value
		}
		klog.V(2).InfoS("Invalid float value, using default",
			"key", key,
			"value", strValue,
			"default", defaultValue)
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if strValue := os.Getenv(key); strValue != "" {
		value, err := strconv.ParseBool(strValue)
		if err == nil {
			return value
		}
		klog.V(2).InfoS("Invalid boolean value, using default",
			"key", key,
			"value", strValue,
			"default", defaultValue)
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if strValue := os.Getenv(key); strValue != "" {
		if value, err := time.ParseDuration(strValue); err == nil {
			return value
		}
		klog.V(2).InfoS("Invalid duration value, using default",
			"key", key,
			"value", strValue,
			"default", defaultValue)
	}
	return defaultValue
}

// loadRegionOverrides reads a YAML file of region overrides. A defaultPUE in
// the file wins over DEFAULT_PUE.
func loadRegionOverrides(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read region overrides file: %v", err)
	}

	regions := &regionmapper.Config{}
	if err := yaml.Unmarshal(data, regions); err != nil {
		return fmt.Errorf("failed to parse region overrides: %v", err)
	}

	seen := make(map[string]int, len(regions.RegionOverrides))
	for i, override := range regions.RegionOverrides {
		if prev, dup := seen[override.Region]; dup && override.Region != "" {
			return fmt.Errorf("region %s overridden at index %d and %d", override.Region, prev, i)
		}
		seen[override.Region] = i
	}

	cfg.Regions.RegionOverrides = regions.RegionOverrides
	if regions.DefaultPUE > 0 {
		cfg.Regions.DefaultPUE = regions.DefaultPUE
	}
	return nil
}
