package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3000", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, 3, cfg.API.MaxRetries)
	assert.Equal(t, time.Second, cfg.API.RetryDelay)
	assert.Equal(t, 10, cfg.API.RateLimit)
	assert.Equal(t, 30*time.Second, cfg.API.CacheTTL)
	assert.Equal(t, 5*time.Minute, cfg.API.MaxCacheAge)

	assert.True(t, cfg.Probe.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Probe.Timeout)
	assert.Equal(t, 4, cfg.Probe.Concurrency)
	assert.Equal(t, "https://dynamodb.%s.amazonaws.com", cfg.Probe.URLTemplate)

	assert.Equal(t, "green", cfg.Selection.DefaultMode)
	assert.Equal(t, 1.2, cfg.Regions.DefaultPUE)
	assert.Empty(t, cfg.Regions.RegionOverrides)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Observability.MetricsEnabled)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://backend:3000")
	t.Setenv("API_TIMEOUT", "3s")
	t.Setenv("API_MAX_RETRIES", "0")
	t.Setenv("PROBE_ENABLED", "false")
	t.Setenv("PROBE_CONCURRENCY", "not-a-number") // falls back to default
	t.Setenv("DEFAULT_TASK_MODE", "balanced")
	t.Setenv("DEFAULT_PUE", "1.3")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("METRICS_ENABLED", "false")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "http://backend:3000", cfg.API.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
	assert.Equal(t, 0, cfg.API.MaxRetries)
	assert.False(t, cfg.Probe.Enabled)
	assert.Equal(t, 4, cfg.Probe.Concurrency)
	assert.Equal(t, "balanced", cfg.Selection.DefaultMode)
	assert.Equal(t, 1.3, cfg.Regions.DefaultPUE)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.False(t, cfg.Observability.MetricsEnabled)
}

func TestLoadFromEnvOptions(t *testing.T) {
	t.Setenv("DEFAULT_TASK_MODE", "cheapest")
	t.Setenv("SERVER_PORT", "0")

	_, err := LoadFromEnv()
	require.Error(t, err)

	// values given on the command line replace bad environment values
	// before validation
	cfg, err := LoadFromEnv(WithDefaultMode("balanced"), WithServerPort(9090))
	require.NoError(t, err)
	assert.Equal(t, "balanced", cfg.Selection.DefaultMode)
	assert.Equal(t, 9090, cfg.Server.Port)

	// zero values keep the environment
	t.Setenv("DEFAULT_TASK_MODE", "performance")
	t.Setenv("SERVER_PORT", "7000")
	cfg, err = LoadFromEnv(WithDefaultMode(""), WithServerPort(0))
	require.NoError(t, err)
	assert.Equal(t, "performance", cfg.Selection.DefaultMode)
	assert.Equal(t, 7000, cfg.Server.Port)

	// an invalid override is still rejected
	_, err = LoadFromEnv(WithDefaultMode("fastest"))
	assert.Error(t, err)
}

func TestLoadFromEnvInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown mode", env: map[string]string{"DEFAULT_TASK_MODE": "cheapest"}},
		{name: "bad probe template", env: map[string]string{"PROBE_URL_TEMPLATE": "https://example.com"}},
		{name: "pue below one", env: map[string]string{"DEFAULT_PUE": "0.8"}},
		{name: "missing overrides file", env: map[string]string{"REGION_OVERRIDES_PATH": "/nonexistent/overrides.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := LoadFromEnv()
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestLoadRegionOverrides(t *testing.T) {
	path := writeFile(t, "overrides.yaml", `
defaultPUE: 1.25
regionOverrides:
  - region: us-east-1
    provider: AWS
    regionName: N. Virginia
    zone: North America
    pue: 1.12
  - region: europe-north1
    provider: GCP
    regionName: Finland
    zone: Europe
    pue: 1.09
`)
	t.Setenv("REGION_OVERRIDES_PATH", path)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	require.Len(t, cfg.Regions.RegionOverrides, 2)
	assert.Equal(t, "us-east-1", cfg.Regions.RegionOverrides[0].Region)
	assert.Equal(t, 1.12, cfg.Regions.RegionOverrides[0].PUE)
	assert.Equal(t, "GCP", cfg.Regions.RegionOverrides[1].Provider)
	assert.Equal(t, "Finland", cfg.Regions.RegionOverrides[1].RegionName)
	assert.Equal(t, 1.25, cfg.Regions.DefaultPUE)
}

func TestLoadRegionOverridesErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "invalid yaml",
			content: "regionOverrides: [not-valid-yaml\n",
		},
		{
			name: "duplicate region",
			content: `
regionOverrides:
  - region: eu-west-1
    pue: 1.1
  - region: eu-west-1
    pue: 1.2
`,
		},
		{
			name: "pue below one",
			content: `
regionOverrides:
  - region: eu-west-1
    pue: 0.5
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("REGION_OVERRIDES_PATH", writeFile(t, "overrides.yaml", tt.content))
			_, err := LoadFromEnv()
			assert.Error(t, err)
		})
	}
}
