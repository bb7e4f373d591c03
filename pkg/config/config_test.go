package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lihanning0817/low-altitude-traffic-system/pkg/engine/routingalgorithm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), cfg)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Minute, cfg.GetRouteTTL())
	assert.Equal(t, 30*time.Second, cfg.GetPredictionWindow())
	assert.Equal(t, 30*time.Minute, cfg.GetWeatherCacheTTL())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lats.yaml")
	raw := `
network:
  file: beijing.osm.pbf
  heuristic: euclidean
cache:
  route_ttl: 90s
storage:
  driver: badger
  in_memory: true
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "beijing.osm.pbf", cfg.Network.File)
	assert.Equal(t, "euclidean", cfg.Network.Heuristic)
	assert.Equal(t, 90*time.Second, cfg.GetRouteTTL())
	assert.True(t, cfg.Storage.InMemory)
	// untouched sections keep defaults
	assert.Equal(t, ":5000", cfg.Server.ListenAddr)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("network: [oops"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LATS_LISTEN_ADDR", ":9000")
	t.Setenv("LATS_HEURISTIC", "none")
	t.Setenv("LATS_BATCH_WORKERS", "3")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, ":9000", cfg.Server.ListenAddr)
	assert.Equal(t, "none", cfg.Network.Heuristic)
	assert.Equal(t, 3, cfg.Network.BatchWorkers)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"heuristic", func(c *Config) { c.Network.Heuristic = "manhattan" }},
		{"weight", func(c *Config) { c.Network.HeuristicWeight = -1 }},
		{"zero weight", func(c *Config) { c.Network.HeuristicWeight = 0 }},
		{"driver", func(c *Config) { c.Storage.Driver = "sqlite" }},
		{"postgres dsn", func(c *Config) { c.Storage.Driver = "postgres" }},
		{"capacity", func(c *Config) { c.Cache.RouteCapacity = 0 }},
		{"safe distance", func(c *Config) { c.Traffic.SafeDistanceMeters = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidHeuristicsParse(t *testing.T) {
	for _, h := range ValidHeuristics {
		cfg := DefaultConfig()
		cfg.Network.Heuristic = h
		assert.NoError(t, cfg.Validate(), h)

		_, err := routingalgorithm.ParseHeuristicMode(h)
		assert.NoError(t, err, h)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "lats.yaml")
	cfg := DefaultConfig()
	cfg.Network.File = "roads.json.zst"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestDurationFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.ReadTimeout = "soon"
	assert.Equal(t, 15*time.Second, cfg.GetReadTimeout())
}
