package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the engine configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Network NetworkConfig `yaml:"network"`
	Cache   CacheConfig   `yaml:"cache"`
	Storage StorageConfig `yaml:"storage"`
	Traffic TrafficConfig `yaml:"traffic"`
	Weather WeatherConfig `yaml:"weather"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	ListenAddr      string `yaml:"listen_addr"`
	ReadTimeout     string `yaml:"read_timeout"`
	WriteTimeout    string `yaml:"write_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
	EnableProfiler  bool   `yaml:"enable_profiler"`
}

// NetworkConfig selects the road network and how it is searched. An empty File loads the
// built-in sample network.
type NetworkConfig struct {
	File            string  `yaml:"file"`
	Heuristic       string  `yaml:"heuristic"` // haversine, euclidean, none (alias dijkstra)
	HeuristicWeight float64 `yaml:"heuristic_weight"`
	BatchWorkers    int     `yaml:"batch_workers"`
	MaxBatchSize    int     `yaml:"max_batch_size"`
}

type CacheConfig struct {
	RouteCapacity int64  `yaml:"route_capacity"`
	RouteTTL      string `yaml:"route_ttl"`
}

type StorageConfig struct {
	Driver      string `yaml:"driver"` // badger, postgres
	BadgerDir   string `yaml:"badger_dir"`
	InMemory    bool   `yaml:"in_memory"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

type TrafficConfig struct {
	SafeDistanceMeters float64 `yaml:"safe_distance_meters"`
	PredictionWindow   string  `yaml:"prediction_window"`
	DefaultSpeed       float64 `yaml:"default_speed"` // m/s
}

type WeatherConfig struct {
	CacheTTL string `yaml:"cache_ttl"`
	Seed     uint64 `yaml:"seed"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	JSON  bool   `yaml:"json"`
}

var (
	ValidHeuristics     = []string{"haversine", "euclidean", "none", "dijkstra"}
	ValidStorageDrivers = []string{"badger", "postgres"}
)

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      ":5000",
			ReadTimeout:     "15s",
			WriteTimeout:    "30s",
			ShutdownTimeout: "10s",
			EnableProfiler:  true,
		},
		Network: NetworkConfig{
			Heuristic:       "haversine",
			HeuristicWeight: 1,
			BatchWorkers:    8,
			MaxBatchSize:    1000,
		},
		Cache: CacheConfig{
			RouteCapacity: 10000,
			RouteTTL:      "5m",
		},
		Storage: StorageConfig{
			Driver:    "badger",
			BadgerDir: "./data/routes",
		},
		Traffic: TrafficConfig{
			SafeDistanceMeters: 50,
			PredictionWindow:   "30s",
			DefaultSpeed:       10,
		},
		Weather: WeatherConfig{
			CacheTTL: "30m",
			Seed:     1,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file. A missing file yields the defaults. LATS_* environment
// variables override file values in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LATS_LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("LATS_NETWORK_FILE"); v != "" {
		c.Network.File = v
	}
	if v := os.Getenv("LATS_HEURISTIC"); v != "" {
		c.Network.Heuristic = v
	}
	if v := os.Getenv("LATS_STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("LATS_BADGER_DIR"); v != "" {
		c.Storage.BadgerDir = v
	}
	if v := os.Getenv("LATS_POSTGRES_DSN"); v != "" {
		c.Storage.PostgresDSN = v
	}
	if v := os.Getenv("LATS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LATS_BATCH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Network.BatchWorkers = n
		}
	}
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func (c *Config) GetReadTimeout() time.Duration {
	return parseDuration(c.Server.ReadTimeout, 15*time.Second)
}

func (c *Config) GetWriteTimeout() time.Duration {
	return parseDuration(c.Server.WriteTimeout, 30*time.Second)
}

func (c *Config) GetShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, 10*time.Second)
}

func (c *Config) GetRouteTTL() time.Duration {
	return parseDuration(c.Cache.RouteTTL, 5*time.Minute)
}

func (c *Config) GetPredictionWindow() time.Duration {
	return parseDuration(c.Traffic.PredictionWindow, 30*time.Second)
}

func (c *Config) GetWeatherCacheTTL() time.Duration {
	return parseDuration(c.Weather.CacheTTL, 30*time.Minute)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server listen address not configured")
	}
	if !contains(ValidHeuristics, c.Network.Heuristic) {
		return fmt.Errorf("invalid heuristic: %s (valid: %v)", c.Network.Heuristic, ValidHeuristics)
	}
	if !(c.Network.HeuristicWeight > 0) {
		return fmt.Errorf("heuristic weight must be positive, use heuristic none to disable it: %v", c.Network.HeuristicWeight)
	}
	if !contains(ValidStorageDrivers, c.Storage.Driver) {
		return fmt.Errorf("invalid storage driver: %s (valid: %v)", c.Storage.Driver, ValidStorageDrivers)
	}
	if c.Storage.Driver == "postgres" && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("postgres storage requires postgres_dsn (or LATS_POSTGRES_DSN)")
	}
	if c.Storage.Driver == "badger" && !c.Storage.InMemory && c.Storage.BadgerDir == "" {
		return fmt.Errorf("badger storage requires badger_dir or in_memory")
	}
	if c.Cache.RouteCapacity <= 0 {
		return fmt.Errorf("route cache capacity must be positive: %d", c.Cache.RouteCapacity)
	}
	if c.Traffic.SafeDistanceMeters <= 0 {
		return fmt.Errorf("safe distance must be positive: %v", c.Traffic.SafeDistanceMeters)
	}
	return nil
}
