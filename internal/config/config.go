package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/viper"

	"github.com/Norgate-AV/kbfw/internal/cache"
)

// Default configuration values
const (
	DefaultCacheBackend = cache.BackendBolt
	DefaultRepository   = cache.DefaultRepository
	DefaultBranch       = cache.DefaultBranch
	DefaultUserMapping  = true
	DefaultSilent       = false
	DefaultVerbose      = false
	DefaultTrace        = false
)

// Strategies accepted by the strategy key. Empty selects automatically.
var Strategies = []string{"", "zmk_config", "west", "moergo"}

// Holds the configuration options for kbfw
type Config struct {
	// Root of the workspace cache
	CacheDir string

	// Metadata backend: bolt, redis or memory
	CacheBackend string
	RedisURL     string

	// Time to live per cache tier
	CacheTTL map[cache.Tier]time.Duration

	// Skip the workspace cache entirely
	NoCache bool

	// Container image override
	DockerImage string

	// Run containers as the calling user
	UserMapping bool

	// Build strategy tag
	Strategy string

	// Firmware repository and branch
	Repository string
	Branch     string

	// File receiving the timestamped container log
	BuildLog string

	// Suppress container output on the console
	Silent bool

	// Enable verbose output
	Verbose bool

	// Print OpenTelemetry spans to stderr
	Trace bool
}

func Load() (*Config, error) {
	cfg := &Config{
		CacheDir:     viper.GetString("cache_dir"),
		CacheBackend: viper.GetString("cache.backend"),
		RedisURL:     viper.GetString("cache.redis_url"),
		CacheTTL:     make(map[cache.Tier]time.Duration, len(cache.Tiers)),
		NoCache:      viper.GetBool("no_cache"),
		DockerImage:  viper.GetString("docker.image"),
		UserMapping:  viper.GetBool("docker.user_mapping"),
		Strategy:     viper.GetString("strategy"),
		Repository:   viper.GetString("repository"),
		Branch:       viper.GetString("branch"),
		BuildLog:     viper.GetString("build_log"),
		Silent:       viper.GetBool("silent"),
		Verbose:      viper.GetBool("verbose"),
		Trace:        viper.GetBool("trace"),
	}

	for _, tier := range cache.Tiers {
		cfg.CacheTTL[tier] = viper.GetDuration("cache.ttl." + string(tier))
	}

	// Apply defaults if not set
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = DefaultCacheBackend
	}

	if cfg.Repository == "" {
		cfg.Repository = DefaultRepository
	}

	if cfg.Branch == "" {
		cfg.Branch = DefaultBranch
	}

	for tier, d := range cfg.CacheTTL {
		if d == 0 {
			cfg.CacheTTL[tier] = cache.DefaultTTL[tier]
		}
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.CacheDir != "" {
		abs, err := filepath.Abs(c.CacheDir)
		if err != nil {
			return fmt.Errorf("invalid cache directory: %v", err)
		}

		c.CacheDir = abs
	}

	// Resolve build log path
	if c.BuildLog != "" {
		abs, err := filepath.Abs(c.BuildLog)
		if err != nil {
			return fmt.Errorf("invalid build log path: %v", err)
		}

		c.BuildLog = abs
	}

	switch c.CacheBackend {
	case cache.BackendBolt, cache.BackendMemory:
	case cache.BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("cache.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid cache backend: %s", c.CacheBackend)
	}

	if !slices.Contains(Strategies, c.Strategy) {
		return fmt.Errorf("invalid strategy: %s", c.Strategy)
	}

	for tier, d := range c.CacheTTL {
		if d < 0 {
			return fmt.Errorf("invalid ttl for %s tier: %s", tier, d)
		}
	}

	return nil
}

// StoreOptions returns the metadata store settings for the cache.
func (c *Config) StoreOptions(root string) cache.StoreOptions {
	return cache.StoreOptions{
		Backend:  c.CacheBackend,
		Root:     root,
		RedisURL: c.RedisURL,
	}
}
