// Package config loads the settings of the reference wiring: built-in
// defaults, then an optional YAML file, then ACCOUNTSTATE_* environment
// variables (optionally seeded from .env files).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-yaml/yaml"
	"github.com/joho/godotenv"
)

const EnvPrefix = "ACCOUNTSTATE_"

var ErrInvalidConfig = errors.New("config: invalid configuration")

type Config struct {
	Log      Log      `yaml:"log"`
	Store    Store    `yaml:"store"`
	Cache    Cache    `yaml:"cache"`
	Watch    Watch    `yaml:"watch"`
	Activity Activity `yaml:"activity"`
}

type Log struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

type Store struct {
	Driver string `yaml:"driver"` // memory, sqlite, postgres
	DSN    string `yaml:"dsn"`
}

type Cache struct {
	TTL           Duration `yaml:"ttl"`
	KeyPrefix     string   `yaml:"keyPrefix"`
	Remote        string   `yaml:"remote"` // none, redis, memcached
	RedisAddr     string   `yaml:"redisAddr"`
	RedisPassword string   `yaml:"redisPassword"`
	RedisDB       int      `yaml:"redisDB"`
	MemcachedAddr string   `yaml:"memcachedAddr"`
}

type Watch struct {
	Engine          string   `yaml:"engine"` // expr, cel, js
	ProgramCacheTTL Duration `yaml:"programCacheTTL"`
}

type Activity struct {
	Enabled bool   `yaml:"enabled"`
	Channel string `yaml:"channel"`
}

// Duration reads Go duration strings ("90s", "10m") from YAML.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := parseDuration(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func parseDuration(raw string) (Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: invalid duration %q: %w", raw, err)
	}
	return Duration(parsed), nil
}

// Default returns the built-in configuration: in-memory store, expr filters,
// local cache tier only.
func Default() Config {
	return Config{
		Log:   Log{Level: "info", Format: "text"},
		Store: Store{Driver: "memory"},
		Cache: Cache{
			TTL:       Duration(10 * time.Minute),
			KeyPrefix: "accountstate:account:",
			Remote:    "none",
		},
		Watch:    Watch{Engine: "expr"},
		Activity: Activity{Channel: "accounts"},
	}
}

type loadOptions struct {
	envFiles []string
	lookup   func(string) (string, bool)
}

// LoadOption customises Load.
type LoadOption func(*loadOptions)

// WithEnvFiles loads the given .env files into the process environment before
// reading ACCOUNTSTATE_* variables. Variables already set are kept.
func WithEnvFiles(files ...string) LoadOption {
	return func(o *loadOptions) {
		o.envFiles = append(o.envFiles, files...)
	}
}

// WithLookupEnv replaces os.LookupEnv.
func WithLookupEnv(lookup func(string) (string, bool)) LoadOption {
	return func(o *loadOptions) {
		if lookup != nil {
			o.lookup = lookup
		}
	}
}

// Load builds the configuration. An empty path skips the YAML file.
func Load(path string, opts ...LoadOption) (Config, error) {
	o := loadOptions{lookup: os.LookupEnv}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	cfg := Default()
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: open %s: %w", path, err)
		}
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	if len(o.envFiles) > 0 {
		if err := godotenv.Load(o.envFiles...); err != nil {
			return Config{}, fmt.Errorf("config: load env files: %w", err)
		}
	}
	if err := cfg.applyEnv(o.lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("STORE_DRIVER", &c.Store.Driver)
	str("STORE_DSN", &c.Store.DSN)
	str("CACHE_KEY_PREFIX", &c.Cache.KeyPrefix)
	str("CACHE_REMOTE", &c.Cache.Remote)
	str("REDIS_ADDR", &c.Cache.RedisAddr)
	str("REDIS_PASSWORD", &c.Cache.RedisPassword)
	str("MEMCACHED_ADDR", &c.Cache.MemcachedAddr)
	str("WATCH_ENGINE", &c.Watch.Engine)
	str("ACTIVITY_CHANNEL", &c.Activity.Channel)

	if v, ok := lookup(EnvPrefix + "CACHE_TTL"); ok {
		d, err := parseDuration(v)
		if err != nil {
			return err
		}
		c.Cache.TTL = d
	}
	if v, ok := lookup(EnvPrefix + "WATCH_PROGRAM_CACHE_TTL"); ok {
		d, err := parseDuration(v)
		if err != nil {
			return err
		}
		c.Watch.ProgramCacheTTL = d
	}
	if v, ok := lookup(EnvPrefix + "REDIS_DB"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: invalid %sREDIS_DB %q: %w", EnvPrefix, v, err)
		}
		c.Cache.RedisDB = n
	}
	if v, ok := lookup(EnvPrefix + "ACTIVITY_ENABLED"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: invalid %sACTIVITY_ENABLED %q: %w", EnvPrefix, v, err)
		}
		c.Activity.Enabled = b
	}
	return nil
}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		invalid("log.level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		invalid("log.format %q", c.Log.Format)
	}

	switch strings.ToLower(c.Store.Driver) {
	case "memory":
	case "sqlite", "postgres":
		if strings.TrimSpace(c.Store.DSN) == "" {
			invalid("store.dsn is required for driver %q", c.Store.Driver)
		}
	default:
		invalid("store.driver %q", c.Store.Driver)
	}

	if c.Cache.TTL < 0 {
		invalid("cache.ttl must not be negative")
	}
	switch strings.ToLower(c.Cache.Remote) {
	case "", "none":
	case "redis":
		if c.Cache.RedisAddr == "" {
			invalid("cache.redisAddr is required for the redis tier")
		}
	case "memcached":
		if c.Cache.MemcachedAddr == "" {
			invalid("cache.memcachedAddr is required for the memcached tier")
		}
	default:
		invalid("cache.remote %q", c.Cache.Remote)
	}

	switch strings.ToLower(c.Watch.Engine) {
	case "expr", "cel", "js":
	default:
		invalid("watch.engine %q", c.Watch.Engine)
	}
	return errors.Join(errs...)
}
