// Package config loads atlas configuration.
//
// Configuration is layered, later layers winning:
//
//  1. built-in defaults
//  2. a TOML file (atlas.toml)
//  3. a .env file in the working directory, if present
//  4. ATLAS_* environment variables
//
// [Config.ValidateAndSetDefaults] fills unset fields and rejects invalid
// combinations. It is idempotent.
//
// Example atlas.toml:
//
//	[data]
//	states    = "data/uf.geojson"
//	districts = "https://example.org/municipios.geojson"
//
//	[server]
//	addr     = ":8080"
//	view_ttl = "30m"
//
//	[cache]
//	backend = "redis"
//	redis   = { addr = "localhost:6379", prefix = "atlas:" }
//
//	[comparison]
//	capacity = 4
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/gpmc-lab-ufrgs/atlas/pkg/comparison"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/errors"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/feature"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/geodata"
)

// Default values.
const (
	DefaultAddr            = ":8080"
	DefaultViewTTL         = 30 * time.Minute
	DefaultCleanupInterval = time.Minute
	DefaultShutdownTimeout = 10 * time.Second
	DefaultCacheTTL        = 24 * time.Hour
	DefaultRedisPrefix     = "atlas:"
	DefaultZoom            = 3.4
	DefaultPadding         = 0.05
	DefaultDebounce        = 50 * time.Millisecond
)

// DefaultCenter is the default viewport center (lng, lat), framing Brazil.
var DefaultCenter = [2]float64{-58, -15}

// Cache backends.
const (
	CacheFile  = "file"
	CacheRedis = "redis"
	CacheNone  = "none"
)

// Duration is a time.Duration read from strings such as "30m".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// D returns d as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

// Config is the full atlas configuration.
type Config struct {
	Data     DataConfig     `toml:"data"`
	Server   ServerConfig   `toml:"server"`
	Cache    CacheConfig    `toml:"cache"`
	Viewport ViewportConfig `toml:"viewport"`
	Debounce DebounceConfig `toml:"debounce"`

	Comparison ComparisonConfig `toml:"comparison"`

	validated bool
}

// DataConfig names the GeoJSON layers.
type DataConfig struct {
	States       string       `toml:"states"`
	Districts    string       `toml:"districts"`
	StateKeys    geodata.Keys `toml:"state_keys"`
	DistrictKeys geodata.Keys `toml:"district_keys"`
}

// ServerConfig configures the HTTP view server.
type ServerConfig struct {
	Addr            string   `toml:"addr"`
	ViewTTL         Duration `toml:"view_ttl"`
	CleanupInterval Duration `toml:"cleanup_interval"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

// CacheConfig selects the dataset cache backend.
type CacheConfig struct {
	Backend string      `toml:"backend"`
	Dir     string      `toml:"dir"`
	TTL     Duration    `toml:"ttl"`
	Redis   RedisConfig `toml:"redis"`
}

// RedisConfig configures the redis cache backend.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

// ViewportConfig is the default camera of the reference viewport.
type ViewportConfig struct {
	Center  [2]float64 `toml:"center"`
	Zoom    float64    `toml:"zoom"`
	Padding float64    `toml:"padding"`
}

// DebounceConfig configures directive debouncing for streamed sinks.
type DebounceConfig struct {
	Interval Duration `toml:"interval"`
}

// ComparisonConfig bounds the comparison set of every view.
type ComparisonConfig struct {
	Capacity int `toml:"capacity"`
}

// Default returns a validated configuration with every default applied.
func Default() *Config {
	c := &Config{}
	_ = c.ValidateAndSetDefaults()
	return c
}

// Load reads path (skipped when empty), then .env and ATLAS_* overrides,
// and validates the result.
func Load(path string) (*Config, error) {
	c := &Config{}
	if path != "" {
		if err := errors.ValidatePath(path); err != nil {
			return nil, err
		}
		md, err := toml.DecodeFile(path, c)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read %s", path)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "%s: unknown key %q", path, undecoded[0].String())
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read .env")
	}
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyEnv overrides fields from ATLAS_* variables looked up with lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}
	dur := func(name string, dst *Duration) error {
		if v, ok := lookup(name); ok {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				return errors.Wrap(errors.ErrCodeInvalidConfig, err, "%s", name)
			}
		}
		return nil
	}

	str("ATLAS_STATES", &c.Data.States)
	str("ATLAS_DISTRICTS", &c.Data.Districts)
	str("ATLAS_ADDR", &c.Server.Addr)
	str("ATLAS_CACHE_BACKEND", &c.Cache.Backend)
	str("ATLAS_CACHE_DIR", &c.Cache.Dir)
	str("ATLAS_REDIS_ADDR", &c.Cache.Redis.Addr)
	str("ATLAS_REDIS_PASSWORD", &c.Cache.Redis.Password)
	str("ATLAS_REDIS_PREFIX", &c.Cache.Redis.Prefix)

	if v, ok := lookup("ATLAS_REDIS_DB"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return errors.New(errors.ErrCodeInvalidConfig, "ATLAS_REDIS_DB must be a non-negative integer, got %q", v)
		}
		c.Cache.Redis.DB = n
	}
	if v, ok := lookup("ATLAS_COMPARISON_CAPACITY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return errors.New(errors.ErrCodeInvalidConfig, "ATLAS_COMPARISON_CAPACITY must be a positive integer, got %q", v)
		}
		c.Comparison.Capacity = n
	}

	for name, dst := range map[string]*Duration{
		"ATLAS_VIEW_TTL":  &c.Server.ViewTTL,
		"ATLAS_CACHE_TTL": &c.Cache.TTL,
		"ATLAS_DEBOUNCE":  &c.Debounce.Interval,
	} {
		if err := dur(name, dst); err != nil {
			return err
		}
	}
	c.validated = false
	return nil
}

// ValidateAndSetDefaults checks fields and applies defaults.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (c *Config) ValidateAndSetDefaults() error {
	if c.validated {
		return nil
	}

	for _, src := range []string{c.Data.States, c.Data.Districts} {
		if src == "" {
			continue
		}
		if errors.IsURL(src) {
			if err := errors.ValidateURL(src); err != nil {
				return err
			}
		} else if err := errors.ValidatePath(src); err != nil {
			return err
		}
	}
	if c.Data.Districts != "" && c.Data.States == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "data.districts requires data.states")
	}
	if c.Data.StateKeys == (geodata.Keys{}) {
		c.Data.StateKeys = geodata.DefaultKeys(feature.LevelState)
	}
	if c.Data.DistrictKeys == (geodata.Keys{}) {
		c.Data.DistrictKeys = geodata.DefaultKeys(feature.LevelDistrict)
	}

	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	setDuration(&c.Server.ViewTTL, DefaultViewTTL)
	setDuration(&c.Server.CleanupInterval, DefaultCleanupInterval)
	setDuration(&c.Server.ShutdownTimeout, DefaultShutdownTimeout)

	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	switch c.Cache.Backend {
	case "":
		c.Cache.Backend = CacheFile
	case CacheFile, CacheNone:
	case CacheRedis:
		if c.Cache.Redis.Addr == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "cache.redis.addr is required for the redis backend")
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "cache.backend must be one of file, redis, none; got %q", c.Cache.Backend)
	}
	if c.Cache.Dir == "" {
		dir, err := DefaultCacheDir()
		if err != nil {
			return err
		}
		c.Cache.Dir = dir
	}
	setDuration(&c.Cache.TTL, DefaultCacheTTL)
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = DefaultRedisPrefix
	}

	if c.Viewport.Center == ([2]float64{}) {
		c.Viewport.Center = DefaultCenter
	}
	if lng, lat := c.Viewport.Center[0], c.Viewport.Center[1]; lng < -180 || lng > 180 || lat < -90 || lat > 90 {
		return errors.New(errors.ErrCodeInvalidConfig, "viewport.center (%g, %g) is out of range", lng, lat)
	}
	if c.Viewport.Zoom == 0 {
		c.Viewport.Zoom = DefaultZoom
	}
	if c.Viewport.Zoom < 0 || c.Viewport.Zoom > 22 {
		return errors.New(errors.ErrCodeInvalidConfig, "viewport.zoom must be between 0 and 22, got %g", c.Viewport.Zoom)
	}
	if c.Viewport.Padding == 0 {
		c.Viewport.Padding = DefaultPadding
	}
	if c.Viewport.Padding < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "viewport.padding cannot be negative")
	}

	if c.Debounce.Interval < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "debounce.interval cannot be negative")
	}
	setDuration(&c.Debounce.Interval, DefaultDebounce)

	if c.Comparison.Capacity < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "comparison.capacity cannot be negative")
	}
	if c.Comparison.Capacity == 0 {
		c.Comparison.Capacity = comparison.Capacity
	}

	c.validated = true
	return nil
}

func setDuration(d *Duration, def time.Duration) {
	if *d == 0 {
		*d = Duration(def)
	}
}

// DefaultCacheDir returns ~/.cache/atlas, honoring XDG_CACHE_HOME.
func DefaultCacheDir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locate cache dir: %w", err)
	}
	return filepath.Join(dir, "atlas"), nil
}
