package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/nikhilxb/xnode-db/pkg/cache"
	"github.com/nikhilxb/xnode-db/pkg/pipeline"
	"github.com/nikhilxb/xnode-db/pkg/server"
	"github.com/nikhilxb/xnode-db/pkg/store"
)

// Backend names accepted in the [cache] and [store] sections.
const (
	backendNone   = "none"
	backendFile   = "file"
	backendRedis  = "redis"
	backendMemory = "memory"
	backendMongo  = "mongo"
)

// Config is the contents of config.toml. Every field has a default, so the
// file is optional.
type Config struct {
	Server ServerConfig `toml:"server"`
	Cache  CacheConfig  `toml:"cache"`
	Store  StoreConfig  `toml:"store"`
	Schema SchemaConfig `toml:"schema"`
	Script ScriptConfig `toml:"script"`
}

// ServerConfig configures "xnode serve".
type ServerConfig struct {
	Addr           string `toml:"addr"`
	Metrics        bool   `toml:"metrics"`
	MaxUploadBytes int64  `toml:"max_upload_bytes"`
}

// CacheConfig selects the artifact cache.
type CacheConfig struct {
	Backend string            `toml:"backend"` // file, redis or none
	Dir     string            `toml:"dir"`     // file backend; defaults to the XDG cache dir
	Prefix  string            `toml:"prefix"`  // key prefix for shared caches
	Redis   cache.RedisConfig `toml:"redis"`
}

// StoreConfig selects where snapshots are kept.
type StoreConfig struct {
	Backend string            `toml:"backend"` // file, mongo or memory
	Dir     string            `toml:"dir"`     // file backend; defaults to the XDG data dir
	Mongo   store.MongoConfig `toml:"mongo"`
}

// SchemaConfig bounds snapshot size.
type SchemaConfig struct {
	MaxSymbols int `toml:"max_symbols"`
}

// ScriptConfig bounds script execution.
type ScriptConfig struct {
	MaxSteps uint64   `toml:"max_steps"`
	Timeout  Duration `toml:"timeout"`
}

// Duration is a time.Duration written as a string ("30s", "24h") in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           server.DefaultAddr,
			MaxUploadBytes: server.DefaultMaxUploadBytes,
		},
		Cache: CacheConfig{Backend: backendFile},
		Store: StoreConfig{
			Backend: backendFile,
			Mongo: store.MongoConfig{
				Database:   store.DefaultMongoDatabase,
				Collection: store.DefaultMongoCollection,
			},
		},
		Schema: SchemaConfig{MaxSymbols: pipeline.DefaultMaxSymbols},
		Script: ScriptConfig{MaxSteps: pipeline.DefaultMaxSteps},
	}
}

// LoadConfig reads path over the defaults. A missing file is not an error
// unless required is set.
func LoadConfig(path string, required bool) (*Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("load config %s: unknown key %q", path, undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks backend names and the settings each backend needs.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case backendNone, backendFile:
	case backendRedis:
		if c.Cache.Redis.Addr == "" {
			return errors.New("cache.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown cache backend %q (valid: file, redis, none)", c.Cache.Backend)
	}
	switch c.Store.Backend {
	case backendMemory, backendFile:
	case backendMongo:
		if c.Store.Mongo.URI == "" {
			return errors.New("store.mongo.uri is required for the mongo backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q (valid: file, mongo, memory)", c.Store.Backend)
	}
	if c.Schema.MaxSymbols < 0 {
		return errors.New("schema.max_symbols must not be negative")
	}
	return nil
}

// configPath returns the config file location using XDG standard
// (~/.config/xnode/config.toml).
func configPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}
