// Package config loads hookwarden settings from defaults, a YAML file,
// HOOKWARDEN_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/caffeineduck/hookwarden/hostfunc"
)

const (
	EnvPrefix = "HOOKWARDEN"
	FileName  = "hookwarden"
)

// Config is the full set of settings.
type Config struct {
	Plugins      PluginsConfig      `mapstructure:"plugins"`
	Trust        TrustConfig        `mapstructure:"trust"`
	Runtime      RuntimeConfig      `mapstructure:"runtime"`
	Capabilities CapabilitiesConfig `mapstructure:"capabilities"`
	Log          LogConfig          `mapstructure:"log"`
}

type PluginsConfig struct {
	Dir              string `mapstructure:"dir"`
	RequireSignature bool   `mapstructure:"require_signature"`
	RequireChecksum  bool   `mapstructure:"require_checksum"`
}

type TrustConfig struct {
	// Keys are hex ed25519 public keys plugins may be signed with.
	Keys []string `mapstructure:"keys"`
	// SystemSources are hook sources allowed to auto-grant permissions.
	SystemSources []string `mapstructure:"system_sources"`
}

type RuntimeConfig struct {
	MemoryLimitPages uint32        `mapstructure:"memory_limit_pages"`
	CacheDir         string        `mapstructure:"cache_dir"`
	DiskCache        bool          `mapstructure:"disk_cache"`
	CallTimeout      time.Duration `mapstructure:"call_timeout"`
}

type CapabilitiesConfig struct {
	// Disabled bridge functions answer NotSupported.
	Disabled     []string `mapstructure:"disabled"`
	StrictLevels bool     `mapstructure:"strict_levels"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// SetDefaults registers every key's default. Keys must have a default to be
// picked up from the environment by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("plugins.dir", defaultPluginDir())
	v.SetDefault("plugins.require_signature", false)
	v.SetDefault("plugins.require_checksum", false)

	v.SetDefault("trust.keys", []string{})
	v.SetDefault("trust.system_sources", []string{})

	v.SetDefault("runtime.memory_limit_pages", 0)
	v.SetDefault("runtime.cache_dir", "")
	v.SetDefault("runtime.disk_cache", false)
	v.SetDefault("runtime.call_timeout", 5*time.Second)

	v.SetDefault("capabilities.disabled", []string{})
	v.SetDefault("capabilities.strict_levels", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 7)
}

func defaultPluginDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "hookwarden", "plugins")
	}
	return filepath.Join(".hookwarden", "plugins")
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"plugins":           "plugins.dir",
	"require-signature": "plugins.require_signature",
	"require-checksum":  "plugins.require_checksum",
	"trusted-key":       "trust.keys",
	"system-source":     "trust.system_sources",
	"log-level":         "log.level",
	"log-file":          "log.file",
}

// BindFlags binds whichever of the known flags exist in fs.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads the config file and unmarshals the merged settings. With an
// empty path, hookwarden.yaml is looked up in the working directory and the
// user config directory, and its absence is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "hookwarden"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	var errs []error

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	known := hostfunc.Functions()
	for _, name := range c.Capabilities.Disabled {
		if !slices.Contains(known, name) {
			errs = append(errs, fmt.Errorf("capabilities.disabled: unknown function %q", name))
		}
	}

	if c.Runtime.MemoryLimitPages > 65536 {
		errs = append(errs, fmt.Errorf("runtime.memory_limit_pages: %d exceeds 65536", c.Runtime.MemoryLimitPages))
	}
	if c.Runtime.CallTimeout < 0 {
		errs = append(errs, errors.New("runtime.call_timeout: must not be negative"))
	}

	return errors.Join(errs...)
}
