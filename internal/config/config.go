// Package config loads engine and server settings with layered precedence:
// built-in defaults, then an optional YAML file, then LATTICE_* environment
// variables, then explicitly set command-line flags.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Default config file names, searched in the working directory.
var configFileNames = []string{"lattice.yaml", "lattice.yml"}

// StoreConfig selects and configures the snapshot store backend.
type StoreConfig struct {
	Backend string `koanf:"backend"` // memory, file or redis
	Path    string `koanf:"path"`    // file backend: snapshot directory
	Format  string `koanf:"format"`  // file backend: json or msgpack

	Redis RedisConfig `koanf:"redis"`
}

// RedisConfig holds redis backend settings.
type RedisConfig struct {
	Address  string        `koanf:"address"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	Prefix   string        `koanf:"prefix"`
	TTL      time.Duration `koanf:"ttl"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `koanf:"address"`
}

// ExecutionConfig holds scheduler settings.
type ExecutionConfig struct {
	Workers int `koanf:"workers"`
}

// HistoryConfig holds undo/redo settings.
type HistoryConfig struct {
	Depth int `koanf:"depth"`
}

// Config is the full application configuration.
type Config struct {
	LogLevel  string          `koanf:"log_level"`
	Server    ServerConfig    `koanf:"server"`
	Store     StoreConfig     `koanf:"store"`
	Execution ExecutionConfig `koanf:"execution"`
	History   HistoryConfig   `koanf:"history"`
}

func defaults() map[string]any {
	return map[string]any{
		"log_level":          "info",
		"server.address":     ":8080",
		"store.backend":      "memory",
		"store.path":         ".lattice/workflows",
		"store.format":       "json",
		"store.redis.prefix": "lattice:workflow:",
		"execution.workers":  4,
		"history.depth":      100,
	}
}

// Load assembles the configuration. cfgFile may be empty, in which case the
// default file names are searched in the working directory; a missing file
// is not an error. flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	path := cfgFile
	if path == "" {
		for _, name := range configFileNames {
			if _, err := os.Stat(name); err == nil {
				path = name
				break
			}
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	// LATTICE_STORE_BACKEND -> store.backend
	if err := k.Load(env.Provider("LATTICE_", ".", func(s string) string {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "LATTICE_")), "_", ".")
		if key == "log.level" {
			key = "log_level"
		}
		return key
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			// Bridge short flag names to nested config keys.
			switch key {
			case "address":
				key = "server.address"
			case "workers":
				key = "execution.workers"
			case "store":
				key = "store.backend"
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return &cfg, nil
}
