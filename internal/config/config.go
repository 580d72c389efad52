// Package config loads flurecore's §6.4 tuning knobs and storage
// adapter settings, grounded on the teacher's internal/config package: a
// plain struct read directly from a YAML file via gopkg.in/yaml.v3
// (internal/config/local_config.go's LoadLocalConfig), then widened
// through github.com/spf13/viper so the CLI layer (cmd/fdb) can merge
// TOML config files, environment variables, and flags the way the
// teacher's cmd/bd/doctor/config_values.go stands up a scratch
// *viper.Viper to validate a config.yaml in isolation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fluree/flurecore/internal/index"
)

// Config is the subset of tuning/storage settings flurecore reads
// directly rather than through viper, mirroring the teacher's
// LocalConfig's "needs proper parsing, not regex" rationale.
type Config struct {
	ReindexMinBytes int64         `yaml:"reindex_min_bytes" toml:"reindex_min_bytes"`
	ReindexMaxBytes int64         `yaml:"reindex_max_bytes" toml:"reindex_max_bytes"`
	MaxOldIndexes   int           `yaml:"max_old_indexes" toml:"max_old_indexes"`
	OverflowBytes   int           `yaml:"overflow_bytes" toml:"overflow_bytes"`
	UnderflowBytes  int           `yaml:"underflow_bytes" toml:"underflow_bytes"`
	OverflowChildren int          `yaml:"overflow_children" toml:"overflow_children"`
	Parallelism     int           `yaml:"parallelism" toml:"parallelism"`
	StorageMethod   string        `yaml:"storage_method" toml:"storage_method"`
	StoragePath     string        `yaml:"storage_path" toml:"storage_path"`
	FuelBudget      int64         `yaml:"fuel_budget" toml:"fuel_budget"`
	FlushDebounce   time.Duration `yaml:"-" toml:"-"`
}

// Default returns spec.md §6.4's defaults plus flurecore's own
// parallelism/fuel knobs.
func Default() Config {
	t := index.DefaultTuning()
	return Config{
		ReindexMinBytes:  100_000,
		ReindexMaxBytes:  1_000_000,
		MaxOldIndexes:    3,
		OverflowBytes:    t.OverflowBytes,
		UnderflowBytes:   t.UnderflowBytes,
		OverflowChildren: t.OverflowChildren,
		Parallelism:      4,
		StorageMethod:    "memory",
		FuelBudget:       0,
	}
}

// Tuning projects Config's index-shape knobs into an index.Tuning.
func (c Config) Tuning() index.Tuning {
	return index.Tuning{
		OverflowBytes:    c.OverflowBytes,
		UnderflowBytes:   c.UnderflowBytes,
		OverflowChildren: c.OverflowChildren,
	}
}

// LoadYAML reads a YAML config file directly, the way the teacher's
// LoadLocalConfig bypasses viper when a raw read is needed. Returns
// Default() (not an error) if path doesn't exist, matching the teacher's
// "return an empty config, not nil" tolerance for a missing file.
func LoadYAML(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadTOML reads a TOML config file directly, the CLI's alternate format
// alongside YAML (spec.md names no format; both are offered per
// SPEC_FULL's ambient-stack expansion).
func LoadTOML(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// envPrefix is the environment variable namespace cmd/fdb and library
// callers use to override config values, mirroring BEADS_* overrides.
const envPrefix = "FLURE"

// LoadViper builds a *viper.Viper reading configPath (format inferred
// from its extension) with FLURE_*-prefixed environment overrides, the
// two-step "read file, then apply env overrides" the teacher's config
// layer follows throughout (LoadLocalConfigWithEnv, config_values.go).
// An empty configPath skips the file and reads only defaults plus env.
func LoadViper(configPath string) (*viper.Viper, error) {
	v := viper.New()
	def := Default()
	v.SetDefault("reindex_min_bytes", def.ReindexMinBytes)
	v.SetDefault("reindex_max_bytes", def.ReindexMaxBytes)
	v.SetDefault("max_old_indexes", def.MaxOldIndexes)
	v.SetDefault("overflow_bytes", def.OverflowBytes)
	v.SetDefault("underflow_bytes", def.UnderflowBytes)
	v.SetDefault("overflow_children", def.OverflowChildren)
	v.SetDefault("parallelism", def.Parallelism)
	v.SetDefault("storage_method", def.StorageMethod)
	v.SetDefault("fuel_budget", def.FuelBudget)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", configPath, err)
			}
		}
	}
	return v, nil
}

// FromViper materializes a Config from a loaded *viper.Viper.
func FromViper(v *viper.Viper) Config {
	return Config{
		ReindexMinBytes:  v.GetInt64("reindex_min_bytes"),
		ReindexMaxBytes:  v.GetInt64("reindex_max_bytes"),
		MaxOldIndexes:    v.GetInt("max_old_indexes"),
		OverflowBytes:    v.GetInt("overflow_bytes"),
		UnderflowBytes:   v.GetInt("underflow_bytes"),
		OverflowChildren: v.GetInt("overflow_children"),
		Parallelism:      v.GetInt("parallelism"),
		StorageMethod:    v.GetString("storage_method"),
		StoragePath:      v.GetString("storage_path"),
		FuelBudget:       v.GetInt64("fuel_budget"),
		FlushDebounce:    v.GetDuration("flush_debounce"),
	}
}
