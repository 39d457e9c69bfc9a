package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/dpup/pctdiff/internal/cache"
	"github.com/dpup/pctdiff/internal/clients/osm"
	"github.com/dpup/pctdiff/internal/lib/divergence"
	"github.com/dpup/pctdiff/internal/output"
)

// EnvPrefix marks environment variables read by Load, e.g. PF__COMPARE__THRESHOLD=25
const EnvPrefix = "PF__"

// PCTRelationID is the OSM super-relation of the Pacific Crest Trail
const PCTRelationID = 1225378

// Config represents the complete run configuration
type Config struct {
	Reference ReferenceConfig `koanf:"reference"`
	OSM       OSMConfig       `koanf:"osm"`
	Cache     CacheConfig     `koanf:"cache"`
	Compare   CompareConfig   `koanf:"compare"`
	Output    OutputConfig    `koanf:"output"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

// ReferenceConfig locates the authoritative dataset
type ReferenceConfig struct {
	Path string `koanf:"path"`
}

// OSMConfig selects the relation to compare against
type OSMConfig struct {
	Relation int64  `koanf:"relation"`
	BaseURL  string `koanf:"base_url"`
}

// CacheConfig holds response cache settings
type CacheConfig struct {
	Dir     string `koanf:"dir"`
	Backend string `koanf:"backend"` // "dir" or "badger"
}

// CompareConfig holds detection parameters, all in meters
type CompareConfig struct {
	Threshold      float64 `koanf:"threshold"`
	MinLength      float64 `koanf:"min_length"`
	SampleInterval float64 `koanf:"sample_interval"`
	Workers        int     `koanf:"workers"` // 0 means GOMAXPROCS
}

// OutputConfig controls where results go
type OutputConfig struct {
	Path   string `koanf:"path"`
	Format string `koanf:"format"` // "geojson" or "kml"
}

// MetricsConfig enables the textfile metrics dump when Path is set
type MetricsConfig struct {
	Path string `koanf:"path"`
}

// defaults mirror DefaultConfig as flat koanf keys
func defaults() map[string]interface{} {
	params := divergence.DefaultParams()
	return map[string]interface{}{
		"reference.path":          "Full_PCT.geojson",
		"osm.relation":            PCTRelationID,
		"osm.base_url":            osm.DefaultBaseURL,
		"cache.dir":               ".cache",
		"cache.backend":           cache.BackendDir,
		"compare.threshold":       params.Threshold,
		"compare.min_length":      params.MinLength,
		"compare.sample_interval": params.SampleInterval,
		"compare.workers":         0,
		"output.path":             "divergences.geojson",
		"output.format":           output.FormatGeoJSON,
		"metrics.path":            "",
	}
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	cfg, err := Load("", nil)
	if err != nil {
		// Defaults alone always unmarshal
		panic(err)
	}
	return cfg
}

// Load layers defaults, the optional YAML file at path, PF__ environment variables and finally
// overrides (flat dotted keys, typically from command-line flags)
func Load(path string, overrides map[string]interface{}) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("failed to load overrides: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// envKey maps PF__COMPARE__MIN_LENGTH to compare.min_length
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Params returns the detection parameters
func (c *Config) Params() divergence.Params {
	return divergence.Params{
		Threshold:      c.Compare.Threshold,
		MinLength:      c.Compare.MinLength,
		SampleInterval: c.Compare.SampleInterval,
	}
}

// Validate checks the values a run depends on
func (c *Config) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return err
	}
	if c.Reference.Path == "" {
		return fmt.Errorf("reference.path is required")
	}
	if c.OSM.Relation <= 0 {
		return fmt.Errorf("osm.relation must be positive, got %d", c.OSM.Relation)
	}
	if c.Output.Path == "" {
		return fmt.Errorf("output.path is required")
	}

	switch c.Cache.Backend {
	case cache.BackendDir, cache.BackendBadger:
	default:
		return fmt.Errorf("cache.backend must be %q or %q, got %q", cache.BackendDir, cache.BackendBadger, c.Cache.Backend)
	}

	switch c.Output.Format {
	case output.FormatGeoJSON, output.FormatKML:
	default:
		return fmt.Errorf("%w: %q", output.ErrUnknownFormat, c.Output.Format)
	}
	return nil
}
