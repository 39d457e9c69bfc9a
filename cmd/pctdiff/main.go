package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/dpup/prefab/logging"
	"github.com/spf13/cobra"

	"github.com/dpup/pctdiff/internal/cache"
	"github.com/dpup/pctdiff/internal/clients/osm"
	"github.com/dpup/pctdiff/internal/config"
	"github.com/dpup/pctdiff/internal/metrics"
	"github.com/dpup/pctdiff/internal/services"
)

// flagKeys maps command-line flags to config keys. Only flags set explicitly override lower layers.
var flagKeys = map[string]string{
	"reference":       "reference.path",
	"relation":        "osm.relation",
	"osm-url":         "osm.base_url",
	"cache-dir":       "cache.dir",
	"cache-backend":   "cache.backend",
	"threshold":       "compare.threshold",
	"min-length":      "compare.min_length",
	"sample-interval": "compare.sample_interval",
	"workers":         "compare.workers",
	"output":          "output.path",
	"format":          "output.format",
	"metrics":         "metrics.path",
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "pctdiff",
		Short:        "Find PCT reroutes not yet in OpenStreetMap",
		Long:         "pctdiff compares the authoritative PCT centerline against the OSM route relation and reports the stretches where they disagree.",
		SilenceUsage: true,
		RunE:         run,
	}

	defaults := config.DefaultConfig()
	flags := cmd.Flags()

	flags.String("config", "", "YAML config file")
	flags.String("reference", defaults.Reference.Path, "Reference dataset (.geojson, .shp, .zip, .polyline)")
	flags.Int64("relation", defaults.OSM.Relation, "OSM relation ID for the PCT")
	flags.String("osm-url", defaults.OSM.BaseURL, "OSM API base URL")
	flags.String("cache-dir", defaults.Cache.Dir, "Cache directory for OSM data")
	flags.String("cache-backend", defaults.Cache.Backend, "Cache backend: dir or badger")
	flags.Float64("threshold", defaults.Compare.Threshold, "Minimum distance (meters) to count as divergence")
	flags.Float64("min-length", defaults.Compare.MinLength, "Minimum divergent segment length (meters)")
	flags.Float64("sample-interval", defaults.Compare.SampleInterval, "Distance between sample points (meters)")
	flags.Int("workers", defaults.Compare.Workers, "Sections compared in parallel (0 = all CPUs)")
	flags.String("output", defaults.Output.Path, "Output path")
	flags.String("format", defaults.Output.Format, "Output format: geojson or kml")
	flags.String("metrics", defaults.Metrics.Path, "Write Prometheus metrics to this textfile")

	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logging.EnsureLogger(ctx)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := cache.OpenStore(cfg.Cache.Backend, cfg.Cache.Dir)
	if err != nil {
		return err
	}
	responses := cache.NewCache(store)
	defer func() {
		if err := responses.Close(); err != nil {
			log.Printf("Failed to close cache: %v", err)
		}
	}()

	client := osm.NewClient(responses)
	if cfg.OSM.BaseURL != osm.DefaultBaseURL {
		client = osm.NewClientWithHTTPDoer(cfg.OSM.BaseURL, &http.Client{Timeout: 30 * time.Second}, responses)
	}

	service := services.NewDiffService(cfg, client, responses, metrics.New(), cmd.OutOrStdout())
	result, err := service.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Found %d divergent segments across %d sections\n", len(result.Divergences), result.Sections)
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", cfg.Output.Path)
	return nil
}

// loadConfig layers explicitly set flags over the file and environment
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	overrides := make(map[string]interface{})
	flags := cmd.Flags()

	for name, key := range flagKeys {
		if !flags.Changed(name) {
			continue
		}
		f := flags.Lookup(name)
		switch f.Value.Type() {
		case "float64":
			v, _ := flags.GetFloat64(name)
			overrides[key] = v
		case "int64":
			v, _ := flags.GetInt64(name)
			overrides[key] = v
		case "int":
			v, _ := flags.GetInt(name)
			overrides[key] = v
		default:
			overrides[key] = f.Value.String()
		}
	}

	configPath, _ := flags.GetString("config")
	cfg, err := config.Load(configPath, overrides)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
