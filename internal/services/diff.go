package services

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"
	"time"

	"github.com/dpup/prefab/errors"
	"github.com/dpup/prefab/logging"

	"github.com/dpup/pctdiff/internal/cache"
	"github.com/dpup/pctdiff/internal/clients/osm"
	"github.com/dpup/pctdiff/internal/clients/reference"
	"github.com/dpup/pctdiff/internal/config"
	"github.com/dpup/pctdiff/internal/lib/divergence"
	"github.com/dpup/pctdiff/internal/lib/geo"
	"github.com/dpup/pctdiff/internal/lib/spatial"
	"github.com/dpup/pctdiff/internal/metrics"
	"github.com/dpup/pctdiff/internal/output"
)

// WayFetcher supplies the comparison geometry of an OSM relation
type WayFetcher interface {
	FetchRelationWays(ctx context.Context, relationID int64, onProgress func(osm.ProgressEvent)) ([]geo.Polyline, error)
	Requests() int64
}

// DiffService runs one comparison of the reference dataset against OSM
type DiffService struct {
	cfg       *config.Config
	osmClient WayFetcher
	responses *cache.Cache
	metrics   *metrics.Metrics
	summary   io.Writer

	loadReference func(path string) ([]divergence.Section, error)
}

// DiffResult describes a finished run
type DiffResult struct {
	Sections      int
	Ways          int
	IndexSegments int
	Divergences   []divergence.Divergence
}

// NewDiffService creates a diff service. responses and m may be nil; summary lines go to summary
// when it is not nil.
func NewDiffService(cfg *config.Config, osmClient WayFetcher, responses *cache.Cache, m *metrics.Metrics, summary io.Writer) *DiffService {
	return &DiffService{
		cfg:           cfg,
		osmClient:     osmClient,
		responses:     responses,
		metrics:       m,
		summary:       summary,
		loadReference: reference.Load,
	}
}

// Run loads both datasets, detects divergences and writes the results. A development logger is
// attached when ctx carries none.
func (s *DiffService) Run(ctx context.Context) (result *DiffResult, err error) {
	ctx = logging.EnsureLogger(ctx)
	defer func() {
		if r := recover(); r != nil {
			stackErr, _ := errors.ParseStack(debug.Stack())
			skipFrames := 3
			numFrames := 5
			logging.Errorw(ctx, "diff: recovered from panic",
				"error", r, "error.stack_trace", stackErr.MinimalStack(skipFrames, numFrames))
			result, err = nil, fmt.Errorf("diff run panicked: %v", r)
		}
	}()

	if err := s.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	start := time.Now()
	logging.Infow(ctx, "diff: loading reference data", "path", s.cfg.Reference.Path)
	sections, err := s.loadReference(s.cfg.Reference.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference data: %w", err)
	}
	logging.Infow(ctx, "diff: loaded reference sections", "count", len(sections))
	s.observePhase("load_reference", start)

	start = time.Now()
	logging.Infow(ctx, "diff: fetching OSM relation", "relation", s.cfg.OSM.Relation)
	ways, err := s.osmClient.FetchRelationWays(ctx, s.cfg.OSM.Relation, func(e osm.ProgressEvent) {
		switch e.Kind {
		case osm.SubRelationsFound:
			logging.Infow(ctx, "diff: fetching sub-relations", "count", e.Count)
		case osm.SubRelationFetched:
			logging.Debugw(ctx, "diff: fetched sub-relation", "relation", e.RelationID)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch OSM data: %w", err)
	}
	logging.Infow(ctx, "diff: fetched OSM ways", "count", len(ways))
	s.observePhase("fetch_osm", start)

	start = time.Now()
	index := spatial.Build(ways)
	logging.Infow(ctx, "diff: built spatial index", "segments", index.Len())
	s.observePhase("build_index", start)

	start = time.Now()
	var polylines, samples int
	divs := divergence.Find(sections, index, s.cfg.Params(),
		divergence.WithWorkers(s.cfg.Compare.Workers),
		divergence.WithProgress(func(p divergence.Progress) {
			polylines += p.Polylines
			samples += p.Samples
			logging.Debugw(ctx, "diff: compared section",
				"section", p.Section, "completed", p.Completed, "total", p.Total, "found", p.Found)
		}))
	logging.Infow(ctx, "diff: found divergent segments", "count", len(divs))
	s.observePhase("compare", start)

	if s.summary != nil {
		if err := output.WriteSummary(s.summary, divs); err != nil {
			return nil, fmt.Errorf("failed to write summary: %w", err)
		}
	}

	if err := output.WriteFile(s.cfg.Output.Path, s.cfg.Output.Format, divs); err != nil {
		return nil, fmt.Errorf("failed to write output: %w", err)
	}
	logging.Infow(ctx, "diff: wrote output", "path", s.cfg.Output.Path, "format", s.cfg.Output.Format)

	result = &DiffResult{
		Sections:      len(sections),
		Ways:          len(ways),
		IndexSegments: index.Len(),
		Divergences:   divs,
	}

	if err := s.recordMetrics(result, polylines, samples); err != nil {
		// A failed metrics dump does not fail the run
		logging.Warnw(ctx, "diff: failed to write metrics", "path", s.cfg.Metrics.Path, "error", err)
	}

	return result, nil
}

func (s *DiffService) observePhase(phase string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObservePhase(phase, time.Since(start))
	}
}

func (s *DiffService) recordMetrics(result *DiffResult, polylines, samples int) error {
	if s.metrics == nil {
		return nil
	}

	m := s.metrics
	m.SectionsTotal.Add(float64(result.Sections))
	m.PolylinesTotal.Add(float64(polylines))
	m.SamplesTotal.Add(float64(samples))
	m.DivergencesTotal.Add(float64(len(result.Divergences)))
	m.IndexSegments.Set(float64(result.IndexSegments))
	m.OSMRequestsTotal.Add(float64(s.osmClient.Requests()))
	for _, d := range result.Divergences {
		m.DivergenceLengthM.Observe(d.Length)
	}
	if s.responses != nil {
		stats := s.responses.Stats()
		m.CacheHitsTotal.Add(float64(stats.Hits))
		m.CacheMissesTotal.Add(float64(stats.Misses))
	}

	if s.cfg.Metrics.Path == "" {
		return nil
	}
	return m.WriteFile(s.cfg.Metrics.Path)
}
