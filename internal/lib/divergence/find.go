package divergence

import (
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Progress is reported once per completed section
type Progress struct {
	Section   string
	Completed int
	Total     int
	Polylines int
	Samples   int
	Found     int
}

// ProgressFunc observes a run. Calls are serialized but may come from any goroutine.
type ProgressFunc func(Progress)

type options struct {
	workers  int
	progress ProgressFunc
}

// Option customizes Find
type Option func(*options)

// WithWorkers bounds the number of goroutines measuring samples at once. Values < 1 mean
// GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithProgress registers an observer called after each section finishes
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// Find runs detection over every polyline of every section and concatenates the results.
//
// Sections are processed in parallel against the shared read-only index. Each worker fills its own
// result slot, so the returned order follows the input sections, although callers should not rely
// on it.
func Find(sections []Section, index NearestIndex, params Params, opts ...Option) []Divergence {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = runtime.GOMAXPROCS(0)
	}

	// Sections run on up to workers goroutines; the remaining budget is split among their sample chunks
	active := max(1, min(o.workers, len(sections)))
	perSection := max(1, o.workers/active)

	results := make([][]Divergence, len(sections))
	reporter := newReporter(len(sections), o.progress)

	var g errgroup.Group
	g.SetLimit(active)
	for i, section := range sections {
		g.Go(func() error {
			var samples int
			for _, line := range section.Geometry {
				divs, n := detectLine(section.Name, line, index, params, perSection)
				samples += n
				results[i] = append(results[i], divs...)
			}
			reporter.done(Progress{
				Section:   section.Name,
				Polylines: len(section.Geometry),
				Samples:   samples,
				Found:     len(results[i]),
			})
			return nil
		})
	}
	_ = g.Wait()

	var total int
	for _, r := range results {
		total += len(r)
	}
	divergences := make([]Divergence, 0, total)
	for _, r := range results {
		divergences = append(divergences, r...)
	}
	return divergences
}

// reporter serializes progress callbacks and tracks completion
type reporter struct {
	mu        sync.Mutex
	completed int
	total     int
	fn        ProgressFunc
}

func newReporter(total int, fn ProgressFunc) *reporter {
	return &reporter{total: total, fn: fn}
}

func (r *reporter) done(p Progress) {
	if r.fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.completed++
	p.Completed = r.completed
	p.Total = r.total
	r.fn(p)
}
