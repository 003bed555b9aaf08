package probe

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/idscan/internal/catalog"
	"github.com/nao1215/idscan/internal/model"
)

// DefaultConcurrency is the probe ceiling used when no limit is
// configured. Catalogs run into the hundreds of sites; twenty in-flight
// probes keeps a full manifest run fast without hammering any host.
const DefaultConcurrency = 20

// ProgressFunc receives completion ticks from a run. done counts
// finished probes, total is fixed for the whole run, and label names
// the probe that just finished as "source:site:identifier". Before any
// probe starts the runner reports (0, total, "") so sinks can render a
// determinate indicator.
type ProgressFunc func(done, total int, label string)

// Runner drives the cross product of sites and identifiers through a
// prober under a global concurrency ceiling.
//
// Design decision: We use errgroup.SetLimit rather than a hand-rolled
// worker pool because:
//  1. The hard ceiling on in-flight probes is the invariant, not the primitive
//  2. errgroup propagates context cancellation to queued tasks for free
//  3. It matches how every other bounded batch in this repo is built
type Runner struct {
	// prober executes individual probes.
	prober *Prober

	// concurrency is the maximum number of probes in flight, enforced
	// globally across the whole task set, not per site or identifier.
	concurrency int

	// progress receives completion ticks; nil disables reporting.
	progress ProgressFunc

	// logger is used for run-level logging.
	logger *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithConcurrency sets the maximum number of probes in flight.
// Default is DefaultConcurrency if not specified.
func WithConcurrency(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithProgress sets the progress sink. The sink is called from probe
// goroutines under the runner's result lock, so it should be cheap;
// panics inside it are swallowed.
func WithProgress(fn ProgressFunc) RunnerOption {
	return func(r *Runner) {
		r.progress = fn
	}
}

// WithLogger sets a custom logger for run-level logging.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a runner that probes through the given prober.
func NewRunner(prober *Prober, opts ...RunnerOption) *Runner {
	r := &Runner{
		prober:      prober,
		concurrency: DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}

	return r
}

// Run probes every (site, identifier) pair exactly once and returns
// the records of positive matches, in completion order. Negative
// verdicts and transport failures contribute nothing and never abort
// sibling probes.
//
// The error is non-nil only when the context was cancelled mid-run;
// records collected before the cancellation are returned alongside it.
func (r *Runner) Run(ctx context.Context, sites []catalog.SiteDefinition, identifiers []model.Identifier) ([]*model.ProfileRecord, error) {
	total := len(sites) * len(identifiers)

	r.logger.Info("starting probe run",
		"sites", len(sites),
		"identifiers", len(identifiers),
		"total_probes", total,
		"concurrency", r.concurrency,
	)
	startTime := time.Now()

	r.notify(0, total, "")

	var (
		mu      sync.Mutex
		records = make([]*model.ProfileRecord, 0)
		done    int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i := range sites {
		site := &sites[i]
		for _, identifier := range identifiers {
			g.Go(func() error {
				// Check for cancellation before issuing the request.
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}

				result := r.prober.Probe(gctx, site, identifier)

				switch result.Verdict {
				case VerdictFound:
					r.logger.Info("presence confirmed",
						"site", site.Name,
						"identifier", identifier.String(),
						"url", result.Record.SourceURL,
					)
				case VerdictTransportFailure:
					r.logger.Debug("probe failed",
						"site", site.Name,
						"identifier", identifier.String(),
						"reason", result.FailureReason,
					)
				case VerdictNotFound:
					// The common case; not worth a log line each.
				}

				// Ticking under the lock keeps the sink's done values
				// strictly increasing even when probes finish together.
				mu.Lock()
				if result.Found() {
					records = append(records, result.Record)
				}
				done++
				r.notify(done, total, probeLabel(site, identifier))
				mu.Unlock()

				return nil
			})
		}
	}

	err := g.Wait()

	r.logger.Info("probe run complete",
		"found", len(records),
		"total_probes", total,
		"elapsed", time.Since(startTime),
	)

	return records, err
}

// notify invokes the progress sink, swallowing panics so a broken sink
// can never destabilize probing.
func (r *Runner) notify(done, total int, label string) {
	if r.progress == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("progress sink panicked", "panic", rec)
		}
	}()
	r.progress(done, total, label)
}

// probeLabel names one probe for progress sinks.
func probeLabel(site *catalog.SiteDefinition, identifier model.Identifier) string {
	return fmt.Sprintf("%s:%s:%s", site.Source, site.Name, identifier.String())
}
