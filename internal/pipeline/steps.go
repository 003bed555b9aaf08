package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nao1215/idscan/internal/aggregate"
	"github.com/nao1215/idscan/internal/catalog"
	"github.com/nao1215/idscan/internal/config"
	"github.com/nao1215/idscan/internal/database"
	"github.com/nao1215/idscan/internal/model"
	"github.com/nao1215/idscan/internal/probe"
)

// probeWave pairs one prepared catalog with the identifiers probed
// against it. A username run produces a single wave. An email run
// produces one wave for the email catalog and, when local-part scanning
// is enabled, a second wave probing each address's local part against
// the username catalogs.
type probeWave struct {
	sites       []catalog.SiteDefinition
	identifiers []model.Identifier
}

// RunState carries staged catalog data from the catalog step to the
// probe step within a single run. The report cannot hold it: site
// definitions are loading detail, not scan output. The zero value is
// ready to use; steps share one instance.
type RunState struct {
	waves []probeWave
}

// CatalogStep loads the site catalogs for the run mode, applies the
// category and NSFW filters plus per-site overrides, and stages the
// probe waves for the probe step.
//
// Design decision: Catalog loading is a separate step because:
// 1. It fails fast, before any network traffic, when nothing is probeable
// 2. It records the catalog counters the report needs (loaded, filtered,
// total probes) in one place
// 3. Probing stays a pure catalog-in, records-out stage
type CatalogStep struct {
	// cfg supplies catalog paths, filters, and per-site overrides.
	cfg *config.Config

	// state receives the staged probe waves.
	state *RunState

	// logger for structured logging.
	logger *slog.Logger
}

// CatalogStepOption configures a CatalogStep.
type CatalogStepOption func(*CatalogStep)

// WithCatalogLogger sets a custom logger for the catalog step.
func WithCatalogLogger(logger *slog.Logger) CatalogStepOption {
	return func(s *CatalogStep) {
		s.logger = logger
	}
}

// NewCatalogStep creates a new catalog loading step.
// The staged waves are written to state for the probe step to consume.
func NewCatalogStep(cfg *config.Config, state *RunState, opts ...CatalogStepOption) *CatalogStep {
	s := &CatalogStep{
		cfg:    cfg,
		state:  state,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *CatalogStep) Name() string {
	return "catalog"
}

// Do executes the catalog step. A run cancelled before any catalog is
// loaded has nothing to salvage, so a dead context aborts here.
func (s *CatalogStep) Do(ctx context.Context, report *model.ScanReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var loaded int
	var err error
	switch report.Mode {
	case model.ModeEmail:
		loaded, err = s.stageEmailWaves(report)
	default:
		loaded, err = s.stageUsernameWave(report)
	}
	if err != nil {
		return err
	}

	filtered, probes := 0, 0
	for _, wave := range s.state.waves {
		filtered += len(wave.sites)
		probes += len(wave.sites) * len(wave.identifiers)
	}
	report.CatalogSize = loaded
	report.FilteredSize = filtered
	report.TotalProbes = probes

	if filtered == 0 {
		return ErrNoCatalog
	}

	s.logger.Info("catalog staged",
		"loaded", loaded,
		"filtered", filtered,
		"probes", probes,
	)

	return nil
}

// stageUsernameWave stages one wave probing every identifier against
// the union of the manifest and site-list catalogs.
func (s *CatalogStep) stageUsernameWave(report *model.ScanReport) (int, error) {
	ids, err := usernames(report.Identifiers)
	if err != nil {
		return 0, err
	}

	sites, loaded, err := s.loadUsernameCatalogs()
	if err != nil {
		return 0, err
	}

	s.state.waves = append(s.state.waves, probeWave{sites: sites, identifiers: ids})
	return loaded, nil
}

// stageEmailWaves stages the email catalog wave and, when local-part
// scanning is on, a second wave probing each address's local part
// against the username catalogs.
func (s *CatalogStep) stageEmailWaves(report *model.ScanReport) (int, error) {
	ids := make([]model.Identifier, 0, len(report.Identifiers))
	for _, raw := range report.Identifiers {
		id, err := model.NewEmail(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid email %q: %w", raw, err)
		}
		ids = append(ids, id)
	}

	emailSites, err := s.loadCatalog(s.cfg.EmailSitesPath, catalog.LoadEmailSiteListFile)
	if err != nil {
		return 0, err
	}
	loaded := len(emailSites)
	s.state.waves = append(s.state.waves, probeWave{
		sites:       s.prepare(emailSites),
		identifiers: ids,
	})

	if !s.cfg.ScanLocalPart {
		return loaded, nil
	}

	locals, err := localParts(ids)
	if err != nil {
		return 0, err
	}
	userSites, userLoaded, err := s.loadUsernameCatalogs()
	if err != nil {
		return 0, err
	}
	loaded += userLoaded
	s.state.waves = append(s.state.waves, probeWave{
		sites:       userSites,
		identifiers: locals,
	})

	return loaded, nil
}

// loadUsernameCatalogs loads and prepares the manifest and site-list
// catalogs. The returned count is the number of entries loaded before
// filtering.
func (s *CatalogStep) loadUsernameCatalogs() ([]catalog.SiteDefinition, int, error) {
	manifest, err := s.loadCatalog(s.cfg.ManifestPath, catalog.LoadManifestFile)
	if err != nil {
		return nil, 0, err
	}

	siteList, err := s.loadCatalog(s.cfg.SitesPath, catalog.LoadSiteListFile)
	if err != nil {
		return nil, 0, err
	}

	loaded := len(manifest) + len(siteList)
	sites := append(s.prepare(manifest), s.prepare(siteList)...)
	return sites, loaded, nil
}

// loadCatalog loads one catalog file, treating a missing file as an
// empty catalog. Users rarely install every catalog file; the step
// fails later only if no catalog yields any entry at all.
func (s *CatalogStep) loadCatalog(path string, load func(string) ([]catalog.SiteDefinition, error)) ([]catalog.SiteDefinition, error) {
	sites, err := load(path)
	if err != nil {
		if errors.Is(err, catalog.ErrCatalogNotFound) {
			s.logger.Debug("catalog file not found, skipping", "path", path)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load catalog %s: %w", path, err)
	}

	s.logger.Debug("catalog loaded", "path", path, "entries", len(sites))
	return sites, nil
}

// prepare filters one catalog and applies the per-site overrides from
// the configuration file.
func (s *CatalogStep) prepare(sites []catalog.SiteDefinition) []catalog.SiteDefinition {
	filtered := catalog.Filter(sites, catalog.FilterOptions{
		ExcludeNSFW: s.cfg.ExcludeNSFW,
		Categories:  s.cfg.Categories,
	})
	return s.applySiteConfigs(filtered)
}

// applySiteConfigs applies the .idscan per-site overrides: disabled
// sites are dropped, a configured cookie becomes a Cookie header, and
// configured headers win over catalog headers on key conflicts.
func (s *CatalogStep) applySiteConfigs(sites []catalog.SiteDefinition) []catalog.SiteDefinition {
	if s.cfg.SiteConfigs == nil {
		return sites
	}

	kept := make([]catalog.SiteDefinition, 0, len(sites))
	for _, site := range sites {
		sc := s.cfg.SiteConfigs.GetSiteConfig(model.NetworkSlug(site.Name))
		if sc.Disabled {
			s.logger.Debug("site disabled by config", "site", site.Name)
			continue
		}

		if sc.Cookie != "" || len(sc.Headers) > 0 {
			// Copy before merging; the definition is shared read-only.
			headers := make(map[string]string, len(site.Headers)+len(sc.Headers)+1)
			for k, v := range site.Headers {
				headers[k] = v
			}
			for k, v := range sc.Headers {
				headers[k] = v
			}
			if sc.Cookie != "" {
				headers["Cookie"] = sc.Cookie
			}
			site.Headers = headers
		}

		kept = append(kept, site)
	}

	return kept
}

// usernames parses raw identifier values as usernames.
func usernames(raw []string) ([]model.Identifier, error) {
	ids := make([]model.Identifier, 0, len(raw))
	for _, value := range raw {
		id, err := model.NewUsername(value)
		if err != nil {
			return nil, fmt.Errorf("invalid username %q: %w", value, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// localParts converts email identifiers into username identifiers built
// from their local parts, deduplicating repeats across addresses.
func localParts(ids []model.Identifier) ([]model.Identifier, error) {
	seen := make(map[string]struct{}, len(ids))
	locals := make([]model.Identifier, 0, len(ids))
	for _, id := range ids {
		local := id.LocalPart()
		if _, ok := seen[local]; ok {
			continue
		}
		seen[local] = struct{}{}

		username, err := model.NewUsername(local)
		if err != nil {
			return nil, fmt.Errorf("local part of %q is not probeable: %w", id.String(), err)
		}
		locals = append(locals, username)
	}
	return locals, nil
}

// ProbeStep runs the staged probe waves through a bounded worker pool
// and appends confirmed profiles to the report.
//
// Design decision: Probing is a separate step because:
// 1. It is the only stage that touches the network
// 2. Cancellation semantics differ from the other stages: an
// interrupted wave is a partial result, not a failure
// 3. It produces raw records; cleaning them up is the aggregate step's job
type ProbeStep struct {
	// client is the HTTP client, optionally configured with a SOCKS5 proxy.
	client *http.Client

	// cfg supplies probe tuning (concurrency, user agent, body limit).
	cfg *config.Config

	// state holds the waves staged by the catalog step.
	state *RunState

	// progress is invoked as probes complete; nil disables reporting.
	progress probe.ProgressFunc

	// logger for structured logging.
	logger *slog.Logger
}

// ProbeStepOption configures a ProbeStep.
type ProbeStepOption func(*ProbeStep)

// WithProbeProgress sets the progress callback invoked as probes
// complete. Multi-wave runs report a single done count against the
// grand total of all waves, so the indicator never restarts.
func WithProbeProgress(fn probe.ProgressFunc) ProbeStepOption {
	return func(s *ProbeStep) {
		s.progress = fn
	}
}

// WithProbeLogger sets a custom logger for the probe step.
func WithProbeLogger(logger *slog.Logger) ProbeStepOption {
	return func(s *ProbeStep) {
		s.logger = logger
	}
}

// NewProbeStep creates a new probing step.
// The client should already carry any proxy configuration; the step
// never rewrites transport settings.
func NewProbeStep(client *http.Client, cfg *config.Config, state *RunState, opts ...ProbeStepOption) *ProbeStep {
	s := &ProbeStep{
		client: client,
		cfg:    cfg,
		state:  state,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ProbeStep) Name() string {
	return "probe"
}

// Do executes the probe step, running every staged wave in sequence.
// Cancellation mid-wave is not an error: the records confirmed so far
// stay on the report and the report is marked interrupted, so the
// remaining steps aggregate and persist the partial results.
func (s *ProbeStep) Do(ctx context.Context, report *model.ScanReport) error {
	grandTotal := 0
	for _, wave := range s.state.waves {
		grandTotal += len(wave.sites) * len(wave.identifiers)
	}

	prober := probe.NewProber(s.client,
		probe.WithUserAgent(s.cfg.UserAgent),
		probe.WithMaxBodySize(s.cfg.MaxBodySize),
	)

	offset := 0
	for _, wave := range s.state.waves {
		runner := probe.NewRunner(prober,
			probe.WithConcurrency(s.cfg.Concurrency),
			probe.WithProgress(s.waveProgress(offset, grandTotal)),
			probe.WithLogger(s.logger),
		)

		records, err := runner.Run(ctx, wave.sites, wave.identifiers)
		report.Profiles = append(report.Profiles, records...)
		if err != nil {
			s.logger.Warn("probe run interrupted",
				"found", len(records),
				"error", err,
			)
			report.Interrupted = true
			return nil
		}

		offset += len(wave.sites) * len(wave.identifiers)
	}

	return nil
}

// waveProgress shifts a wave's progress ticks into the run-wide
// sequence. The leading zero tick of any wave after the first is
// dropped so the reported done count never moves backwards.
func (s *ProbeStep) waveProgress(offset, grandTotal int) probe.ProgressFunc {
	if s.progress == nil {
		return nil
	}
	return func(done, _ int, label string) {
		if offset > 0 && done == 0 {
			return
		}
		s.progress(offset+done, grandTotal, label)
	}
}

// AggregateStep deduplicates the probe records across catalogs and
// applies the strict false-positive filter.
//
// Design decision: Aggregation is a separate step because:
// 1. It operates on the accumulated records from all waves at once;
// per-wave cleanup could not see duplicates across catalogs
// 2. It has its own configuration (dedupe, strict lists)
// 3. It is pure CPU, so it runs to completion even on interrupted runs
type AggregateStep struct {
	// cfg supplies the dedupe and strict filter settings.
	cfg *config.Config

	// logger for structured logging.
	logger *slog.Logger
}

// AggregateStepOption configures an AggregateStep.
type AggregateStepOption func(*AggregateStep)

// WithAggregateLogger sets a custom logger for the aggregate step.
func WithAggregateLogger(logger *slog.Logger) AggregateStepOption {
	return func(s *AggregateStep) {
		s.logger = logger
	}
}

// NewAggregateStep creates a new aggregation step.
func NewAggregateStep(cfg *config.Config, opts ...AggregateStepOption) *AggregateStep {
	s := &AggregateStep{
		cfg:    cfg,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *AggregateStep) Name() string {
	return "aggregate"
}

// Do executes the aggregation step. It works on whatever the probe
// step collected, so interrupted runs still get a clean result set.
func (s *AggregateStep) Do(_ context.Context, report *model.ScanReport) error {
	agg := aggregate.NewAggregator(
		aggregate.WithDedupe(s.cfg.Dedupe),
		aggregate.WithStrict(s.cfg.Strict),
		aggregate.WithDenyList(s.cfg.StrictDenyList),
		aggregate.WithSuspiciousFragments(s.cfg.StrictURLFragments),
		aggregate.WithLogger(s.logger),
	)

	result := agg.Aggregate(report.Profiles, report.Identifiers)
	report.Profiles = result.Records
	report.DedupeDropped = result.DedupeDropped
	report.StrictDropped = result.StrictDropped

	s.logger.Info("aggregation completed",
		"kept", len(result.Records),
		"dedupe_dropped", result.DedupeDropped,
		"strict_dropped", result.StrictDropped,
	)

	return nil
}

// PersistStep saves the finished report to the scan database, where the
// compare command picks it up later.
type PersistStep struct {
	// db is the scan database; nil disables persistence.
	db *database.ScanDB

	// logger for structured logging.
	logger *slog.Logger
}

// PersistStepOption configures a PersistStep.
type PersistStepOption func(*PersistStep)

// WithPersistLogger sets a custom logger for the persist step.
func WithPersistLogger(logger *slog.Logger) PersistStepOption {
	return func(s *PersistStep) {
		s.logger = logger
	}
}

// NewPersistStep creates a new persistence step.
func NewPersistStep(db *database.ScanDB, opts ...PersistStepOption) *PersistStep {
	s := &PersistStep{
		db:     db,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do executes the persistence step. The save runs on a detached
// context: a user who cancels mid-probe still wants the partial
// results on disk for the compare command.
func (s *PersistStep) Do(ctx context.Context, report *model.ScanReport) error {
	if s.db == nil {
		s.logger.Debug("no database configured, skipping persist")
		return nil
	}

	if err := s.db.SaveScanReport(context.WithoutCancel(ctx), report); err != nil {
		return fmt.Errorf("failed to save scan report: %w", err)
	}

	s.logger.Info("scan report saved", "identifiers", report.Identifiers)
	return nil
}

// ScanPipeline creates the standard pipeline for a presence-probing
// run: catalog, probe, aggregate, and persist. The persist step is only
// added when db is non-nil, so --no-save-db runs skip it entirely.
//
// Design decision: We provide a default pipeline because:
// 1. Most users want the full sequence
// 2. Reduces boilerplate in CLI
// 3. Ensures consistent ordering
//
// The steps share most of the run configuration (catalog paths,
// filters, probe tuning, strict lists), so the full config is accepted
// here instead of per-step options. Callers needing a custom step mix
// can assemble their own Pipeline with New and AddSteps.
func ScanPipeline(client *http.Client, cfg *config.Config, db *database.ScanDB, progress probe.ProgressFunc, pipelineOpts ...Option) *Pipeline {
	p := New(pipelineOpts...)

	state := &RunState{}
	p.AddSteps(
		NewCatalogStep(cfg, state, WithCatalogLogger(p.logger)),
		NewProbeStep(client, cfg, state,
			WithProbeProgress(progress),
			WithProbeLogger(p.logger),
		),
		NewAggregateStep(cfg, WithAggregateLogger(p.logger)),
	)
	if db != nil {
		p.AddStep(NewPersistStep(db, WithPersistLogger(p.logger)))
	}

	return p
}
