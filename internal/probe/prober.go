package probe

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/nao1215/idscan/internal/catalog"
	"github.com/nao1215/idscan/internal/htmlmeta"
	"github.com/nao1215/idscan/internal/model"
	"github.com/nao1215/idscan/internal/transform"
)

// Prober executes one presence probe at a time against catalog sites.
//
// Design decision: We require an external http.Client rather than
// creating one internally because:
//  1. Proxy configuration (clearnet or Tor) is handled by the tor package
//  2. The client owns the timeout policy; the prober never blocks past it
//  3. Tests inject httptest servers through the same path
type Prober struct {
	// client is the shared HTTP client for all probes of a run.
	client *http.Client

	// userAgent is the User-Agent header to use for requests.
	userAgent string

	// maxBodySize limits the response body size to prevent memory
	// exhaustion. Default is 10MB.
	maxBodySize int64
}

// ProberOption configures a Prober.
type ProberOption func(*Prober)

// WithUserAgent sets a custom User-Agent header.
// Some catalog sites answer bot User-Agents with a block page that
// defeats the match markers, so the default mimics a common browser.
func WithUserAgent(ua string) ProberOption {
	return func(p *Prober) {
		if ua != "" {
			p.userAgent = ua
		}
	}
}

// WithMaxBodySize sets the maximum response body size read per probe.
func WithMaxBodySize(size int64) ProberOption {
	return func(p *Prober) {
		if size > 0 {
			p.maxBodySize = size
		}
	}
}

// NewProber creates a prober that issues requests through the given
// client. The client should be pre-configured with timeouts and, when
// scanning through Tor, the SOCKS5 proxy.
func NewProber(client *http.Client, opts ...ProberOption) *Prober {
	p := &Prober{
		client: client,
		// Default User-Agent mimics Firefox on Linux to blend in.
		userAgent:   "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0",
		maxBodySize: 10 * 1024 * 1024, // 10MB
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Probe checks one (site, identifier) pair and classifies the response.
// Transport failures are returned as results, never as errors: a dead
// or slow site must not abort its sibling probes.
func (p *Prober) Probe(ctx context.Context, site *catalog.SiteDefinition, identifier model.Identifier) TaskResult {
	result := TaskResult{Site: *site, Identifier: identifier}

	substituted := transform.Apply(identifier.String(), site.InputOperation)
	target := site.ProfileURL(substituted)

	req, err := p.buildRequest(ctx, site, substituted, target)
	if err != nil {
		result.Verdict = VerdictTransportFailure
		result.FailureReason = err.Error()
		return result
	}

	resp, err := p.client.Do(req)
	if err != nil {
		result.Verdict = VerdictTransportFailure
		result.FailureReason = err.Error()
		return result
	}
	defer resp.Body.Close()

	// HEAD probes classify on status alone; reading the body would
	// only ever yield an empty string.
	var body string
	if site.Method != http.MethodHead {
		data, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBodySize))
		if err != nil {
			result.Verdict = VerdictTransportFailure
			result.FailureReason = err.Error()
			return result
		}
		body = string(data)
	}

	finalURL := target
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	outcome := Outcome{
		StatusCode: resp.StatusCode,
		FinalURL:   finalURL,
		Body:       body,
	}

	if !Decide(site, outcome) {
		result.Verdict = VerdictNotFound
		return result
	}

	result.Verdict = VerdictFound
	result.Record = buildRecord(site, identifier, outcome)
	return result
}

// buildRequest shapes the probe request: the identifier is substituted
// into the URL and, for POST probes, the body template. Catalog headers
// override the defaults so sites can demand their own Content-Type or
// User-Agent.
func (p *Prober) buildRequest(ctx context.Context, site *catalog.SiteDefinition, substituted, target string) (*http.Request, error) {
	var bodyReader io.Reader
	if site.Method == http.MethodPost {
		if reqBody := site.RequestBody(substituted); reqBody != "" {
			bodyReader = strings.NewReader(reqBody)
		}
	}

	req, err := http.NewRequestWithContext(ctx, site.Method, target, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	for k, v := range site.Headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

// buildRecord materializes a positive verdict as a profile record: the
// guaranteed metadata keys, the dialect-specific context, and whatever
// page metadata the body offers.
func buildRecord(site *catalog.SiteDefinition, identifier model.Identifier, outcome Outcome) *model.ProfileRecord {
	record := model.NewProfileRecord(outcome.FinalURL, identifier.String(), site.Name)
	record.Metadata[model.MetaSource] = site.Source
	record.Metadata[model.MetaStatusCode] = outcome.StatusCode

	if site.HomeURL != "" {
		record.Metadata[model.MetaURLMain] = site.HomeURL
	}
	if site.Category != "" {
		record.Metadata[model.MetaCategory] = site.Category
	}
	if site.InputOperation != "" {
		record.Metadata[model.MetaInputOperation] = site.InputOperation
	}
	if len(site.Rule.Kinds) > 0 {
		record.Metadata[model.MetaErrorType] = joinKinds(site.Rule.Kinds)
	}

	meta := htmlmeta.Extract(outcome.Body, outcome.FinalURL)
	meta.AddTo(record.Metadata)
	record.Bio = meta.Description
	record.ImageURL = meta.ImageURL

	return record
}

// joinKinds flattens the declared rule kinds for the error_type
// metadata entry. A comma-joined string survives JSON round-trips
// through the database, unlike a string slice.
func joinKinds(kinds []catalog.RuleKind) string {
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, string(k))
	}
	return strings.Join(parts, ",")
}
