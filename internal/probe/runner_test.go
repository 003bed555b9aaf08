package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/idscan/internal/catalog"
	"github.com/nao1215/idscan/internal/model"
)

// progressRecorder collects ticks so tests can assert the progress
// contract: one initial (0, total, "") tick, then exactly one tick per
// completed probe with strictly increasing done values.
type progressRecorder struct {
	mu    sync.Mutex
	ticks []progressTick
}

type progressTick struct {
	done  int
	total int
	label string
}

func (p *progressRecorder) record(done, total int, label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ticks = append(p.ticks, progressTick{done: done, total: total, label: label})
}

func (p *progressRecorder) snapshot() []progressTick {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]progressTick(nil), p.ticks...)
}

func okSite(name, url string) catalog.SiteDefinition {
	return catalog.SiteDefinition{
		Name:        name,
		Source:      model.SourceManifest,
		URLTemplate: url + "/{}",
		Method:      http.MethodGet,
		Rule: catalog.MatchRule{
			Kinds:         []catalog.RuleKind{catalog.RuleStatusCode},
			NotFoundCodes: []int{404},
		},
	}
}

func TestRunnerRun(t *testing.T) {
	t.Parallel()

	t.Run("collects one record per positive match", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Only alice exists on site-a; bob exists nowhere.
			if strings.HasPrefix(r.URL.Path, "/a/") && strings.HasSuffix(r.URL.Path, "alice") {
				w.WriteHeader(http.StatusOK)
				return
			}
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		sites := []catalog.SiteDefinition{
			okSite("Site A", server.URL+"/a"),
			okSite("Site B", server.URL+"/b"),
		}
		identifiers := []model.Identifier{
			model.MustNewUsername("alice"),
			model.MustNewUsername("bob"),
		}

		runner := NewRunner(NewProber(server.Client()))
		records, err := runner.Run(context.Background(), sites, identifiers)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("expected 1 record, got %d", len(records))
		}
		if records[0].Identifier != "alice" {
			t.Errorf("unexpected identifier: %q", records[0].Identifier)
		}
		if records[0].NetworkSlug != "site-a" {
			t.Errorf("unexpected slug: %q", records[0].NetworkSlug)
		}
	})

	t.Run("progress ticks once per probe plus the initial total", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		sites := make([]catalog.SiteDefinition, 5)
		for i := range sites {
			sites[i] = okSite(fmt.Sprintf("Site %d", i), server.URL)
		}
		identifiers := []model.Identifier{
			model.MustNewUsername("alice"),
			model.MustNewUsername("bob"),
		}
		total := len(sites) * len(identifiers)

		recorder := &progressRecorder{}
		runner := NewRunner(NewProber(server.Client()), WithConcurrency(3), WithProgress(recorder.record))

		if _, err := runner.Run(context.Background(), sites, identifiers); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		ticks := recorder.snapshot()
		if len(ticks) != total+1 {
			t.Fatalf("expected %d ticks, got %d", total+1, len(ticks))
		}
		first := ticks[0]
		if first.done != 0 || first.total != total || first.label != "" {
			t.Errorf("unexpected initial tick: %+v", first)
		}
		for i, tick := range ticks[1:] {
			if tick.done != i+1 {
				t.Errorf("tick %d: done = %d, want %d", i+1, tick.done, i+1)
			}
			if tick.total != total {
				t.Errorf("tick %d: total = %d, want %d", i+1, tick.total, total)
			}
			if !strings.HasPrefix(tick.label, model.SourceManifest+":") {
				t.Errorf("tick %d: unexpected label %q", i+1, tick.label)
			}
		}
		last := ticks[len(ticks)-1]
		if last.done != total {
			t.Errorf("final done = %d, want %d", last.done, total)
		}
	})

	t.Run("in-flight probes never exceed the ceiling", func(t *testing.T) {
		t.Parallel()

		const limit = 3

		var current, peak atomic.Int32
		var mu sync.Mutex
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			now := current.Add(1)
			mu.Lock()
			if now > peak.Load() {
				peak.Store(now)
			}
			mu.Unlock()

			time.Sleep(30 * time.Millisecond)

			current.Add(-1)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		sites := make([]catalog.SiteDefinition, 4*limit)
		for i := range sites {
			sites[i] = okSite(fmt.Sprintf("Site %d", i), server.URL)
		}
		identifiers := []model.Identifier{model.MustNewUsername("alice")}

		runner := NewRunner(NewProber(server.Client()), WithConcurrency(limit))
		if _, err := runner.Run(context.Background(), sites, identifiers); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if peak.Load() > limit {
			t.Errorf("peak concurrency was %d, expected <= %d", peak.Load(), limit)
		}
	})

	t.Run("failures and misses still tick progress", func(t *testing.T) {
		t.Parallel()

		missServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer missServer.Close()

		deadServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		deadServer.Close()

		sites := []catalog.SiteDefinition{
			okSite("Missing", missServer.URL),
			okSite("Dead", deadServer.URL),
		}
		identifiers := []model.Identifier{model.MustNewUsername("alice")}

		recorder := &progressRecorder{}
		runner := NewRunner(NewProber(http.DefaultClient), WithProgress(recorder.record))

		records, err := runner.Run(context.Background(), sites, identifiers)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(records) != 0 {
			t.Fatalf("expected no records, got %d", len(records))
		}
		ticks := recorder.snapshot()
		if len(ticks) != 3 {
			t.Fatalf("expected 3 ticks, got %d", len(ticks))
		}
		if ticks[len(ticks)-1].done != 2 {
			t.Errorf("final done = %d, want 2", ticks[len(ticks)-1].done)
		}
	})

	t.Run("panicking progress sink does not interrupt probing", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		sites := []catalog.SiteDefinition{
			okSite("Site A", server.URL),
			okSite("Site B", server.URL),
		}
		identifiers := []model.Identifier{model.MustNewUsername("alice")}

		runner := NewRunner(
			NewProber(server.Client()),
			WithProgress(func(_, _ int, _ string) { panic("broken sink") }),
		)

		records, err := runner.Run(context.Background(), sites, identifiers)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(records) != 2 {
			t.Errorf("expected 2 records, got %d", len(records))
		}
	})

	t.Run("cancelled context aborts remaining probes", func(t *testing.T) {
		t.Parallel()

		var started atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started.Add(1)
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		sites := make([]catalog.SiteDefinition, 10)
		for i := range sites {
			sites[i] = okSite(fmt.Sprintf("Site %d", i), server.URL)
		}
		identifiers := []model.Identifier{model.MustNewUsername("alice")}

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()

		runner := NewRunner(NewProber(server.Client()), WithConcurrency(2))
		_, err := runner.Run(ctx, sites, identifiers)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if started.Load() >= int32(len(sites)) {
			t.Error("expected some probes to not start after cancellation")
		}
	})

	t.Run("empty inputs complete with a zero-total tick", func(t *testing.T) {
		t.Parallel()

		recorder := &progressRecorder{}
		runner := NewRunner(NewProber(http.DefaultClient), WithProgress(recorder.record))

		records, err := runner.Run(context.Background(), nil, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(records) != 0 {
			t.Errorf("expected no records, got %d", len(records))
		}
		ticks := recorder.snapshot()
		if len(ticks) != 1 {
			t.Fatalf("expected 1 tick, got %d", len(ticks))
		}
		if ticks[0].done != 0 || ticks[0].total != 0 {
			t.Errorf("unexpected tick: %+v", ticks[0])
		}
	})
}

func TestRunnerEndToEnd(t *testing.T) {
	t.Parallel()

	// The classic smoke test: one manifest entry, one identifier, a
	// transport that confirms the profile page, exactly one record out.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/alice/profile" {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("<html><title>alice</title></html>")) //nolint:errcheck
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	manifest := fmt.Sprintf(`{
		"demo": {
			"url": "%s/{}/profile",
			"errorType": "status_code",
			"errorCode": [404]
		}
	}`, server.URL)

	sites, err := catalog.LoadManifest(strings.NewReader(manifest))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	runner := NewRunner(NewProber(server.Client()))
	records, err := runner.Run(context.Background(), sites, []model.Identifier{model.MustNewUsername("alice")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("expected exactly 1 record, got %d", len(records))
	}
	record := records[0]
	if record.Identifier != "alice" {
		t.Errorf("unexpected identifier: %q", record.Identifier)
	}
	if record.NetworkSlug != "demo" {
		t.Errorf("unexpected slug: %q", record.NetworkSlug)
	}
	if !record.Exists {
		t.Error("record must be a positive match")
	}
	if record.SourceURL != server.URL+"/alice/profile" {
		t.Errorf("unexpected source URL: %q", record.SourceURL)
	}
}
