package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"docuforge/internal/db"
	"docuforge/internal/dedup"
	"docuforge/internal/fetch"
)

// fakeStore is an in-memory jobStore, grounded on the teacher's
// fakeJobStore pattern in internal/http/crawl_worker_test.go.
type fakeStore struct {
	mu sync.Mutex

	discovered, queued, processed, skipped, failed int32
	pageResults                                     []db.PageResult
	casCalls                                        []string
	finalMarkdown                                   string
}

func (f *fakeStore) IncrementCounters(_ context.Context, _ uuid.UUID, discovered, queued, processed, skipped, failed int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discovered += discovered
	f.queued += queued
	f.processed += processed
	f.skipped += skipped
	f.failed += failed
	return nil
}

func (f *fakeStore) AddPageResult(_ context.Context, jobID uuid.UUID, url, title, markdown string, wordCount int32, contentHash, status string, errMsg *string, depth int32, parentURL *string) (db.PageResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pr := db.PageResult{
		JobID: jobID, URL: url, WordCount: wordCount, ContentHash: contentHash,
		Status: status, Depth: depth,
	}
	pr.Title.String, pr.Title.Valid = title, title != ""
	pr.Markdown.String, pr.Markdown.Valid = markdown, markdown != ""
	f.pageResults = append(f.pageResults, pr)
	return pr, nil
}

func (f *fakeStore) ListPageResults(_ context.Context, _ uuid.UUID) ([]db.PageResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]db.PageResult, len(f.pageResults))
	copy(out, f.pageResults)
	return out, nil
}

func (f *fakeStore) CASJobStatus(_ context.Context, _ uuid.UUID, newStatus string, _ []string, _ *string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.casCalls = append(f.casCalls, newStatus)
	return true, nil
}

func (f *fakeStore) SetFinalMarkdown(_ context.Context, _ uuid.UUID, markdown string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalMarkdown = markdown
	return nil
}

// fakeBus records every published event.
type fakeBus struct {
	mu     sync.Mutex
	nextID int64
	events []db.Event
}

func (b *fakeBus) Publish(_ context.Context, jobID uuid.UUID, eventType string, payload map[string]any) (db.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	ev := db.Event{JobID: jobID, EventID: b.nextID, EventType: eventType}
	b.events = append(b.events, ev)
	_ = payload
	return ev, nil
}

func (b *fakeBus) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.EventType
	}
	return out
}

// fakeFetcher serves canned responses by URL, defaulting to a network
// error for anything not registered.
type fakeFetcher struct {
	byURL map[string]*fetch.Response
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string, _ fetch.Options) (*fetch.Response, fetch.ErrorKind) {
	if resp, ok := f.byURL[rawURL]; ok {
		return resp, fetch.ErrNone
	}
	return nil, fetch.ErrNetwork
}

func (f *fakeFetcher) FetchWithRetry(_ context.Context, rawURL string, _ fetch.Options) (*fetch.Response, fetch.ErrorKind, int) {
	if resp, ok := f.byURL[rawURL]; ok {
		return resp, fetch.ErrNone, 1
	}
	return nil, fetch.ErrNetwork, 3
}

// flakyFetcher fails a registered URL's first failuresBeforeSuccess calls
// with a retryable error, then serves the canned response.
type flakyFetcher struct {
	mu                    sync.Mutex
	byURL                 map[string]*fetch.Response
	failuresBeforeSuccess map[string]int
	calls                 map[string]int
}

func (f *flakyFetcher) Fetch(_ context.Context, rawURL string, _ fetch.Options) (*fetch.Response, fetch.ErrorKind) {
	f.mu.Lock()
	f.calls[rawURL]++
	call := f.calls[rawURL]
	f.mu.Unlock()

	if call <= f.failuresBeforeSuccess[rawURL] {
		return nil, fetch.ErrNetwork
	}
	if resp, ok := f.byURL[rawURL]; ok {
		return resp, fetch.ErrNone
	}
	return nil, fetch.ErrNetwork
}

func (f *flakyFetcher) FetchWithRetry(ctx context.Context, rawURL string, opts fetch.Options) (*fetch.Response, fetch.ErrorKind, int) {
	resp, kind := f.Fetch(ctx, rawURL, opts)
	return resp, kind, 1
}

const longArticleHTML = `<html><head><title>Docs</title></head><body>
<main>
<h1>Getting Started</h1>
<p>This is a sufficiently long paragraph of prose describing how to install and configure the
tool, with enough words to clear the minimum content quality gate enforced by the extractor.</p>
<p>It goes on for a while about configuration options, command line flags, and typical usage
patterns so that the word count comfortably exceeds the default quality threshold.</p>
</main>
</body></html>`

func newTestInstance(t *testing.T, st *fakeStore, bus *fakeBus, ff fetcher, cfg Config) *Instance {
	t.Helper()
	dc := dedup.New(nil, time.Minute)
	inst, err := New(uuid.New(), uuid.New(), "https://example.com/docs", cfg, st, bus, dc, ff, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return inst
}

func TestInstanceCompletesOnSuccessfulCrawl(t *testing.T) {
	st := &fakeStore{}
	bus := &fakeBus{}
	ff := &fakeFetcher{byURL: map[string]*fetch.Response{
		"https://example.com/docs": {StatusCode: 200, Body: []byte(longArticleHTML), FinalURL: "https://example.com/docs"},
	}}

	cfg := DefaultConfig()
	cfg.MaxPages = 5
	cfg.QualityThreshold = 1
	cfg.JobDeadline = 5 * time.Second

	inst := newTestInstance(t, st, bus, ff, cfg)
	inst.Run(context.Background())

	if inst.State() != StateCompleted {
		t.Fatalf("expected state completed, got %s", inst.State())
	}
	if len(st.casCalls) != 2 || st.casCalls[0] != "running" || st.casCalls[1] != string(StateCompleted) {
		t.Fatalf("expected exactly one CAS call to running then one to completed, got %v", st.casCalls)
	}
	if st.finalMarkdown == "" {
		t.Fatalf("expected final markdown to be set")
	}

	found := false
	for _, ev := range bus.types() {
		if ev == "job_completed" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a job_completed event, got %v", bus.types())
	}
}

func TestInstanceFailsWhenNoPageSucceeds(t *testing.T) {
	st := &fakeStore{}
	bus := &fakeBus{}
	ff := &fakeFetcher{byURL: map[string]*fetch.Response{}} // every fetch errors

	cfg := DefaultConfig()
	cfg.JobDeadline = 5 * time.Second

	inst := newTestInstance(t, st, bus, ff, cfg)
	inst.Run(context.Background())

	if inst.State() != StateFailed {
		t.Fatalf("expected state failed, got %s", inst.State())
	}
	if st.failed != 1 {
		t.Fatalf("expected failed counter 1, got %d", st.failed)
	}
}

func TestInstanceRetriesRetryableFetchErrorsViaQueueBackoff(t *testing.T) {
	st := &fakeStore{}
	bus := &fakeBus{}
	ff := &flakyFetcher{
		byURL: map[string]*fetch.Response{
			"https://example.com/docs": {StatusCode: 200, Body: []byte(longArticleHTML), FinalURL: "https://example.com/docs"},
		},
		failuresBeforeSuccess: map[string]int{"https://example.com/docs": 1},
		calls:                 map[string]int{},
	}

	cfg := DefaultConfig()
	cfg.QualityThreshold = 1
	cfg.JobDeadline = 10 * time.Second
	cfg.RespectRobots = false

	inst := newTestInstance(t, st, bus, ff, cfg)
	inst.Run(context.Background())

	if inst.State() != StateCompleted {
		t.Fatalf("expected state completed after a retried fetch succeeds, got %s", inst.State())
	}
	if ff.calls["https://example.com/docs"] != 2 {
		t.Fatalf("expected exactly 2 fetch attempts (1 failure + 1 success), got %d", ff.calls["https://example.com/docs"])
	}
	if st.failed != 0 {
		t.Fatalf("expected no failure recorded once the retry succeeds, got failed=%d", st.failed)
	}
}

func TestInstanceAdmitsSitemapURLsWhenEnabled(t *testing.T) {
	st := &fakeStore{}
	bus := &fakeBus{}
	sitemapXML := `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/docs/guide</loc></url>
</urlset>`
	ff := &fakeFetcher{byURL: map[string]*fetch.Response{
		"https://example.com/docs":        {StatusCode: 200, Body: []byte(longArticleHTML), FinalURL: "https://example.com/docs"},
		"https://example.com/sitemap.xml":  {StatusCode: 200, Body: []byte(sitemapXML)},
		"https://example.com/docs/guide":  {StatusCode: 200, Body: []byte(longArticleHTML), FinalURL: "https://example.com/docs/guide"},
	}}

	cfg := DefaultConfig()
	cfg.QualityThreshold = 1
	cfg.JobDeadline = 5 * time.Second
	cfg.UseSitemap = true
	cfg.RespectRobots = false

	inst := newTestInstance(t, st, bus, ff, cfg)
	inst.Run(context.Background())

	if inst.State() != StateCompleted {
		t.Fatalf("expected state completed, got %s", inst.State())
	}
	if st.discovered < 2 {
		t.Fatalf("expected sitemap URL to be admitted alongside the seed, discovered=%d", st.discovered)
	}

	foundSitemapEvent := false
	for _, ev := range bus.types() {
		if ev == "urls_discovered" {
			foundSitemapEvent = true
		}
	}
	if !foundSitemapEvent {
		t.Fatalf("expected a urls_discovered event for the sitemap seed, got %v", bus.types())
	}
}

func TestInstanceFinalizesExactlyOnce(t *testing.T) {
	st := &fakeStore{}
	bus := &fakeBus{}
	ff := &fakeFetcher{byURL: map[string]*fetch.Response{
		"https://example.com/docs": {StatusCode: 200, Body: []byte(longArticleHTML), FinalURL: "https://example.com/docs"},
	}}

	cfg := DefaultConfig()
	cfg.QualityThreshold = 1
	cfg.JobDeadline = 5 * time.Second

	inst := newTestInstance(t, st, bus, ff, cfg)
	inst.Run(context.Background())
	// A second drain (e.g. a duplicate deadline-exceeded branch firing
	// twice) must not re-finalize.
	inst.drain(context.Background())

	// One CAS to running from Run, plus exactly one terminal CAS.
	if len(st.casCalls) != 2 {
		t.Fatalf("expected finalization to run exactly once, got %d CAS calls: %v", len(st.casCalls), st.casCalls)
	}
}
