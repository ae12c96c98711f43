package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"docuforge/internal/content"
	"docuforge/internal/db"
	"docuforge/internal/events"
	"docuforge/internal/fetch"
	"docuforge/internal/queue"
	"docuforge/internal/urlpolicy"
)

// jobStore is the slice of *store.Store an Instance needs. Defining it
// here, rather than depending on the concrete type, lets tests substitute
// an in-memory fake instead of standing up Postgres.
type jobStore interface {
	IncrementCounters(ctx context.Context, id uuid.UUID, discovered, queued, processed, skipped, failed int32) error
	AddPageResult(ctx context.Context, jobID uuid.UUID, url, title, markdown string, wordCount int32, contentHash, status string, errMsg *string, depth int32, parentURL *string) (db.PageResult, error)
	ListPageResults(ctx context.Context, jobID uuid.UUID) ([]db.PageResult, error)
	CASJobStatus(ctx context.Context, id uuid.UUID, newStatus string, expectedOneOf []string, errMsg *string) (bool, error)
	SetFinalMarkdown(ctx context.Context, id uuid.UUID, markdown string) error
}

// eventPublisher is the slice of *events.Bus an Instance needs.
type eventPublisher interface {
	Publish(ctx context.Context, jobID uuid.UUID, eventType string, payload map[string]any) (db.Event, error)
}

// fetcher is the slice of *fetch.Client an Instance needs. Fetch is a
// single attempt, used for page fetches so the queue's own backoff owns
// retry timing without holding a concurrency slot through the sleep (see
// processTask); FetchWithRetry does all attempts synchronously in one call
// and is used only for the ancillary robots.txt/sitemap.xml lookups that
// never go through the queue.
type fetcher interface {
	Fetch(ctx context.Context, rawURL string, opts fetch.Options) (*fetch.Response, fetch.ErrorKind)
	FetchWithRetry(ctx context.Context, rawURL string, opts fetch.Options) (*fetch.Response, fetch.ErrorKind, int)
}

// dedupCache is the slice of *dedup.Cache an Instance needs.
type dedupCache interface {
	AddURLs(ctx context.Context, jobID string, urls []string) ([]string, error)
	HasHash(ctx context.Context, jobID, contentHash string) (bool, error)
	AddHash(ctx context.Context, jobID, contentHash string) error
	ScheduleClear(jobID string)
}

// Instance drives a single job's discovery -> fetch -> extract ->
// enqueue-children -> completion lifecycle (spec.md §4.6). The
// Orchestrator exclusively owns this state; the store and event bus are
// append-only from its side.
type Instance struct {
	id      uuid.UUID
	userID  uuid.UUID
	seedURL string
	cfg     Config

	store  jobStore
	bus    eventPublisher
	dedup  dedupCache
	fetch  fetcher
	scope  *urlpolicy.Scope
	logger *slog.Logger

	q *queue.Queue[task]

	state atomic.Value // State

	discovered atomic.Int32
	queued     atomic.Int32
	processed  atomic.Int32
	skipped    atomic.Int32
	failed     atomic.Int32
	okPages    atomic.Int32

	cancel  context.CancelFunc
	started time.Time

	finalizeOnce atomic.Bool
}

// New constructs an Instance for seedURL under cfg. cfg must already be
// fully resolved (callers apply Config.WithBase beforehand); New does not
// fill in missing fields, so that a deployment's configured defaults are
// never clobbered by the package's hardcoded ones. The
// instance does not start running until Run is called.
func New(id, userID uuid.UUID, seedURL string, cfg Config, st jobStore, bus eventPublisher, dc dedupCache, fc fetcher, logger *slog.Logger) (*Instance, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seed, err := url.Parse(seedURL)
	if err != nil {
		return nil, fmt.Errorf("invalid seed url: %w", err)
	}

	scope := urlpolicy.NewScope(seed, cfg.AllowedHosts, cfg.ExcludePatterns, cfg.RespectPathPrefix, cfg.FollowExternalLinks, cfg.MaxDepth)

	inst := &Instance{
		id: id, userID: userID, seedURL: seedURL, cfg: cfg,
		store: st, bus: bus, dedup: dc, fetch: fc, scope: scope, logger: logger,
	}
	inst.state.Store(StateInitializing)

	inst.q = queue.New[task](queue.Options{
		MaxConcurrent: cfg.MaxConcurrentRequests,
		RateLimit:     time.Duration(cfg.RateLimitMs) * time.Millisecond,
		TaskTimeout:   time.Duration(cfg.TimeoutMsPerRequest) * time.Millisecond,
		MaxAttempts:   fetch.MaxAttempts,
		BackoffBase:   time.Second,
	})

	return inst, nil
}

// State returns the job's current state.
func (in *Instance) State() State { return in.state.Load().(State) }

func (in *Instance) setState(s State) { in.state.Store(s) }

// Run executes the job to completion: admits the seed, drains the queue,
// finalizes, and publishes the terminal event. Run blocks until the job
// reaches a terminal state.
func (in *Instance) Run(ctx context.Context) {
	in.started = time.Now()
	ctx, cancel := context.WithTimeout(ctx, in.cfg.JobDeadline)
	in.cancel = cancel
	defer cancel()

	in.setState(StateRunning)
	if _, err := in.store.CASJobStatus(ctx, in.id, StateRunning.externalStatus(), dbActiveStates, nil); err != nil && in.logger != nil {
		in.logger.Warn("failed to record job as running", "job_id", in.id, "error", err)
	}
	in.publish(ctx, events.TypeStreamConnected, map[string]any{"seed_url": in.seedURL})

	in.applyRobots(ctx)

	seed, _ := urlpolicy.Normalize(in.seedURL, in.cfg.IncludeAnchors)
	in.admit(ctx, newTask(seed, 0, ""))

	if in.cfg.UseSitemap {
		in.admitFromSitemap(ctx)
	}

	done := make(chan struct{})
	go func() {
		in.q.Run(ctx, in.processTask)
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		<-done
	}

	in.drain(ctx)
}

// Cancel requests cooperative cancellation; in-flight tasks observe it on
// their next suspension point.
func (in *Instance) Cancel() {
	if in.cancel != nil {
		in.cancel()
	}
}

// admit applies the hard max_pages bound (spec.md §4.6/§9: refuse
// admission once the bound is reached, never silently requeue) and tracks
// the discovered counter.
func (in *Instance) admit(ctx context.Context, t task) bool {
	if !in.q.TryEnqueue(t, int64(in.cfg.MaxPages)) {
		return false
	}
	in.discovered.Add(1)
	in.queued.Add(1)
	_ = in.store.IncrementCounters(ctx, in.id, 1, 1, 0, 0, 0)
	return true
}

// fetchRaw performs a one-off GET through the same fetcher the page-fetch
// pipeline uses, for the ancillary robots.txt/sitemap.xml lookups that
// aren't part of that pipeline's dedup/content processing.
func (in *Instance) fetchRaw(ctx context.Context, rawURL string) ([]byte, error) {
	resp, kind, attempts := in.fetch.FetchWithRetry(ctx, rawURL, fetch.Options{
		Timeout: 10 * time.Second,
	})
	if kind != fetch.ErrNone {
		return nil, fmt.Errorf("%s after %d attempt(s)", kind, attempts)
	}
	return resp.Body, nil
}

// applyRobots fetches and parses robots.txt for the seed host and, if
// successful, arms the scope's robots check (SPEC_FULL.md §6). Failure is
// silent: an unavailable or malformed robots.txt never blocks a crawl.
func (in *Instance) applyRobots(ctx context.Context) {
	if !in.cfg.RespectRobots {
		return
	}
	seed, err := url.Parse(in.seedURL)
	if err != nil {
		return
	}
	body, err := in.fetchRaw(ctx, urlpolicy.RobotsURL(seed))
	if err != nil {
		return
	}
	data, err := urlpolicy.ParseRobots(body)
	if err != nil {
		return
	}
	in.scope.Robots = data
	in.scope.RobotsEnabled = true
	in.scope.RobotsUserAgent = in.cfg.RobotsUserAgent
}

// admitFromSitemap seeds the frontier from /sitemap.xml in addition to the
// seed URL (SPEC_FULL.md §6). Discovered URLs pass through the same scope
// check and dedup admission as link-discovered ones.
func (in *Instance) admitFromSitemap(ctx context.Context) {
	seed, err := url.Parse(in.seedURL)
	if err != nil {
		return
	}

	discovered := urlpolicy.DiscoverSitemap(ctx, in.fetchRaw, seed)
	if len(discovered) == 0 {
		return
	}

	var inScope []string
	for _, raw := range discovered {
		if !in.scope.ShouldCrawl(raw, 0) {
			continue
		}
		if normalized, err := urlpolicy.Normalize(raw, in.cfg.IncludeAnchors); err == nil {
			inScope = append(inScope, normalized)
		}
	}
	if len(inScope) == 0 {
		return
	}

	fresh, _ := in.dedup.AddURLs(ctx, in.id.String(), inScope)
	var admitted []string
	for _, u := range fresh {
		if in.admit(ctx, newTask(u, 0, in.seedURL)) {
			admitted = append(admitted, u)
		}
	}
	if len(admitted) > 0 {
		in.publish(ctx, events.TypeURLsDiscovered, map[string]any{"urls": admitted, "parent_url": in.seedURL, "source": "sitemap"})
	}
}

// processTask implements the numbered task loop of spec.md §4.6.
func (in *Instance) processTask(ctx context.Context, t task) (retry bool, err error) {
	firstAttempt := *t.attempt == 0

	// Step 1: dedup. Every URL other than the seed was already marked seen
	// by its caller's add_urls call (enqueueChildren/admitFromSitemap)
	// before admission, so the queue holds each URL at most once; the seed
	// is admitted directly by Run and is marked seen here, so a link back to
	// it is not admitted again. Only on the first attempt, so a retry of
	// this same task does not publish url_started twice.
	if firstAttempt {
		in.publish(ctx, events.TypeURLStarted, map[string]any{"url": t.url, "depth": t.depth})
		if t.parentURL == "" {
			_, _ = in.dedup.AddURLs(ctx, in.id.String(), []string{t.url})
		}
	}

	// Step 2: fetch, one attempt. Retry/backoff is the queue's job (see
	// Handler's contract and fetch.Client's doc comment): this lets other
	// admitted tasks use the concurrency slot this one gives up between
	// attempts, instead of holding it for the whole backoff sleep.
	*t.attempt++
	resp, kind := in.fetch.Fetch(ctx, t.url, fetch.Options{
		Timeout: time.Duration(in.cfg.TimeoutMsPerRequest) * time.Millisecond,
	})
	if kind != fetch.ErrNone {
		if kind.Retryable() && *t.attempt < fetch.MaxAttempts {
			return true, fmt.Errorf("retryable fetch error: %s", kind)
		}
		msg := fmt.Sprintf("%s after %d attempt(s)", kind, *t.attempt)
		in.bumpFailed(ctx)
		_, _ = in.store.AddPageResult(ctx, in.id, t.url, "", "", 0, "", "failed", &msg, int32(t.depth), nilIfEmpty(t.parentURL))
		in.publish(ctx, events.TypeURLFailed, map[string]any{"url": t.url, "error": msg, "depth": t.depth})
		return false, nil
	}

	// Step 3: extract, then content-hash dedup.
	result, err := content.Extract(resp.Body, t.url)
	if err != nil {
		msg := "parse: " + err.Error()
		in.bumpFailed(ctx)
		_, _ = in.store.AddPageResult(ctx, in.id, t.url, "", "", 0, "", "failed", &msg, int32(t.depth), nilIfEmpty(t.parentURL))
		in.publish(ctx, events.TypeURLFailed, map[string]any{"url": t.url, "error": msg, "depth": t.depth})
		return false, nil
	}

	if dup, _ := in.dedup.HasHash(ctx, in.id.String(), result.ContentHash); dup {
		in.bumpSkippedAsDuplicate(ctx)
		_, _ = in.store.AddPageResult(ctx, in.id, t.url, result.Title, "", 0, result.ContentHash, "duplicate", nil, int32(t.depth), nilIfEmpty(t.parentURL))
		in.publish(ctx, events.TypeProgress, in.progressPayload())
		return false, nil
	}
	_ = in.dedup.AddHash(ctx, in.id.String(), result.ContentHash)

	// Step 4: quality gate.
	if result.Status == content.StatusSkipped || content.QualityScore(result.WordCount) < in.cfg.QualityThreshold {
		in.bumpSkipped(ctx)
		_, _ = in.store.AddPageResult(ctx, in.id, t.url, result.Title, result.Markdown, int32(result.WordCount), result.ContentHash, "skipped", &result.SkipReason, int32(t.depth), nilIfEmpty(t.parentURL))
		in.publish(ctx, events.TypeProgress, in.progressPayload())
		return false, nil
	}

	// Step 5: persist before publishing the corresponding event, per
	// spec.md §5's durability-before-event ordering guarantee.
	_, _ = in.store.AddPageResult(ctx, in.id, t.url, result.Title, result.Markdown, int32(result.WordCount), result.ContentHash, "ok", nil, int32(t.depth), nilIfEmpty(t.parentURL))
	in.okPages.Add(1)
	in.publish(ctx, events.TypeURLCrawled, map[string]any{"url": t.url, "title": result.Title, "word_count": result.WordCount, "depth": t.depth})

	// Step 6: discover + enqueue children.
	if t.depth < in.cfg.MaxDepth && int(in.processed.Load()) < in.cfg.MaxPages {
		in.enqueueChildren(ctx, resp.Body, t)
	}

	// Step 7: increment processed. Drain is not triggered here: Run drains
	// once the queue has no work left (or the job's context ends).
	in.processed.Add(1)
	_ = in.store.IncrementCounters(ctx, in.id, 0, 0, 1, 0, 0)
	in.publish(ctx, events.TypeProgress, in.progressPayload())

	return false, nil
}

func (in *Instance) enqueueChildren(ctx context.Context, body []byte, t task) {
	doc, err := parseForLinks(body)
	if err != nil {
		return
	}
	base, err := url.Parse(t.url)
	if err != nil {
		return
	}

	candidates := urlpolicy.ExtractLinks(doc, base)
	var inScope []string
	for _, c := range candidates {
		if in.scope.ShouldCrawl(c, t.depth+1) {
			normalized, err := urlpolicy.Normalize(c, in.cfg.IncludeAnchors)
			if err == nil {
				inScope = append(inScope, normalized)
			}
		}
	}
	if len(inScope) == 0 {
		return
	}

	fresh, _ := in.dedup.AddURLs(ctx, in.id.String(), inScope)
	var admitted []string
	for _, u := range fresh {
		if in.admit(ctx, newTask(u, t.depth+1, t.url)) {
			admitted = append(admitted, u)
		}
	}
	if len(admitted) > 0 {
		in.publish(ctx, events.TypeURLsDiscovered, map[string]any{"urls": admitted, "parent_url": t.url, "depth": t.depth + 1})
	}
}

// drain implements finalization (spec.md §4.6): sort results by URL,
// concatenate, persist, and publish the terminal event exactly once, with
// single-writer semantics enforced by the store's CAS update.
func (in *Instance) drain(ctx context.Context) {
	in.setState(StateDraining)

	if !in.finalizeOnce.CompareAndSwap(false, true) {
		return
	}

	terminal, reason := in.decideTerminalState(ctx)

	applied, err := in.store.CASJobStatus(context.Background(), in.id, terminal.externalStatus(), dbActiveStates, reason)
	if err != nil || !applied {
		// Another writer already finalized this job (or a transient store
		// error); do not publish a second terminal event.
		return
	}

	if terminal == StateCompleted {
		markdown, ferr := in.buildFinalMarkdown(context.Background())
		if ferr == nil {
			_ = in.store.SetFinalMarkdown(context.Background(), in.id, markdown)
		}
	}

	in.setState(terminal)
	in.publishTerminal(context.Background(), terminal, reason)
	in.dedup.ScheduleClear(in.id.String())
}

func (in *Instance) decideTerminalState(ctx context.Context) (State, *string) {
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		msg := "job deadline exceeded before drain completed"
		return StateTimeout, &msg
	case ctx.Err() == context.Canceled:
		msg := "job cancelled"
		return StateCancelled, &msg
	case in.okPages.Load() == 0:
		msg := "no pages were successfully crawled"
		return StateFailed, &msg
	default:
		// "completed with failed>0" per spec.md §9, not "0 processed =>
		// failed".
		return StateCompleted, nil
	}
}

func (in *Instance) buildFinalMarkdown(ctx context.Context) (string, error) {
	results, err := in.store.ListPageResults(ctx, in.id)
	if err != nil {
		return "", err
	}

	ok := make([]struct {
		url, title, markdown string
	}, 0, len(results))
	for _, r := range results {
		if r.Status != "ok" {
			continue
		}
		ok = append(ok, struct{ url, title, markdown string }{r.URL, r.Title.String, r.Markdown.String})
	}
	sort.Slice(ok, func(i, j int) bool { return ok[i].url < ok[j].url })

	var sb strings.Builder
	for i, r := range ok {
		if i > 0 {
			sb.WriteString("\n\n---\n\n")
		}
		sb.WriteString(fmt.Sprintf("# %s\n\nURL: %s\n\n%s", r.title, r.url, r.markdown))
	}
	return sb.String(), nil
}

func (in *Instance) publishTerminal(ctx context.Context, state State, reason *string) {
	payload := map[string]any{"status": string(state)}
	if reason != nil {
		payload["error"] = *reason
	}
	payload["discovered"] = in.discovered.Load()
	payload["queued"] = in.queued.Load()
	payload["processed"] = in.processed.Load()
	payload["skipped"] = in.skipped.Load()
	payload["failed"] = in.failed.Load()

	switch state {
	case StateCompleted:
		in.publish(ctx, events.TypeJobCompleted, payload)
	case StateTimeout:
		in.publish(ctx, events.TypeJobTimeout, payload)
	default:
		in.publish(ctx, events.TypeJobFailed, payload)
	}
}

func (in *Instance) progressPayload() map[string]any {
	return map[string]any{
		"discovered": in.discovered.Load(),
		"queued":     in.queued.Load(),
		"processed":  in.processed.Load(),
		"skipped":    in.skipped.Load(),
		"failed":     in.failed.Load(),
	}
}

func (in *Instance) publish(ctx context.Context, eventType string, payload map[string]any) {
	if _, err := in.bus.Publish(ctx, in.id, eventType, payload); err != nil && in.logger != nil {
		in.logger.Warn("publish event failed", "job_id", in.id, "event_type", eventType, "error", err)
	}
}

func (in *Instance) bumpFailed(ctx context.Context) {
	in.failed.Add(1)
	in.processed.Add(1)
	_ = in.store.IncrementCounters(ctx, in.id, 0, 0, 1, 0, 1)
}

func (in *Instance) bumpSkipped(ctx context.Context) {
	in.skipped.Add(1)
	in.processed.Add(1)
	_ = in.store.IncrementCounters(ctx, in.id, 0, 0, 1, 1, 0)
}

func (in *Instance) bumpSkippedAsDuplicate(ctx context.Context) {
	in.bumpSkipped(ctx)
}

func parseForLinks(body []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
