package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"docuforge/internal/config"
	"docuforge/internal/dedup"
	"docuforge/internal/events"
	"docuforge/internal/fetch"
	"docuforge/internal/store"
)

func decodeConfig(raw json.RawMessage, cfg *Config) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, cfg)
}

// Manager is the process-wide job registry. It owns one in-memory Instance
// per active job and exposes the operations the HTTP layer needs: submit,
// inspect (LiveState), cancel; listing jobs reads the store. A job's durable record lives in the store
// regardless of whether this process currently holds its Instance, so a
// restarted process can resume orchestration of jobs left active (spec.md
// §4.6's restart-resume requirement) via Resume.
type Manager struct {
	store    *store.Store
	bus      *events.Bus
	dedup    *dedup.Cache
	fetch    *fetch.Client
	logger   *slog.Logger
	defaults Config

	mu        sync.Mutex
	instances map[uuid.UUID]*Instance
}

// NewManager constructs a Manager over shared infrastructure. serverCfg's
// Crawl section supplies the base a partially-specified job request is
// layered over, so a deployment's config file actually governs defaults.
func NewManager(st *store.Store, bus *events.Bus, dc *dedup.Cache, serverCfg *config.Config, logger *slog.Logger) *Manager {
	defaults := DefaultConfig()
	if serverCfg != nil {
		defaults = ServerDefaults(serverCfg)
	}
	return &Manager{
		store:     st,
		bus:       bus,
		dedup:     dc,
		fetch:     fetch.NewClient(),
		logger:    logger,
		defaults:  defaults,
		instances: make(map[uuid.UUID]*Instance),
	}
}

// Submit creates a new job row and starts orchestrating it in a background
// goroutine. It returns the job's id immediately; the caller observes
// progress via the event stream.
func (m *Manager) Submit(ctx context.Context, userID uuid.UUID, seedURL string, cfg Config) (uuid.UUID, error) {
	cfg = cfg.WithBase(m.defaults)
	if err := cfg.Validate(); err != nil {
		return uuid.Nil, err
	}

	id := uuid.New()
	if _, err := m.store.CreateJob(ctx, id, userID, seedURL, cfg); err != nil {
		return uuid.Nil, fmt.Errorf("create job: %w", err)
	}

	inst, err := New(id, userID, seedURL, cfg, m.store, m.bus, m.dedup, m.fetch, m.logger)
	if err != nil {
		return uuid.Nil, err
	}

	m.mu.Lock()
	m.instances[id] = inst
	m.mu.Unlock()

	go m.run(inst)

	return id, nil
}

func (m *Manager) run(inst *Instance) {
	defer func() {
		m.mu.Lock()
		delete(m.instances, inst.id)
		m.mu.Unlock()
	}()

	// Run uses its own background context so that an HTTP request's
	// cancellation (e.g. the client disconnecting from a POST /jobs call)
	// never tears down a job it only started; Cancel is the sole mechanism
	// by which a job is stopped early.
	inst.Run(context.Background())
}

// Cancel requests cancellation of a running job. It is a no-op (returning
// false) if the job is not currently active in this process — e.g. it has
// already finished, or this process did not originate it after a restart.
func (m *Manager) Cancel(jobID uuid.UUID) bool {
	m.mu.Lock()
	inst, ok := m.instances[jobID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	inst.Cancel()
	return true
}

// LiveState returns the in-memory State of a job this process is actively
// orchestrating, and whether it holds such an Instance at all. Callers
// needing a job's state regardless of which process owns it should read
// the durable record via the store instead.
func (m *Manager) LiveState(jobID uuid.UUID) (State, bool) {
	m.mu.Lock()
	inst, ok := m.instances[jobID]
	m.mu.Unlock()
	if !ok {
		return "", false
	}
	return inst.State(), true
}

// Resume restarts orchestration for jobs left active across a process
// restart (spec.md §4.6), re-admitting only their seed URL: partial
// frontier state from the prior process is lost, so a resumed job
// effectively restarts discovery from scratch bounded by what is already
// in seen_urls... which also resets on restart, since the dedup cache is
// in-process/Redis-TTL-bounded, not itself durable. Jobs that cannot be
// resumed cleanly are instead marked failed.
func (m *Manager) Resume(ctx context.Context, logger *slog.Logger) {
	active, err := m.store.ListActiveJobs(ctx, 100)
	if err != nil {
		if logger != nil {
			logger.Error("resume: list active jobs failed", "error", err)
		}
		return
	}

	for _, job := range active {
		var cfg Config
		if err := decodeConfig(job.Config, &cfg); err != nil {
			msg := "resume: could not decode stored config"
			_, _ = m.store.CASJobStatus(ctx, job.ID, StateFailed.externalStatus(), dbActiveStates, &msg)
			continue
		}
		// The stored config never round-tripped its ambient (json:"-")
		// fields (JobDeadline, RespectRobots, RobotsUserAgent), so they
		// must be re-applied from the deployment's current defaults.
		cfg = cfg.WithBase(m.defaults)

		inst, err := New(job.ID, job.UserID, job.SeedURL, cfg, m.store, m.bus, m.dedup, m.fetch, logger)
		if err != nil {
			msg := "resume: " + err.Error()
			_, _ = m.store.CASJobStatus(ctx, job.ID, StateFailed.externalStatus(), dbActiveStates, &msg)
			continue
		}

		m.mu.Lock()
		m.instances[job.ID] = inst
		m.mu.Unlock()

		go m.run(inst)
	}
}
