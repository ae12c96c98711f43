// Package store is the Job Store of spec.md §4.8: the durable job record,
// the append-only page-result log, and the append-only event log. Job
// records are read scoped to (user_id, job_id); page results and events
// are keyed by job_id alone.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"docuforge/internal/db"
)

// Store wraps access to the database via the sqlc-shaped Queries layer.
type Store struct {
	DB *sql.DB
}

// New creates a Store over a shared, pooled *sql.DB.
func New(database *sql.DB) *Store {
	return &Store{DB: database}
}

func hashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (s *Store) q() *db.Queries { return db.New(s.DB) }

// CreateJob inserts a new job row owned by userID, with its configuration
// recorded verbatim for audit/debugging.
func (s *Store) CreateJob(ctx context.Context, id, userID uuid.UUID, seedURL string, config any) (db.Job, error) {
	payload, err := json.Marshal(config)
	if err != nil {
		return db.Job{}, err
	}

	return s.q().InsertJob(ctx, db.InsertJobParams{
		ID:      id,
		UserID:  userID,
		SeedURL: seedURL,
		Config:  payload,
		Status:  "pending",
	})
}

// GetJob fetches a job by id, scoped to its owning user.
func (s *Store) GetJob(ctx context.Context, id, userID uuid.UUID) (db.Job, error) {
	return s.q().GetJobByIDForUser(ctx, id, userID)
}

// GetJobByID fetches a job without user scoping, for internal orchestrator
// use where the caller already holds the job's identity.
func (s *Store) GetJobByID(ctx context.Context, id uuid.UUID) (db.Job, error) {
	return s.q().GetJobByID(ctx, id)
}

// ListJobs returns recent jobs for a user, newest first.
func (s *Store) ListJobs(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]db.Job, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.q().ListJobsForUser(ctx, userID, limit, offset)
}

// ListActiveJobs returns non-terminal jobs, used on startup to resume
// orchestration after a restart.
func (s *Store) ListActiveJobs(ctx context.Context, limit int32) ([]db.Job, error) {
	return s.q().ListActiveJobs(ctx, limit)
}

// CASJobStatus performs the single-writer status transition of spec.md
// §4.6/§4.8: the update only takes effect if the job's current status is
// one of expectedOneOf. Returns whether the transition was applied.
func (s *Store) CASJobStatus(ctx context.Context, id uuid.UUID, newStatus string, expectedOneOf []string, errMsg *string) (bool, error) {
	var sqlErr sql.NullString
	if errMsg != nil {
		sqlErr = sql.NullString{String: *errMsg, Valid: true}
	}
	return s.q().UpdateJobStatusCAS(ctx, db.UpdateJobStatusCASParams{
		ID:            id,
		NewStatus:     newStatus,
		ExpectedOneOf: expectedOneOf,
		Error:         sqlErr,
	})
}

// IncrementCounters atomically applies deltas to a job's discovered/
// queued/processed/skipped/failed counters.
func (s *Store) IncrementCounters(ctx context.Context, id uuid.UUID, discovered, queued, processed, skipped, failed int32) error {
	return s.q().IncrementJobCounters(ctx, db.IncrementJobCountersParams{
		ID: id, Discovered: discovered, Queued: queued, Processed: processed, Skipped: skipped, Failed: failed,
	})
}

// SetFinalMarkdown persists the job's finalized concatenated artifact.
func (s *Store) SetFinalMarkdown(ctx context.Context, id uuid.UUID, markdown string) error {
	return s.q().SetFinalMarkdown(ctx, id, markdown)
}

// AddPageResult appends an immutable Page Result row.
func (s *Store) AddPageResult(ctx context.Context, jobID uuid.UUID, url, title, markdown string, wordCount int32, contentHash, status string, errMsg *string, depth int32, parentURL *string) (db.PageResult, error) {
	var t, m, e, p sql.NullString
	if title != "" {
		t = sql.NullString{String: title, Valid: true}
	}
	if markdown != "" {
		m = sql.NullString{String: markdown, Valid: true}
	}
	if errMsg != nil {
		e = sql.NullString{String: *errMsg, Valid: true}
	}
	if parentURL != nil {
		p = sql.NullString{String: *parentURL, Valid: true}
	}

	return s.q().InsertPageResult(ctx, db.InsertPageResultParams{
		JobID: jobID, URL: url, Title: t, Markdown: m, WordCount: wordCount,
		ContentHash: contentHash, Status: status, Error: e, Depth: depth, ParentURL: p,
	})
}

// ListPageResults returns all page results for a job, sorted by URL.
func (s *Store) ListPageResults(ctx context.Context, jobID uuid.UUID) ([]db.PageResult, error) {
	return s.q().ListPageResultsByJob(ctx, jobID)
}

// AppendEvent appends an event with a strictly monotone per-job event_id.
func (s *Store) AppendEvent(ctx context.Context, jobID uuid.UUID, eventType string, payload any) (db.Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return db.Event{}, err
	}
	return s.q().InsertEvent(ctx, db.InsertEventParams{JobID: jobID, EventType: eventType, Payload: body})
}

// ListEventsSince returns all events for a job strictly after lastEventID.
func (s *Store) ListEventsSince(ctx context.Context, jobID uuid.UUID, lastEventID int64) ([]db.Event, error) {
	return s.q().ListEventsSince(ctx, jobID, lastEventID)
}

// DeleteExpired removes terminal jobs (and cascading page results/events)
// older than cutoff, implementing the retention sweep of spec.md §3's
// "Lifetime = lifetime of the job plus a small grace period".
func (s *Store) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.q().DeleteExpiredJobs(ctx, cutoff)
}

// GetAPIKeyByRawKey looks up an API key by its raw bearer-token value.
func (s *Store) GetAPIKeyByRawKey(ctx context.Context, rawKey string) (db.ApiKey, error) {
	return s.q().GetAPIKeyByHash(ctx, hashAPIKey(rawKey))
}

// CreateAPIKey creates a new random API key (docuforge_ prefix) for userID.
// It returns the raw key plus the stored record; the raw key is shown to
// the caller exactly once.
func (s *Store) CreateAPIKey(ctx context.Context, userID uuid.UUID, label string) (string, db.ApiKey, error) {
	raw := "docuforge_" + uuid.New().String()
	key, err := s.q().InsertAPIKey(ctx, db.InsertAPIKeyParams{
		ID: uuid.New(), KeyHash: hashAPIKey(raw), UserID: userID, Label: label,
	})
	return raw, key, err
}
