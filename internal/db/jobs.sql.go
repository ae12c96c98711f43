package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// InsertJobParams are the parameters for InsertJob.
type InsertJobParams struct {
	ID      uuid.UUID
	UserID  uuid.UUID
	SeedURL string
	Config  json.RawMessage
	Status  string
}

const insertJobQuery = `
INSERT INTO jobs (id, user_id, seed_url, config, status, discovered, queued, processed, skipped, failed, created_at)
VALUES ($1, $2, $3, $4, $5, 0, 0, 0, 0, 0, now())
RETURNING id, user_id, seed_url, config, status, discovered, queued, processed, skipped, failed, created_at, completed_at, error, final_markdown
`

// InsertJob creates a new job row in its initial "pending" state.
func (q *Queries) InsertJob(ctx context.Context, arg InsertJobParams) (Job, error) {
	row := q.db.QueryRowContext(ctx, insertJobQuery, arg.ID, arg.UserID, arg.SeedURL, arg.Config, arg.Status)
	return scanJob(row)
}

const getJobByIDQuery = `
SELECT id, user_id, seed_url, config, status, discovered, queued, processed, skipped, failed, created_at, completed_at, error, final_markdown
FROM jobs WHERE id = $1
`

// GetJobByID fetches a single job row.
func (q *Queries) GetJobByID(ctx context.Context, id uuid.UUID) (Job, error) {
	row := q.db.QueryRowContext(ctx, getJobByIDQuery, id)
	return scanJob(row)
}

const getJobByIDForUserQuery = `
SELECT id, user_id, seed_url, config, status, discovered, queued, processed, skipped, failed, created_at, completed_at, error, final_markdown
FROM jobs WHERE id = $1 AND user_id = $2
`

// GetJobByIDForUser fetches a job scoped to its owning user, enforcing
// spec.md §3's "owned exclusively by its user_id" invariant at the query
// layer.
func (q *Queries) GetJobByIDForUser(ctx context.Context, id, userID uuid.UUID) (Job, error) {
	row := q.db.QueryRowContext(ctx, getJobByIDForUserQuery, id, userID)
	return scanJob(row)
}

const listJobsForUserQuery = `
SELECT id, user_id, seed_url, config, status, discovered, queued, processed, skipped, failed, created_at, completed_at, error, final_markdown
FROM jobs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
`

// ListJobsForUser returns recent jobs for a user, newest first.
func (q *Queries) ListJobsForUser(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]Job, error) {
	rows, err := q.db.QueryContext(ctx, listJobsForUserQuery, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		j, err := scanJobRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

const listActiveJobsQuery = `
SELECT id, user_id, seed_url, config, status, discovered, queued, processed, skipped, failed, created_at, completed_at, error, final_markdown
FROM jobs WHERE status IN ('pending', 'running') ORDER BY created_at ASC LIMIT $1
`

// ListActiveJobs returns non-terminal jobs for the orchestrator manager to
// resume tracking after a process restart.
func (q *Queries) ListActiveJobs(ctx context.Context, limit int32) ([]Job, error) {
	rows, err := q.db.QueryContext(ctx, listActiveJobsQuery, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		j, err := scanJobRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// UpdateJobStatusCASParams are the parameters for UpdateJobStatusCAS.
type UpdateJobStatusCASParams struct {
	ID            uuid.UUID
	NewStatus     string
	ExpectedOneOf []string
	Error         sql.NullString
}

const updateJobStatusCASQuery = `
UPDATE jobs SET status = $2, error = $3,
  completed_at = CASE WHEN $2 IN ('completed','failed','timeout','cancelled') THEN now() ELSE completed_at END
WHERE id = $1 AND status = ANY($4)
`

// UpdateJobStatusCAS performs the single-writer, check-and-set status
// transition required by spec.md §4.6/§4.8: the update only applies if the
// current status is one of ExpectedOneOf.
func (q *Queries) UpdateJobStatusCAS(ctx context.Context, arg UpdateJobStatusCASParams) (bool, error) {
	res, err := q.db.ExecContext(ctx, updateJobStatusCASQuery, arg.ID, arg.NewStatus, arg.Error, pqStringArray(arg.ExpectedOneOf))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

const incrementJobCountersQuery = `
UPDATE jobs SET discovered = discovered + $2, queued = queued + $3, processed = processed + $4,
  skipped = skipped + $5, failed = failed + $6
WHERE id = $1
`

// IncrementJobCountersParams are deltas applied atomically to a job's
// counters.
type IncrementJobCountersParams struct {
	ID         uuid.UUID
	Discovered int32
	Queued     int32
	Processed  int32
	Skipped    int32
	Failed     int32
}

// IncrementJobCounters applies the given deltas atomically (a single SQL
// UPDATE), satisfying spec.md §5's "counter updates are atomic" guarantee.
func (q *Queries) IncrementJobCounters(ctx context.Context, arg IncrementJobCountersParams) error {
	_, err := q.db.ExecContext(ctx, incrementJobCountersQuery,
		arg.ID, arg.Discovered, arg.Queued, arg.Processed, arg.Skipped, arg.Failed)
	return err
}

const setFinalMarkdownQuery = `
UPDATE jobs SET final_markdown = $2 WHERE id = $1
`

// SetFinalMarkdown persists the job's concatenated Markdown artifact.
func (q *Queries) SetFinalMarkdown(ctx context.Context, id uuid.UUID, markdown string) error {
	_, err := q.db.ExecContext(ctx, setFinalMarkdownQuery, id, sql.NullString{String: markdown, Valid: true})
	return err
}

const deleteExpiredJobsQuery = `DELETE FROM jobs WHERE created_at < $1 AND status IN ('completed','failed','timeout','cancelled')`

// DeleteExpiredJobs removes terminal jobs older than cutoff.
func (q *Queries) DeleteExpiredJobs(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteExpiredJobsQuery, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanJob(row scannable) (Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.UserID, &j.SeedURL, &j.Config, &j.Status,
		&j.Discovered, &j.Queued, &j.Processed, &j.Skipped, &j.Failed,
		&j.CreatedAt, &j.CompletedAt, &j.Error, &j.FinalMarkdown)
	return j, err
}

func scanJobRows(rows *sql.Rows) (Job, error) {
	return scanJob(rows)
}

// pqStringArray renders a Go string slice as a Postgres text[] literal,
// used for the ANY($n) CAS guard above.
func pqStringArray(ss []string) string {
	out := "{"
	for i, s := range ss {
		if i > 0 {
			out += ","
		}
		out += `"` + s + `"`
	}
	return out + "}"
}
