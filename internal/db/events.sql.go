package db

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// InsertEventParams are the parameters for InsertEvent.
type InsertEventParams struct {
	JobID     uuid.UUID
	EventType string
	Payload   json.RawMessage
}

const insertEventQuery = `
INSERT INTO events (job_id, event_id, event_type, payload, created_at)
SELECT $1, COALESCE(MAX(event_id), 0) + 1, $2, $3, now()
FROM events WHERE job_id = $1
RETURNING job_id, event_id, event_type, payload, created_at
`

// InsertEvent appends an event with a strictly monotone, gap-free
// event_id per job (spec.md invariant 4). Callers must serialize calls per
// job_id (the orchestrator is the sole writer); the advisory lock below
// guards against two writers racing on the same job regardless.
func (q *Queries) InsertEvent(ctx context.Context, arg InsertEventParams) (Event, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return Event{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, arg.JobID); err != nil {
		return Event{}, err
	}

	row := tx.QueryRowContext(ctx, insertEventQuery, arg.JobID, arg.EventType, arg.Payload)
	var ev Event
	if err := row.Scan(&ev.JobID, &ev.EventID, &ev.EventType, &ev.Payload, &ev.CreatedAt); err != nil {
		return Event{}, err
	}

	return ev, tx.Commit()
}

const listEventsSinceQuery = `
SELECT job_id, event_id, event_type, payload, created_at
FROM events WHERE job_id = $1 AND event_id > $2 ORDER BY event_id ASC
`

// ListEventsSince returns all events for a job strictly after lastEventID,
// the durable-log replay spec.md §4.7 requires for subscriber resume.
func (q *Queries) ListEventsSince(ctx context.Context, jobID uuid.UUID, lastEventID int64) ([]Event, error) {
	rows, err := q.db.QueryContext(ctx, listEventsSinceQuery, jobID, lastEventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.JobID, &ev.EventID, &ev.EventType, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

