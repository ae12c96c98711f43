// Package db is a hand-maintained query layer shaped like sqlc's generated
// output (Queries struct, XxxParams structs, one method per query) over
// the three logical collections of spec.md §4.8: job records, page
// results, and the event log, plus a minimal api_keys table standing in
// for the out-of-scope authentication system.
package db

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Job is the mutable per-job summary row of spec.md §3.
type Job struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	SeedURL        string
	Config         json.RawMessage
	Status         string
	Discovered     int32
	Queued         int32
	Processed      int32
	Skipped        int32
	Failed         int32
	CreatedAt      time.Time
	CompletedAt    sql.NullTime
	Error          sql.NullString
	FinalMarkdown  sql.NullString
}

// PageResult is one append-only row of spec.md §3's Page Result.
type PageResult struct {
	ID          int64
	JobID       uuid.UUID
	URL         string
	Title       sql.NullString
	Markdown    sql.NullString
	WordCount   int32
	ContentHash string
	Status      string
	Error       sql.NullString
	Depth       int32
	ParentURL   sql.NullString
	CreatedAt   time.Time
}

// Event is one append-only row of spec.md §3's Event, with a per-job
// monotone EventID.
type Event struct {
	JobID     uuid.UUID
	EventID   int64
	EventType string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// ApiKey is the minimal stand-in for the out-of-scope auth system: just
// enough to resolve a bearer token to an opaque user_id.
type ApiKey struct {
	ID        uuid.UUID
	KeyHash   string
	UserID    uuid.UUID
	Label     string
	CreatedAt time.Time
}
