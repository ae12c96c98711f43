package db

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// InsertPageResultParams are the parameters for InsertPageResult.
type InsertPageResultParams struct {
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
}

const insertPageResultQuery = `
INSERT INTO page_results (job_id, url, title, markdown, word_count, content_hash, status, error, depth, parent_url, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
RETURNING id, job_id, url, title, markdown, word_count, content_hash, status, error, depth, parent_url, created_at
`

// InsertPageResult appends a new, immutable Page Result row (spec.md §3:
// "Created once per processed URL; immutable thereafter").
func (q *Queries) InsertPageResult(ctx context.Context, arg InsertPageResultParams) (PageResult, error) {
	row := q.db.QueryRowContext(ctx, insertPageResultQuery,
		arg.JobID, arg.URL, arg.Title, arg.Markdown, arg.WordCount, arg.ContentHash,
		arg.Status, arg.Error, arg.Depth, arg.ParentURL)
	return scanPageResult(row)
}

const listPageResultsByJobQuery = `
SELECT id, job_id, url, title, markdown, word_count, content_hash, status, error, depth, parent_url, created_at
FROM page_results WHERE job_id = $1 ORDER BY url ASC
`

// ListPageResultsByJob returns all page results for a job sorted by URL,
// the stable order spec.md §4.6's finalization step requires.
func (q *Queries) ListPageResultsByJob(ctx context.Context, jobID uuid.UUID) ([]PageResult, error) {
	rows, err := q.db.QueryContext(ctx, listPageResultsByJobQuery, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PageResult
	for rows.Next() {
		pr, err := scanPageResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

func scanPageResult(row scannable) (PageResult, error) {
	var pr PageResult
	err := row.Scan(&pr.ID, &pr.JobID, &pr.URL, &pr.Title, &pr.Markdown, &pr.WordCount,
		&pr.ContentHash, &pr.Status, &pr.Error, &pr.Depth, &pr.ParentURL, &pr.CreatedAt)
	return pr, err
}
