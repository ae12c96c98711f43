package db

import "database/sql"

// Queries wraps a *sql.DB with one method per query, matching the shape
// sqlc would generate (the teacher's internal/store.go depends on exactly
// this shape).
type Queries struct {
	db *sql.DB
}

// New constructs a Queries over the given pool.
func New(database *sql.DB) *Queries {
	return &Queries{db: database}
}
