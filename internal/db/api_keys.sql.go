package db

import (
	"context"

	"github.com/google/uuid"
)

// InsertAPIKeyParams are the parameters for InsertAPIKey.
type InsertAPIKeyParams struct {
	ID      uuid.UUID
	KeyHash string
	UserID  uuid.UUID
	Label   string
}

const insertAPIKeyQuery = `
INSERT INTO api_keys (id, key_hash, user_id, label, created_at)
VALUES ($1, $2, $3, $4, now())
RETURNING id, key_hash, user_id, label, created_at
`

// InsertAPIKey creates a new API key bound to an opaque user_id.
func (q *Queries) InsertAPIKey(ctx context.Context, arg InsertAPIKeyParams) (ApiKey, error) {
	row := q.db.QueryRowContext(ctx, insertAPIKeyQuery, arg.ID, arg.KeyHash, arg.UserID, arg.Label)
	return scanAPIKey(row)
}

const getAPIKeyByHashQuery = `
SELECT id, key_hash, user_id, label, created_at FROM api_keys WHERE key_hash = $1
`

// GetAPIKeyByHash resolves a hashed bearer token to its owning user.
func (q *Queries) GetAPIKeyByHash(ctx context.Context, hash string) (ApiKey, error) {
	row := q.db.QueryRowContext(ctx, getAPIKeyByHashQuery, hash)
	return scanAPIKey(row)
}

func scanAPIKey(row scannable) (ApiKey, error) {
	var k ApiKey
	err := row.Scan(&k.ID, &k.KeyHash, &k.UserID, &k.Label, &k.CreatedAt)
	return k, err
}
