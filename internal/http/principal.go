package http

import (
	"github.com/google/uuid"

	"docuforge/internal/db"
)

// Principal is the authenticated identity for a request, resolved from an
// API key. There is no multi-tenancy or admin role in this system; an API
// key resolves to exactly one opaque user id that scopes job visibility.
type Principal struct {
	UserID uuid.UUID
}

func principalFromAPIKey(k db.ApiKey) Principal {
	return Principal{UserID: k.UserID}
}
