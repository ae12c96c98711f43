package http

import (
	"testing"

	"github.com/google/uuid"

	"docuforge/internal/db"
)

func TestPrincipalFromAPIKey_PopulatesUserID(t *testing.T) {
	userID := uuid.New()
	apiKey := db.ApiKey{ID: uuid.New(), UserID: userID, Label: "ci"}

	p := principalFromAPIKey(apiKey)

	if p.UserID != userID {
		t.Fatalf("expected UserID %v, got %v", userID, p.UserID)
	}
}
