package jobs

import (
	"context"
	"testing"

	"docuforge/internal/config"
	"docuforge/internal/store"
)

func TestCleanupExpiredData_DisabledIsNoop(t *testing.T) {
	cfg := config.Default()
	cfg.Retention.Enabled = false

	// A zero-value Store's *sql.DB is nil; CleanupExpiredData must return
	// before touching it when retention is disabled.
	st := &store.Store{}

	n := CleanupExpiredData(context.Background(), cfg, st)
	if n != 0 {
		t.Fatalf("expected 0 deleted when retention disabled, got %d", n)
	}
}
