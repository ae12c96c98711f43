package dedup

import (
	"context"
	"testing"
	"time"
)

func TestAddURLsLocalReturnsOnlyNewOnes(t *testing.T) {
	c := New(nil, time.Minute)
	ctx := context.Background()

	fresh, err := c.AddURLs(ctx, "job1", []string{"a", "b", "a"})
	if err != nil {
		t.Fatalf("AddURLs error: %v", err)
	}
	if len(fresh) != 2 {
		t.Fatalf("first AddURLs() = %v, want 2 fresh entries", fresh)
	}

	fresh, err = c.AddURLs(ctx, "job1", []string{"a", "c"})
	if err != nil {
		t.Fatalf("AddURLs error: %v", err)
	}
	if len(fresh) != 1 || fresh[0] != "c" {
		t.Fatalf("second AddURLs() = %v, want [c]", fresh)
	}
}

func TestHashSetLocal(t *testing.T) {
	c := New(nil, time.Minute)
	ctx := context.Background()

	has, err := c.HasHash(ctx, "job1", "h1")
	if err != nil || has {
		t.Fatalf("HasHash() = %v,%v want false,nil", has, err)
	}

	if err := c.AddHash(ctx, "job1", "h1"); err != nil {
		t.Fatalf("AddHash error: %v", err)
	}

	has, err = c.HasHash(ctx, "job1", "h1")
	if err != nil || !has {
		t.Fatalf("HasHash() after add = %v,%v want true,nil", has, err)
	}
}

func TestClearRemovesJobState(t *testing.T) {
	c := New(nil, time.Minute)
	ctx := context.Background()

	_, _ = c.AddURLs(ctx, "job1", []string{"a"})
	_ = c.AddHash(ctx, "job1", "h1")

	if err := c.Clear(ctx, "job1"); err != nil {
		t.Fatalf("Clear error: %v", err)
	}

	fresh, _ := c.AddURLs(ctx, "job1", []string{"a"})
	if len(fresh) != 1 {
		t.Fatalf("expected url to be re-addable after Clear, got %v", fresh)
	}
}

func TestJobsAreIsolated(t *testing.T) {
	c := New(nil, time.Minute)
	ctx := context.Background()

	_, _ = c.AddURLs(ctx, "job1", []string{"a"})
	fresh, _ := c.AddURLs(ctx, "job2", []string{"a"})
	if len(fresh) != 1 {
		t.Fatalf("expected url fresh in a different job, got %v", fresh)
	}
}
