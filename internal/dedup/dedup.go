// Package dedup implements the per-job seen-URL and seen-content-hash sets
// of spec.md §4.4: an in-process fast path backed by a shared Redis store
// so that multiple process instances (or a restarted worker) observe the
// same sets.
package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a per-job dedup cache. It is safe for concurrent use by all
// workers of a job.
type Cache struct {
	redis *redis.Client
	ttl   time.Duration

	mu         sync.Mutex
	localURLs  map[string]map[string]bool
	localHash  map[string]map[string]bool
}

// New constructs a Cache. rdb may be nil, in which case the cache operates
// purely in-process (single-instance deployments, or tests).
func New(rdb *redis.Client, gracePeriod time.Duration) *Cache {
	return &Cache{
		redis:     rdb,
		ttl:       gracePeriod,
		localURLs: make(map[string]map[string]bool),
		localHash: make(map[string]map[string]bool),
	}
}

func urlSetKey(jobID string) string  { return fmt.Sprintf("dedup:%s:urls", jobID) }
func hashSetKey(jobID string) string { return fmt.Sprintf("dedup:%s:hashes", jobID) }

// AddURLs returns the subset of canonical URLs not previously seen for
// jobID, atomically marking them seen. Safe for concurrent callers on the
// same job.
func (c *Cache) AddURLs(ctx context.Context, jobID string, urls []string) ([]string, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	if c.redis != nil {
		return c.addURLsRedis(ctx, jobID, urls)
	}
	return c.addURLsLocal(jobID, urls), nil
}

func (c *Cache) addURLsRedis(ctx context.Context, jobID string, urls []string) ([]string, error) {
	key := urlSetKey(jobID)
	var fresh []string

	pipe := c.redis.Pipeline()
	cmds := make(map[string]*redis.IntCmd, len(urls))
	for _, u := range urls {
		cmds[u] = pipe.SAdd(ctx, key, u)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("dedup add_urls: %w", err)
	}
	if c.ttl > 0 {
		c.redis.Expire(ctx, key, c.ttl)
	}

	for u, cmd := range cmds {
		if cmd.Val() == 1 {
			fresh = append(fresh, u)
		}
	}
	return fresh, nil
}

func (c *Cache) addURLsLocal(jobID string, urls []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	set, ok := c.localURLs[jobID]
	if !ok {
		set = make(map[string]bool)
		c.localURLs[jobID] = set
	}

	var fresh []string
	for _, u := range urls {
		if !set[u] {
			set[u] = true
			fresh = append(fresh, u)
		}
	}
	return fresh
}

// HasHash reports whether contentHash has already been recorded for jobID.
func (c *Cache) HasHash(ctx context.Context, jobID, contentHash string) (bool, error) {
	if c.redis != nil {
		n, err := c.redis.SIsMember(ctx, hashSetKey(jobID), contentHash).Result()
		return n, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.localHash[jobID][contentHash], nil
}

// AddHash records contentHash as seen for jobID.
func (c *Cache) AddHash(ctx context.Context, jobID, contentHash string) error {
	if c.redis != nil {
		if err := c.redis.SAdd(ctx, hashSetKey(jobID), contentHash).Err(); err != nil {
			return err
		}
		if c.ttl > 0 {
			c.redis.Expire(ctx, hashSetKey(jobID), c.ttl)
		}
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.localHash[jobID]
	if !ok {
		set = make(map[string]bool)
		c.localHash[jobID] = set
	}
	set[contentHash] = true
	return nil
}

// ScheduleClear releases jobID's dedup sets after the configured grace
// period, per spec.md §4.4 ("lifetime of the job plus a small grace
// period"). The Redis path already carries its own TTL via Expire on each
// write, but the in-process local maps have none, so without this they
// grow for the life of the process; call it once a job reaches a terminal
// state.
func (c *Cache) ScheduleClear(jobID string) {
	if c.ttl <= 0 {
		_ = c.Clear(context.Background(), jobID)
		return
	}
	time.AfterFunc(c.ttl, func() {
		_ = c.Clear(context.Background(), jobID)
	})
}

// Clear releases a job's dedup sets. Invoked on terminal state after the
// configured grace period.
func (c *Cache) Clear(ctx context.Context, jobID string) error {
	c.mu.Lock()
	delete(c.localURLs, jobID)
	delete(c.localHash, jobID)
	c.mu.Unlock()

	if c.redis == nil {
		return nil
	}
	return c.redis.Del(ctx, urlSetKey(jobID), hashSetKey(jobID)).Err()
}
