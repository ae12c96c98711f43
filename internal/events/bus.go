// Package events implements the durable, resumable per-job event stream of
// spec.md §4.7: the store's event log is authoritative, Redis pub/sub is a
// latency optimization layered on top.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"docuforge/internal/db"
	"docuforge/internal/store"
)

// Taxonomy of event types, per spec.md §4.7.
const (
	TypeStreamConnected = "stream_connected"
	TypeURLStarted      = "url_started"
	TypeURLCrawled      = "url_crawled"
	TypeURLFailed       = "url_failed"
	TypeURLsDiscovered  = "urls_discovered"
	TypeSentToProcessing = "sent_to_processing"
	TypeProgress        = "progress"
	TypeTimeUpdate      = "time_update"
	TypeJobCompleted    = "job_completed"
	TypeJobFailed       = "job_failed"
	TypeJobTimeout      = "job_timeout"
	TypeHeartbeat       = "heartbeat"
)

func channelName(jobID uuid.UUID) string { return fmt.Sprintf("docuforge:events:%s", jobID) }

// Bus publishes and replays a job's event log.
type Bus struct {
	store  *store.Store
	redis  *redis.Client
	logger *slog.Logger
}

// New constructs a Bus. rdb may be nil; without Redis the bus still works
// correctly but subscribers only see events via polling the durable log.
func New(st *store.Store, rdb *redis.Client, logger *slog.Logger) *Bus {
	return &Bus{store: st, redis: rdb, logger: logger}
}

// Publish appends eventType/payload to the durable log and, on success,
// fans it out on the pub/sub channel. Per spec.md §5 the Page Result (or
// job counters) must already be durable before this is called for the
// corresponding event.
func (b *Bus) Publish(ctx context.Context, jobID uuid.UUID, eventType string, payload map[string]any) (db.Event, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["job_id"] = jobID.String()

	ev, err := b.store.AppendEvent(ctx, jobID, eventType, payload)
	if err != nil {
		return db.Event{}, fmt.Errorf("append event: %w", err)
	}

	if b.redis != nil {
		if body, mErr := json.Marshal(ev); mErr == nil {
			if pErr := b.redis.Publish(ctx, channelName(jobID), body).Err(); pErr != nil && b.logger != nil {
				b.logger.Warn("event pubsub publish failed", "job_id", jobID, "error", pErr)
			}
		}
	}

	return ev, nil
}

// Replay returns all durable events for jobID strictly after lastEventID,
// in order.
func (b *Bus) Replay(ctx context.Context, jobID uuid.UUID, lastEventID int64) ([]db.Event, error) {
	return b.store.ListEventsSince(ctx, jobID, lastEventID)
}

// Live subscribes to the pub/sub channel for jobID and returns a channel of
// newly published events. The returned cleanup function must be called to
// release the subscription. If Redis is unavailable, Live returns a
// channel that is never written to and a cleanup that closes it; callers should
// combine Live with periodic Replay polling in that case.
func (b *Bus) Live(ctx context.Context, jobID uuid.UUID) (<-chan db.Event, func()) {
	out := make(chan db.Event, 32)

	if b.redis == nil {
		return out, func() { close(out) }
	}

	sub := b.redis.Subscribe(ctx, channelName(jobID))
	ch := sub.Channel()

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev db.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, func() { _ = sub.Close() }
}

// HeartbeatInterval is the maximum gap between heartbeats required by
// spec.md §4.7 ("Heartbeats are emitted at <=10s intervals").
const HeartbeatInterval = 10 * time.Second
