package http

import (
	"bufio"
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"docuforge/internal/events"
	"docuforge/internal/orchestrator"
	"docuforge/internal/store"
)

// streamJobHandler handles GET /v1/jobs/:id/stream, the spec.md §4.7 SSE
// contract: replay the durable log from Last-Event-ID (or from the start),
// then follow live events until a terminal event closes the stream, with
// heartbeats filling any gap longer than events.HeartbeatInterval.
func streamJobHandler(bus *events.Bus) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st := c.Locals("store").(*store.Store)
		p, ok := principalFrom(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(errResp("UNAUTHENTICATED", "user context is not available for this request"))
		}

		jobID, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(errResp("BAD_REQUEST", "invalid job id"))
		}

		job, err := st.GetJob(c.Context(), jobID, p.UserID)
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(errResp("NOT_FOUND", "job not found"))
		}

		var lastEventID int64
		if v := c.Get("Last-Event-ID"); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				lastEventID = n
			}
		}

		// A terminal job with nothing left after lastEventID can never
		// produce another event; opening the stream would hang forever in
		// the heartbeat/poll loop below waiting on an event that will
		// never arrive. Reject it up front instead (spec.md §6).
		if orchestrator.State(job.Status).Terminal() {
			backlog, err := bus.Replay(c.Context(), jobID, lastEventID)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(errResp("INTERNAL", "failed to check event backlog"))
			}
			if len(backlog) == 0 {
				return c.Status(fiber.StatusUnprocessableEntity).JSON(errResp("STREAM_TERMINAL", "job has already finished and there are no further events to stream"))
			}
		}

		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("X-Accel-Buffering", "no")

		ctx, cancel := context.WithCancel(c.Context())
		live, cleanup := bus.Live(ctx, jobID)

		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			defer cancel()
			defer cleanup()

			backlog, err := bus.Replay(ctx, jobID, lastEventID)
			if err != nil {
				return
			}
			for _, ev := range backlog {
				if err := events.WriteSSE(w, ev); err != nil {
					return
				}
				lastEventID = ev.EventID
				if events.IsTerminal(ev.EventType) {
					_ = w.Flush()
					return
				}
			}
			if err := w.Flush(); err != nil {
				return
			}

			heartbeat := time.NewTicker(events.HeartbeatInterval)
			defer heartbeat.Stop()

			// Poll the durable log too, not just the pub/sub channel: Live
			// is a no-op when Redis is unavailable, and polling also
			// covers any event published in the gap between Replay above
			// and the live subscription taking effect.
			poll := time.NewTicker(2 * time.Second)
			defer poll.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-heartbeat.C:
					if err := events.WriteHeartbeat(w); err != nil {
						return
					}
					if err := w.Flush(); err != nil {
						return
					}
				case <-poll.C:
					more, err := bus.Replay(ctx, jobID, lastEventID)
					if err != nil {
						continue
					}
					for _, ev := range more {
						if err := events.WriteSSE(w, ev); err != nil {
							return
						}
						lastEventID = ev.EventID
						if events.IsTerminal(ev.EventType) {
							_ = w.Flush()
							return
						}
					}
					if len(more) > 0 {
						if err := w.Flush(); err != nil {
							return
						}
					}
				case ev, ok := <-live:
					if !ok {
						return
					}
					if ev.EventID <= lastEventID {
						continue
					}
					if err := events.WriteSSE(w, ev); err != nil {
						return
					}
					lastEventID = ev.EventID
					if err := w.Flush(); err != nil {
						return
					}
					if events.IsTerminal(ev.EventType) {
						return
					}
				}
			}
		}))

		return nil
	}
}
