package http

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"docuforge/internal/config"
	"docuforge/internal/events"
	"docuforge/internal/metrics"
	"docuforge/internal/orchestrator"
	"docuforge/internal/store"
)

type Server struct {
	app    *fiber.App
	config *config.Config
	store  *store.Store
	logger *slog.Logger
}

// NewServer builds the fiber app for docuforge's six job endpoints plus
// health and metrics, mirroring the teacher's request-logging/metrics
// middleware and auth/rate-limit group wiring.
func NewServer(cfg *config.Config, st *store.Store, bus *events.Bus, mgr *orchestrator.Manager, logger *slog.Logger) *Server {
	app := fiber.New()

	app.Use(func(c *fiber.Ctx) error {
		c.Locals("config", cfg)
		c.Locals("store", st)
		return c.Next()
	})

	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		reqID := c.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals("request_id", reqID)

		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()
		method := c.Method()
		path := c.Path()

		metrics.RecordRequest(method, path, status, latency.Milliseconds())

		if logger != nil {
			logger.Info("request",
				"request_id", reqID,
				"method", method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}

		return err
	})

	var rdb *redis.Client
	if cfg.Auth.Enabled && cfg.Redis.URL != "" {
		if opt, err := redis.ParseURL(cfg.Redis.URL); err == nil {
			rdb = redis.NewClient(opt)
		}
	}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if c.Query("deep") != "true" {
			return c.JSON(fiber.Map{"status": "ok"})
		}

		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()

		dbStatus := "ok"
		if err := st.DB.PingContext(ctx); err != nil {
			dbStatus = "error"
		}

		redisStatus := "disabled"
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				redisStatus = "error"
			} else {
				redisStatus = "ok"
			}
		}

		status := "ok"
		if dbStatus != "ok" || redisStatus == "error" {
			status = "error"
		}

		return c.JSON(fiber.Map{"status": status, "db": dbStatus, "redis": redisStatus})
	})

	app.Get("/metrics", func(c *fiber.Ctx) error {
		c.Type("text/plain")
		return c.SendString(metrics.Export())
	})

	authMw := authMiddleware(cfg, st)
	var rateMw fiber.Handler
	if rdb != nil {
		rateMw = rateLimitMiddleware(cfg, rdb)
	} else {
		rateMw = func(c *fiber.Ctx) error { return c.Next() }
	}

	v1 := app.Group("/v1", authMw, rateMw)
	registerV1Routes(v1, mgr, bus)

	return &Server{app: app, config: cfg, store: st, logger: logger}
}

func (s *Server) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	return s.app.Listen(addr)
}

func registerV1Routes(group fiber.Router, mgr *orchestrator.Manager, bus *events.Bus) {
	group.Post("/jobs", createJobHandler(mgr))
	group.Get("/jobs", listJobsHandler)
	group.Get("/jobs/:id", getJobHandler)
	group.Get("/jobs/:id/stream", streamJobHandler(bus))
	group.Get("/jobs/:id/download", downloadJobHandler)
	group.Delete("/jobs/:id", cancelJobHandler(mgr))
}
