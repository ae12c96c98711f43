package http

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"docuforge/internal/config"
	"docuforge/internal/store"
)

// authMiddleware validates an API key (Authorization: Bearer docuforge_...)
// and attaches a Principal to the context.
func authMiddleware(cfg *config.Config, st *store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !cfg.Auth.Enabled {
			return c.Next()
		}

		rawAuth := c.Get("Authorization")
		if rawAuth == "" || !strings.HasPrefix(rawAuth, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(errResp("UNAUTHENTICATED", "missing bearer token"))
		}

		token := strings.TrimSpace(strings.TrimPrefix(rawAuth, "Bearer "))
		if token == "" || !strings.HasPrefix(token, "docuforge_") {
			return c.Status(fiber.StatusUnauthorized).JSON(errResp("UNAUTHENTICATED", "invalid API key format"))
		}

		apiKey, err := st.GetAPIKeyByRawKey(c.Context(), token)
		if err != nil {
			if err == sql.ErrNoRows {
				return c.Status(fiber.StatusUnauthorized).JSON(errResp("UNAUTHENTICATED", "invalid or revoked API key"))
			}
			return c.Status(fiber.StatusInternalServerError).JSON(errResp("INTERNAL_ERROR", fmt.Sprintf("API key lookup failed: %v", err)))
		}

		c.Locals("apiKey", apiKey)
		c.Locals("principal", principalFromAPIKey(apiKey))
		return c.Next()
	}
}

// rateLimitMiddleware enforces a per-minute fixed-window rate limit per
// user (the principal's UserID, shared by all of that user's API keys)
// using Redis, answering 429 once the limit is exceeded.
func rateLimitMiddleware(cfg *config.Config, rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !cfg.Auth.Enabled || cfg.RateLimit.DefaultPerMinute <= 0 {
			return c.Next()
		}

		p, ok := c.Locals("principal").(Principal)
		if !ok {
			return c.Next()
		}
		bucketID := p.UserID.String()

		now := time.Now().UTC()
		window := now.Format("200601021504")
		key := fmt.Sprintf("docuforge:rl:%s:%s", bucketID, window)

		ctx := c.Context()
		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(errResp("INTERNAL_ERROR", fmt.Sprintf("rate limit increment failed: %v", err)))
		}
		if count == 1 {
			_ = rdb.Expire(ctx, key, time.Minute)
		}

		if count > int64(cfg.RateLimit.DefaultPerMinute) {
			return c.Status(fiber.StatusTooManyRequests).JSON(errResp("RATE_LIMIT_EXCEEDED", "rate limit exceeded, try again later"))
		}

		return c.Next()
	}
}
