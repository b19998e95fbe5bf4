package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/task-service/internal/config"
	apperrors "github.com/spec-kit/task-service/pkg/util"
)

// Checker is satisfied by Limiter.
type Checker interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// Middleware limits attempts per client IP and route. When the checker fails
// the request is let through and the failure is logged.
func Middleware(checker Checker, cfg config.RateLimitConfig, logger *zap.Logger) fiber.Handler {
	limit := cfg.AuthRequests
	window := cfg.AuthWindow()
	if checker == nil || limit <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	return func(c *fiber.Ctx) error {
		key := c.Path() + ":" + c.IP()

		result, err := checker.Allow(c.UserContext(), key, limit, window)
		if err != nil {
			logger.Warn("rate limit check failed; allowing request",
				zap.String("key", key),
				zap.Error(err))
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			retryAfter := result.RetryAfter(time.Now())
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
			logger.Info("rate limit exceeded", zap.String("key", key))
			return apperrors.NewRateLimited(retryAfter)
		}
		return c.Next()
	}
}
