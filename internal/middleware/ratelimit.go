package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/emoticonlab/kakao-emoticon-mcp/pkg/response"
)

// RateLimiter counts requests per client IP in fixed Redis windows. A nil
// Redis client disables limiting.
type RateLimiter struct {
	redis *redis.Client
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient}
}

// Limit creates a rate limiting middleware
func (rl *RateLimiter) Limit(keyPrefix string, maxRequests int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rl.redis == nil || maxRequests <= 0 {
			return c.Next()
		}

		key := fmt.Sprintf("ratelimit:%s:%s", keyPrefix, c.IP())
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		count, err := rl.redis.Incr(ctx, key).Result()
		if err != nil {
			// If Redis fails, allow the request
			logrus.WithError(err).Debug("rate limiter unavailable")
			return c.Next()
		}

		if count == 1 {
			if err := rl.redis.Expire(ctx, key, window).Err(); err != nil {
				// A counter without a TTL would lock the client out for good.
				rl.redis.Del(ctx, key)
				logrus.WithError(err).WithField("key", key).Warn("rate limit window not set")
				return c.Next()
			}
		}

		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", maxRequests))

		if count > int64(maxRequests) {
			ttl, _ := rl.redis.TTL(ctx, key).Result()
			c.Set("Retry-After", fmt.Sprintf("%d", int(ttl.Seconds())))
			c.Set("X-RateLimit-Remaining", "0")
			return response.RateLimited(c)
		}

		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", maxRequests-int(count)))
		return c.Next()
	}
}

// GenerateLimit limits generation requests per hour.
func (rl *RateLimiter) GenerateLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("generate", maxPerHour, time.Hour)
}

// MCPLimit limits MCP JSON-RPC calls per minute.
func (rl *RateLimiter) MCPLimit(maxPerMin int) fiber.Handler {
	return rl.Limit("mcp", maxPerMin, time.Minute)
}

// CheckLimit limits compliance checks per minute.
func (rl *RateLimiter) CheckLimit(maxPerMin int) fiber.Handler {
	return rl.Limit("check", maxPerMin, time.Minute)
}
