package security

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/redis/go-redis/v9"
)

// RateLimiter throttles the local API so a misbehaving app shell cannot
// hammer the backend through the sync and refresh endpoints.
type RateLimiter struct {
	redis *redis.Client
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient}
}

// Limit allows at most max requests per window per client IP for the routes
// it wraps. A redis outage fails open.
func (r *RateLimiter) Limit(max int64, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := fmt.Sprintf("ratelimit:%s:%s", c.Request().URL.Path, c.RealIP())

			count, err := r.redis.Incr(context.Background(), key).Result()
			if err == nil {
				if count == 1 {
					r.redis.Expire(context.Background(), key, window)
				}
				if count > max {
					return c.JSON(429, map[string]string{
						"error": "Too many requests. Please try again later.",
					})
				}
			}

			return next(c)
		}
	}
}
