package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"sendloop/config"
	"sendloop/models"
)

// VerifyRateLimiter throttles address verification, which fans out to
// MX lookups and whois queries and is easy to abuse.
func VerifyRateLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.AppConfig.RateLimitVerify,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			// User is set by the JWT middleware
			user := c.Locals("user").(*models.User)
			return fmt.Sprintf("ratelimit:verify:%d", user.ID)
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many verification requests. Please wait before trying again.",
				"retry_after": "1 minute",
			})
		},
		Storage: newRedisStorage(),
	})
}

func newRedisStorage() fiber.Storage {
	if config.Redis == nil {
		return nil // in-memory fallback
	}
	return &redisStorage{client: config.Redis}
}

// redisStorage adapts the shared Redis client to fiber.Storage so
// limits survive restarts and hold across replicas.
type redisStorage struct {
	client *redis.Client
}

func (r *redisStorage) Get(key string) ([]byte, error) {
	val, err := r.client.Get(context.Background(), key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return val, err
}

func (r *redisStorage) Set(key string, val []byte, exp time.Duration) error {
	return r.client.Set(context.Background(), key, val, exp).Err()
}

func (r *redisStorage) Delete(key string) error {
	return r.client.Del(context.Background(), key).Err()
}

func (r *redisStorage) Reset() error {
	return r.client.FlushDB(context.Background()).Err()
}

func (r *redisStorage) Close() error {
	return nil
}
