package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"QuestLoop/pkg/errors"
	"QuestLoop/pkg/logger"
	"QuestLoop/pkg/response"
	"QuestLoop/storage/redis"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	KeyPrefix   string
	Window      time.Duration
	MaxRequests int
}

// QuestMutationRateLimitConfig 任务写接口按用户限流
var QuestMutationRateLimitConfig = RateLimitConfig{
	Window:      time.Minute,
	MaxRequests: 120,
	KeyPrefix:   "rate:quest",
}

// RateLimiter 基于 zset 的滑动窗口限流器
type RateLimiter struct {
	now    func() time.Time
	config RateLimitConfig
}

func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	return &RateLimiter{config: config, now: time.Now}
}

// Allow 记录一次请求并返回窗口内是否仍未超限
func (rl *RateLimiter) Allow(ctx context.Context, identifier string) (bool, int, error) {
	key := redis.Key(rl.config.KeyPrefix, identifier)
	now := rl.now()
	windowStart := now.Add(-rl.config.Window)

	pipe := redis.Client().Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	pipe.ZAdd(ctx, key, redislib.Z{
		Score:  float64(now.UnixNano()),
		Member: now.UnixNano(),
	})
	zcard := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, rl.config.Window+10*time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("failed to execute pipeline: %w", err)
	}

	count := int(zcard.Val())
	return count <= rl.config.MaxRequests, count, nil
}

// RateLimitMiddleware 按用户限流，未认证时按 IP；redis 不可用时放行
func RateLimitMiddleware(config RateLimitConfig) app.HandlerFunc {
	limiter := NewRateLimiter(config)

	return func(ctx context.Context, c *app.RequestContext) {
		identifier := "ip:" + c.ClientIP()
		if userID, ok := GetUserID(ctx, c); ok {
			identifier = "user:" + strconv.FormatInt(userID, 10)
		}

		allowed, count, err := limiter.Allow(ctx, identifier)
		if err != nil {
			logger.Logger.Warn("Rate limiter unavailable, allowing request", zap.Error(err))
			c.Next(ctx)
			return
		}

		remaining := config.MaxRequests - count
		if remaining < 0 {
			remaining = 0
		}
		c.Response.Header.Set("X-RateLimit-Limit", strconv.Itoa(config.MaxRequests))
		c.Response.Header.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			c.Abort()
			response.Error(ctx, c, errors.TooManyRequests)
			return
		}

		c.Next(ctx)
	}
}

func QuestMutationRateLimitMiddleware() app.HandlerFunc {
	return RateLimitMiddleware(QuestMutationRateLimitConfig)
}
