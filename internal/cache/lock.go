package cache

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"QuestLoop/storage/redis"
)

const lockPrefix = "lock"

// releaseScript 只删除自己持有的锁，避免过期后误删别人的锁
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// TryLock 通过 SETNX 获取分布式锁，token 标识持有者
func TryLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return redis.Client().SetNX(ctx, redis.Key(lockPrefix, key), token, ttl).Result()
}

// Unlock 释放锁，返回是否确实由 token 持有
func Unlock(ctx context.Context, key, token string) (bool, error) {
	n, err := releaseScript.Run(ctx, redis.Client(), []string{redis.Key(lockPrefix, key)}, token).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
