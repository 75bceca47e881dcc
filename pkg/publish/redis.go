package publish

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/diagnostic-updater/pkg/config"
	"github.com/diagnostic-updater/pkg/diagnostic"
)

// redisClient go-redis 客户端中用到的部分，测试时可替换
type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// RedisPublisher 通过 Redis Pub/Sub 发布批次，并把最新批次写入 <channel>:latest
type RedisPublisher struct {
	client  redisClient
	channel string
	timeout time.Duration
	closed  atomic.Bool
}

// NewRedisPublisher 根据配置创建 Redis 客户端
func NewRedisPublisher(cfg config.RedisSinkConfig) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.Timeout,
	})
	return newRedisPublisher(client, cfg.Channel, cfg.Timeout)
}

func newRedisPublisher(client redisClient, channel string, timeout time.Duration) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel, timeout: timeout}
}

func (p *RedisPublisher) Name() string { return "redis" }

// LatestKey 保存最新批次的键
func (p *RedisPublisher) LatestKey() string { return p.channel + ":latest" }

func (p *RedisPublisher) Publish(ctx context.Context, batch *diagnostic.Batch) error {
	if p.closed.Load() {
		return ErrClosed
	}
	data, err := EncodeBatch(batch)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.channel, err)
	}
	if err := p.client.Set(ctx, p.LatestKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", p.LatestKey(), err)
	}
	return nil
}

// Close 关闭客户端；之后的 Publish 返回 ErrClosed，重复调用无副作用
func (p *RedisPublisher) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.client.Close()
}
