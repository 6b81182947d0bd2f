package storage

import (
	"context"
	"fmt"
	"time"

	"talent-match-go/internal/config"
	"talent-match-go/internal/constants"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a key is not found in Redis.
// It wraps the underlying redis.Nil error for abstraction.
var ErrNotFound = redis.Nil

// StatusTracker 摄入状态跟踪接口
// 状态写入是尽力而为的旁路操作，失败只记录日志不中断摄入
type StatusTracker interface {
	SetIngestionStatus(ctx context.Context, namespace, recordID, status string) error
	GetIngestionStatus(ctx context.Context, namespace, recordID string) (string, error)
}

// 确保Redis实现了StatusTracker接口
var _ StatusTracker = (*Redis)(nil)

// Redis wraps the Redis client
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter creates a new Redis client connection
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		// 连接池设置
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		// 超时设置
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
	}

	client := redis.NewClient(opt)

	// 添加OpenTelemetry钩子, 记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	// Ping to check connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{
		Client: client,
		config: cfg,
	}, nil
}

// Close 关闭Redis连接
func (r *Redis) Close() error {
	return r.Client.Close()
}

// ingestionStatusKey 摄入状态键
func ingestionStatusKey(namespace, recordID string) string {
	return fmt.Sprintf(constants.KeyIngestionStatus, namespace, recordID)
}

// SetIngestionStatus 写入记录的摄入状态，带TTL，同一条记录重复摄入时覆盖
func (r *Redis) SetIngestionStatus(ctx context.Context, namespace, recordID, status string) error {
	key := ingestionStatusKey(namespace, recordID)
	if err := r.Client.Set(ctx, key, status, constants.IngestionStatusTTL).Err(); err != nil {
		return fmt.Errorf("写入摄入状态失败 (key=%s): %w", key, err)
	}
	return nil
}

// GetIngestionStatus 读取记录的摄入状态；键不存在时返回 ErrNotFound
func (r *Redis) GetIngestionStatus(ctx context.Context, namespace, recordID string) (string, error) {
	key := ingestionStatusKey(namespace, recordID)
	val, err := r.Client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("读取摄入状态失败 (key=%s): %w", key, err)
	}
	return val, nil
}
