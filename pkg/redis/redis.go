package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPoolSize = 10
	pingTimeout     = 5 * time.Second
)

// Options - параметры подключения к Redis
type Options struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// NewRedisClient создает клиент Redis для кэша, очереди вебхуков и реестра категорий.
// Если Redis недоступен, клиент закрывается и возвращается ошибка.
func NewRedisClient(ctx context.Context, opts Options) (*redis.Client, error) {
	poolSize := opts.PoolSize
	if poolSize < 1 {
		poolSize = defaultPoolSize
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: poolSize,
	})

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}

	return rdb, nil
}
