package category

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const customCategoriesKey = "categories:custom"

// RedisStore хранит пользовательские категории в множестве Redis
type RedisStore struct {
	redisClient *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{redisClient: client}
}

func (s *RedisStore) Add(ctx context.Context, tag string) error {
	if err := s.redisClient.SAdd(ctx, customCategoriesKey, tag).Err(); err != nil {
		return fmt.Errorf("failed to add custom category: %w", err)
	}
	return nil
}

func (s *RedisStore) Members(ctx context.Context) ([]string, error) {
	tags, err := s.redisClient.SMembers(ctx, customCategoriesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read custom categories: %w", err)
	}
	return tags, nil
}
