package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	webhookQueueKey = "webhook_events"
	popTimeout      = 5 * time.Second
)

var (
	ErrQueueFull  = errors.New("webhook queue is full")
	errQueueEmpty = errors.New("webhook queue is empty")
)

// Publisher - интерфейс для публикации событий вебхуков
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Queue передаёт события от сервиса воркеру доставки
type Queue interface {
	Publisher
	Pop(ctx context.Context) (Event, error)
}

// RedisQueue - очередь событий в списке Redis
type RedisQueue struct {
	redisClient *redis.Client
}

// NewRedisQueue создает новый RedisQueue
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{
		redisClient: client,
	}
}

// Publish публикует событие вебхука в очередь Redis
func (q *RedisQueue) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook event: %w", err)
	}

	// LPUSH добавляет событие в левую часть списка, воркер забирает справа
	if err := q.redisClient.LPush(ctx, webhookQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish webhook event to Redis: %w", err)
	}
	return nil
}

// Pop блокируется до появления события или истечения popTimeout
func (q *RedisQueue) Pop(ctx context.Context) (Event, error) {
	result, err := q.redisClient.BRPop(ctx, popTimeout, webhookQueueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Event{}, errQueueEmpty
		}
		return Event{}, fmt.Errorf("failed to pop webhook event from Redis: %w", err)
	}

	// result[0] - ключ, result[1] - значение
	var event Event
	if err := json.Unmarshal([]byte(result[1]), &event); err != nil {
		return Event{}, fmt.Errorf("failed to unmarshal webhook event: %w", err)
	}
	return event, nil
}

// ChannelQueue - очередь в памяти процесса, используется без Redis
type ChannelQueue struct {
	events chan Event
}

func NewChannelQueue(size int) *ChannelQueue {
	if size < 1 {
		size = 1
	}
	return &ChannelQueue{events: make(chan Event, size)}
}

// Publish не блокирует вызывающего: при переполнении событие отбрасывается
func (q *ChannelQueue) Publish(_ context.Context, event Event) error {
	select {
	case q.events <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *ChannelQueue) Pop(ctx context.Context) (Event, error) {
	select {
	case event := <-q.events:
		return event, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}
