package webhook

import (
	"context"
	"testing"
	"time"

	"github.com/shenikar/snap_and_send/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanDispatcher struct {
	events chan Event
}

func (d *chanDispatcher) Dispatch(_ context.Context, event Event) []DeliveryResult {
	d.events <- event
	return nil
}

func TestWorker_DeliversQueuedEvents(t *testing.T) {
	queue := NewChannelQueue(4)
	dispatcher := &chanDispatcher{events: make(chan Event, 4)}
	worker := NewWorker(queue, dispatcher, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)

	event, err := NewEvent(models.EventIncidentCreated, map[string]string{"id": "1"})
	require.NoError(t, err)
	require.NoError(t, queue.Publish(ctx, event))

	select {
	case got := <-dispatcher.events:
		assert.Equal(t, models.EventIncidentCreated, got.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not dispatched")
	}

	cancel()
	worker.Wait()
}

func TestChannelQueue_PublishDoesNotBlockWhenFull(t *testing.T) {
	queue := NewChannelQueue(1)
	event, err := NewEvent(models.EventIncidentCreated, nil)
	require.NoError(t, err)

	require.NoError(t, queue.Publish(context.Background(), event))
	assert.ErrorIs(t, queue.Publish(context.Background(), event), ErrQueueFull)
}

func TestChannelQueue_PopHonoursContext(t *testing.T) {
	queue := NewChannelQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := queue.Pop(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
