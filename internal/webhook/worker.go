package webhook

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// EventDispatcher доставляет одно событие подписчикам
type EventDispatcher interface {
	Dispatch(ctx context.Context, event Event) []DeliveryResult
}

// Worker - воркер, забирающий события из очереди и передающий их диспетчеру
type Worker struct {
	queue      Queue
	dispatcher EventDispatcher
	logger     *logrus.Logger
	retryDelay time.Duration
	wg         sync.WaitGroup
}

// NewWorker создает новый Worker
func NewWorker(queue Queue, dispatcher EventDispatcher, logger *logrus.Logger) *Worker {
	return &Worker{
		queue:      queue,
		dispatcher: dispatcher,
		logger:     logger,
		retryDelay: time.Second,
	}
}

// Start запускает горутину для обработки очереди вебхуков
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Starting webhook worker...")
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			event, err := w.queue.Pop(ctx)
			if ctx.Err() != nil {
				w.logger.Info("Stopping webhook worker.")
				return
			}
			if err != nil {
				if errors.Is(err, errQueueEmpty) {
					continue
				}
				w.logger.WithError(err).Error("Failed to pop webhook event")
				select {
				case <-time.After(w.retryDelay):
				case <-ctx.Done():
				}
				continue
			}

			// каждое событие доставляется независимо, медленный подписчик не задерживает очередь
			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				w.dispatcher.Dispatch(context.WithoutCancel(ctx), event)
			}()
		}
	}()
}

// Wait ждёт завершения цикла и доставок, начатых до остановки
func (w *Worker) Wait() {
	w.wg.Wait()
}
