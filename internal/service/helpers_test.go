package service_test

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/shenikar/snap_and_send/internal/models"
	"github.com/shenikar/snap_and_send/internal/repository/memory"
	"github.com/shenikar/snap_and_send/internal/service"
	"github.com/shenikar/snap_and_send/internal/webhook"
	webhook_mocks "github.com/shenikar/snap_and_send/internal/webhook/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// eventLog собирает опубликованные события
type eventLog struct {
	mu    sync.Mutex
	kinds []models.EventKind
}

func (l *eventLog) record(_ context.Context, event webhook.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.kinds = append(l.kinds, event.Kind)
	return nil
}

func (l *eventLog) Kinds() []models.EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.EventKind(nil), l.kinds...)
}

func (l *eventLog) Count(kind models.EventKind) int {
	n := 0
	for _, k := range l.Kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах
	return logger
}

// newTestIncidentService собирает сервис поверх хранилища в памяти без кеша
func newTestIncidentService(t *testing.T) (service.IncidentService, *memory.Repository, *eventLog) {
	t.Helper()
	ctrl := gomock.NewController(t)
	publisher := webhook_mocks.NewMockPublisher(ctrl)
	events := &eventLog{}
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(events.record).AnyTimes()

	repo := memory.NewRepository()
	svc := service.NewIncidentService(repo, nil, publisher, nil, service.DefaultSettings(), newTestLogger())
	return svc, repo, events
}

var (
	abuja     = [2]float64{9.0579, 7.4951}
	abujaNear = [2]float64{9.0580, 7.4952}
	abujaFar  = [2]float64{9.20, 7.70}
)

func submit(t *testing.T, svc service.IncidentService, category string, at [2]float64, identity models.Identity) *service.SubmitResult {
	t.Helper()
	result, err := svc.SubmitReport(context.Background(), service.SubmitReportInput{
		Category:    category,
		Title:       "Deep pothole",
		Description: "Near the junction",
		Latitude:    at[0],
		Longitude:   at[1],
		Identity:    identity,
	})
	require.NoError(t, err)
	return result
}
