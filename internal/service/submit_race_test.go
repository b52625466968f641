package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shenikar/snap_and_send/internal/geo"
	"github.com/shenikar/snap_and_send/internal/models"
	"github.com/shenikar/snap_and_send/internal/repository/memory"
	"github.com/shenikar/snap_and_send/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// interleavingRepo вызывает afterSearch сразу после выборки кандидатов,
// имитируя транзакцию, зафиксированную между поиском и слиянием
type interleavingRepo struct {
	service.IncidentRepository
	afterSearch func(ctx context.Context, repo service.IncidentRepository, found []*models.Incident)
}

func (r *interleavingRepo) WithTx(ctx context.Context, fn func(ctx context.Context, repo service.IncidentRepository) error) error {
	return r.IncidentRepository.WithTx(ctx, func(ctx context.Context, tx service.IncidentRepository) error {
		return fn(ctx, &interleavingRepo{IncidentRepository: tx, afterSearch: r.afterSearch})
	})
}

func (r *interleavingRepo) FindOpenByCategory(ctx context.Context, category string, near geo.Point, radiusM float64) ([]*models.Incident, error) {
	found, err := r.IncidentRepository.FindOpenByCategory(ctx, category, near, radiusM)
	if err == nil && r.afterSearch != nil {
		r.afterSearch(ctx, r.IncidentRepository, found)
	}
	return found, err
}

func TestSubmitReport_CandidateResolvedAfterSearchIsSkipped(t *testing.T) {
	// Подготовка
	ctx := context.Background()
	base := memory.NewRepository()
	seedSvc := service.NewIncidentService(base, nil, nil, nil, service.DefaultSettings(), newTestLogger())
	original := submit(t, seedSvc, "pothole", abuja, models.UserIdentity("owner")).Incident

	// Ожидания: кандидат решается после выборки, но до блокировки
	repo := &interleavingRepo{
		IncidentRepository: base,
		afterSearch: func(ctx context.Context, tx service.IncidentRepository, found []*models.Incident) {
			for _, inc := range found {
				resolved := *inc
				resolved.Status = models.StatusResolved
				require.NoError(t, tx.UpdateStatus(ctx, &resolved))
			}
		},
	}
	svc := service.NewIncidentService(repo, nil, nil, nil, service.DefaultSettings(), newTestLogger())

	// Действие
	result := submit(t, svc, "pothole", abujaNear, models.UserIdentity("fresh"))

	// Проверки
	assert.False(t, result.Merged)
	assert.NotEqual(t, original.ID, result.Incident.ID)
	assert.Equal(t, models.StatusPending, result.Incident.Status)

	stored, err := base.GetByID(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, stored.Status)
	assert.Equal(t, 0, stored.VerificationCount)
	rows, err := base.ListVerifications(ctx, original.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSubmitReport_CandidateDeletedAfterSearchCreatesNew(t *testing.T) {
	base := memory.NewRepository()
	seedSvc := service.NewIncidentService(base, nil, nil, nil, service.DefaultSettings(), newTestLogger())
	original := submit(t, seedSvc, "pothole", abuja, models.UserIdentity("owner")).Incident

	repo := &interleavingRepo{
		IncidentRepository: base,
		afterSearch: func(ctx context.Context, tx service.IncidentRepository, found []*models.Incident) {
			for _, inc := range found {
				require.NoError(t, tx.Delete(ctx, inc.ID))
			}
		},
	}
	svc := service.NewIncidentService(repo, nil, nil, nil, service.DefaultSettings(), newTestLogger())

	result := submit(t, svc, "pothole", abujaNear, models.UserIdentity("fresh"))

	assert.False(t, result.Merged)
	assert.NotEqual(t, original.ID, result.Incident.ID)
}

func TestSubmitReport_ConcurrentSameIdentityMergesOnce(t *testing.T) {
	// Подготовка
	svc, _, _ := newTestIncidentService(t)
	ctx := context.Background()
	original := seedWithVerifications(t, svc, 0)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		merged int
	)

	// Действие
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.SubmitReport(ctx, service.SubmitReportInput{
				Category:  "pothole",
				Title:     "Same pothole",
				Latitude:  abujaNear[0],
				Longitude: abujaNear[1],
				Identity:  models.SessionIdentity("same"),
			})
			// повторная отправка не получает ErrAlreadyVerified, дубль просто пропускается
			if !assert.NoError(t, err) {
				return
			}
			if result.Merged {
				mu.Lock()
				merged++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Проверки
	assert.Equal(t, 1, merged)
	got, err := svc.GetIncident(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.VerificationCount)
}
