package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/snap_and_send/internal/geo"
	"github.com/shenikar/snap_and_send/internal/models"
	"github.com/shenikar/snap_and_send/internal/repository/memory"
	"github.com/shenikar/snap_and_send/internal/service"
	"github.com/shenikar/snap_and_send/internal/service/mocks"
	webhook_mocks "github.com/shenikar/snap_and_send/internal/webhook/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func point(at [2]float64) *geo.Point {
	return &geo.Point{Lat: at[0], Lon: at[1]}
}

// seedWithVerifications создаёт инцидент и подтверждает его n разными пользователями
func seedWithVerifications(t *testing.T, svc service.IncidentService, n int) *models.Incident {
	t.Helper()
	created := submit(t, svc, "pothole", abuja, models.UserIdentity("owner"))
	for i := 0; i < n; i++ {
		_, err := svc.Verify(context.Background(), created.Incident.ID, models.UserIdentity(fmt.Sprintf("seed-%d", i)), point(abuja))
		require.NoError(t, err)
	}
	return created.Incident
}

func TestSubmitReport_CreatesPendingIncident(t *testing.T) {
	// Подготовка
	svc, _, events := newTestIncidentService(t)

	// Действие
	result := submit(t, svc, " Pothole ", abuja, models.SessionIdentity("tok-1"))

	// Проверки
	assert.False(t, result.Merged)
	assert.Equal(t, "pothole", result.Incident.Category)
	assert.Equal(t, models.StatusPending, result.Incident.Status)
	assert.Equal(t, 0, result.Incident.VerificationCount)
	assert.True(t, result.Incident.Owner.Equal(models.SessionIdentity("tok-1")))
	assert.Equal(t, []models.EventKind{models.EventIncidentCreated}, events.Kinds())
}

func TestSubmitReport_RejectsInvalidInput(t *testing.T) {
	svc, _, _ := newTestIncidentService(t)
	ctx := context.Background()

	_, err := svc.SubmitReport(ctx, service.SubmitReportInput{Category: "Pot Hole!", Identity: models.UserIdentity("u")})
	assert.ErrorIs(t, err, models.ErrInvalidCategory)

	_, err = svc.SubmitReport(ctx, service.SubmitReportInput{Category: "pothole"})
	assert.ErrorIs(t, err, models.ErrMissingIdentity)
}

func TestSubmitReport_MergesNearbyAndPromotes(t *testing.T) {
	// Подготовка: инцидент с двумя подтверждениями
	svc, repo, events := newTestIncidentService(t)
	ctx := context.Background()
	original := seedWithVerifications(t, svc, 2)

	// Действие: новый отчёт в ~16 м от инцидента
	result := submit(t, svc, "pothole", abujaNear, models.UserIdentity("fresh"))

	// Проверки
	require.True(t, result.Merged)
	assert.Equal(t, original.ID, result.Incident.ID)
	assert.InDelta(t, 15.6, result.MergeDistance, 1)
	assert.Equal(t, 3, result.Incident.VerificationCount)
	assert.Equal(t, models.StatusVerified, result.Incident.Status)
	require.NotNil(t, result.Verification)
	assert.InDelta(t, 15.6, result.Verification.Distance, 1)

	history, err := svc.GetHistory(ctx, original.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.StatusPending, history[0].PreviousStatus)
	assert.Equal(t, models.StatusVerified, history[0].NewStatus)
	assert.Equal(t, service.ActorVerificationEngine, history[0].ChangedBy)
	assert.Equal(t, 1, events.Count(models.EventIncidentVerified))

	_, total, err := repo.ListIncidents(ctx, models.IncidentFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestSubmitReport_FarAwayCreatesNewIncident(t *testing.T) {
	svc, _, _ := newTestIncidentService(t)
	ctx := context.Background()
	original := seedWithVerifications(t, svc, 2)

	result := submit(t, svc, "pothole", abujaFar, models.UserIdentity("fresh"))

	assert.False(t, result.Merged)
	assert.NotEqual(t, original.ID, result.Incident.ID)

	untouched, err := svc.GetIncident(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, untouched.VerificationCount)
	assert.Equal(t, models.StatusPending, untouched.Status)
}

func TestSubmitReport_DoesNotMerge(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, svc service.IncidentService, id uuid.UUID)
		cat     string
		who     models.Identity
	}{
		{
			name: "different category",
			cat:  "garbage",
			who:  models.UserIdentity("fresh"),
		},
		{
			name: "owner reports again",
			cat:  "pothole",
			who:  models.UserIdentity("owner"),
		},
		{
			name: "identity already verified",
			cat:  "pothole",
			who:  models.UserIdentity("seed-0"),
		},
		{
			name: "incident resolved",
			cat:  "pothole",
			who:  models.UserIdentity("fresh"),
			prepare: func(t *testing.T, svc service.IncidentService, id uuid.UUID) {
				_, err := svc.ChangeStatus(context.Background(), service.ChangeStatusInput{
					IncidentID: id, Status: models.StatusResolved, Actor: "city",
				})
				require.NoError(t, err)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestIncidentService(t)
			original := seedWithVerifications(t, svc, 1)
			if tt.prepare != nil {
				tt.prepare(t, svc, original.ID)
			}

			result := submit(t, svc, tt.cat, abujaNear, tt.who)

			assert.False(t, result.Merged)
			assert.NotEqual(t, original.ID, result.Incident.ID)
		})
	}
}

func TestSubmitReport_PrefersMostRecentCandidate(t *testing.T) {
	svc, repo, _ := newTestIncidentService(t)
	ctx := context.Background()

	// ближний, но старый
	older := &models.Incident{
		ID: uuid.New(), Category: "pothole", Status: models.StatusPending,
		Latitude: abujaNear[0], Longitude: abujaNear[1],
		Owner:     models.UserIdentity("a"),
		CreatedAt: time.Now().Add(-2 * time.Hour),
	}
	// дальше (~150 м), но новее
	newer := &models.Incident{
		ID: uuid.New(), Category: "pothole", Status: models.StatusPending,
		Latitude: abuja[0] + 0.00135, Longitude: abuja[1],
		Owner:     models.UserIdentity("b"),
		CreatedAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))

	result := submit(t, svc, "pothole", abuja, models.UserIdentity("fresh"))

	require.True(t, result.Merged)
	assert.Equal(t, newer.ID, result.Incident.ID)
	assert.Greater(t, result.MergeDistance, 100.0)
	assert.LessOrEqual(t, result.MergeDistance, service.DuplicateRadiusMeters)
}

func TestVerify_Errors(t *testing.T) {
	svc, _, _ := newTestIncidentService(t)
	ctx := context.Background()
	incident := seedWithVerifications(t, svc, 1)

	t.Run("out of range", func(t *testing.T) {
		_, err := svc.Verify(ctx, incident.ID, models.UserIdentity("far"), point(abujaFar))

		require.ErrorIs(t, err, models.ErrOutOfRange)
		var oor *models.OutOfRangeError
		require.True(t, errors.As(err, &oor))
		assert.Greater(t, oor.Distance, 20000.0)
		assert.Equal(t, service.VerificationRadiusMeters, oor.Limit)
	})

	t.Run("missing location", func(t *testing.T) {
		_, err := svc.Verify(ctx, incident.ID, models.UserIdentity("x"), nil)
		assert.ErrorIs(t, err, models.ErrMissingLocation)
	})

	t.Run("already verified", func(t *testing.T) {
		_, err := svc.Verify(ctx, incident.ID, models.UserIdentity("seed-0"), point(abuja))
		assert.ErrorIs(t, err, models.ErrAlreadyVerified)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := svc.Verify(ctx, uuid.New(), models.UserIdentity("x"), point(abuja))
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	got, err := svc.GetIncident(ctx, incident.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.VerificationCount)
}

func TestVerify_PromotesExactlyOnce(t *testing.T) {
	svc, _, events := newTestIncidentService(t)
	ctx := context.Background()
	incident := seedWithVerifications(t, svc, 2)

	third, err := svc.Verify(ctx, incident.ID, models.SessionIdentity("s-3"), point(abujaNear))
	require.NoError(t, err)
	assert.True(t, third.Promoted)
	assert.Equal(t, models.StatusVerified, third.Incident.Status)

	fourth, err := svc.Verify(ctx, incident.ID, models.SessionIdentity("s-4"), point(abujaNear))
	require.NoError(t, err)
	assert.False(t, fourth.Promoted)
	assert.Equal(t, 4, fourth.Incident.VerificationCount)

	history, err := svc.GetHistory(ctx, incident.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Equal(t, 1, events.Count(models.EventIncidentVerified))
}

func TestUnverify_TwiceReturnsNotFound(t *testing.T) {
	svc, _, _ := newTestIncidentService(t)
	ctx := context.Background()
	incident := seedWithVerifications(t, svc, 3)

	updated, err := svc.Unverify(ctx, incident.ID, models.UserIdentity("seed-1"))
	require.NoError(t, err)
	assert.Equal(t, 2, updated.VerificationCount)
	// статус не понижается
	assert.Equal(t, models.StatusVerified, updated.Status)

	_, err = svc.Unverify(ctx, incident.ID, models.UserIdentity("seed-1"))
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestVerificationCount_MatchesRows(t *testing.T) {
	svc, _, _ := newTestIncidentService(t)
	ctx := context.Background()
	incident := seedWithVerifications(t, svc, 0)

	ops := []struct {
		verify bool
		who    string
	}{
		{true, "a"}, {true, "b"}, {false, "a"}, {true, "c"}, {true, "a"},
		{false, "b"}, {false, "b"}, {true, "b"}, {false, "c"}, {true, "a"},
	}
	for _, op := range ops {
		if op.verify {
			_, _ = svc.Verify(ctx, incident.ID, models.UserIdentity(op.who), point(abuja))
		} else {
			_, _ = svc.Unverify(ctx, incident.ID, models.UserIdentity(op.who))
		}

		got, err := svc.GetIncident(ctx, incident.ID)
		require.NoError(t, err)
		rows, err := svc.ListVerifications(ctx, incident.ID)
		require.NoError(t, err)
		assert.Equal(t, len(rows), got.VerificationCount)
	}
}

func TestVerify_ConcurrentAttempts(t *testing.T) {
	t.Run("same identity", func(t *testing.T) {
		svc, _, _ := newTestIncidentService(t)
		ctx := context.Background()
		incident := seedWithVerifications(t, svc, 0)

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := svc.Verify(ctx, incident.ID, models.SessionIdentity("same"), point(abuja)); err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, succeeded)
		rows, err := svc.ListVerifications(ctx, incident.ID)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("distinct identities promote once", func(t *testing.T) {
		svc, _, events := newTestIncidentService(t)
		ctx := context.Background()
		incident := seedWithVerifications(t, svc, 0)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := svc.Verify(ctx, incident.ID, models.UserIdentity(fmt.Sprintf("u-%d", i)), point(abuja))
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		got, err := svc.GetIncident(ctx, incident.ID)
		require.NoError(t, err)
		assert.Equal(t, 20, got.VerificationCount)
		history, err := svc.GetHistory(ctx, incident.ID)
		require.NoError(t, err)
		assert.Len(t, history, 1)
		assert.Equal(t, 1, events.Count(models.EventIncidentVerified))
	})
}

func TestChangeStatus_Lifecycle(t *testing.T) {
	svc, _, events := newTestIncidentService(t)
	ctx := context.Background()
	incident := seedWithVerifications(t, svc, 0)
	partnerID := uuid.New()
	notes := "Crew dispatched"

	investigating, err := svc.ChangeStatus(ctx, service.ChangeStatusInput{
		IncidentID: incident.ID, Status: models.StatusInvestigating, Actor: "roads-dept", PartnerID: &partnerID,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInvestigating, investigating.Status)
	assert.NotNil(t, investigating.InvestigatingAt)

	// повторный запрос того же статуса ничего не меняет
	_, err = svc.ChangeStatus(ctx, service.ChangeStatusInput{
		IncidentID: incident.ID, Status: models.StatusInvestigating, Actor: "roads-dept",
	})
	require.NoError(t, err)

	resolved, err := svc.ChangeStatus(ctx, service.ChangeStatusInput{
		IncidentID: incident.ID, Status: models.StatusResolved, Actor: "roads-dept", Notes: &notes,
	})
	require.NoError(t, err)
	assert.NotNil(t, resolved.ResolvedAt)
	require.NotNil(t, resolved.ResolutionNotes)
	assert.Equal(t, notes, *resolved.ResolutionNotes)

	history, err := svc.GetHistory(ctx, incident.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.StatusInvestigating, history[0].PreviousStatus)
	assert.Equal(t, models.StatusResolved, history[0].NewStatus)
	assert.Equal(t, models.StatusInvestigating, history[1].NewStatus)
	assert.Equal(t, &partnerID, history[1].PartnerID)

	assert.Equal(t, 2, events.Count(models.EventIncidentStatusChanged))
	assert.Equal(t, 1, events.Count(models.EventIncidentResolved))
}

func TestChangeStatus_Rejected(t *testing.T) {
	svc, _, _ := newTestIncidentService(t)
	ctx := context.Background()
	incident := seedWithVerifications(t, svc, 0)

	tests := []struct {
		name    string
		in      service.ChangeStatusInput
		wantErr error
	}{
		{
			name:    "verified is automatic only",
			in:      service.ChangeStatusInput{IncidentID: incident.ID, Status: models.StatusVerified, Actor: "city"},
			wantErr: models.ErrInvalidStatus,
		},
		{
			name:    "unknown status",
			in:      service.ChangeStatusInput{IncidentID: incident.ID, Status: "closed", Actor: "city"},
			wantErr: models.ErrInvalidStatus,
		},
		{
			name:    "no actor",
			in:      service.ChangeStatusInput{IncidentID: incident.ID, Status: models.StatusResolved},
			wantErr: models.ErrUnauthorized,
		},
		{
			name:    "missing incident",
			in:      service.ChangeStatusInput{IncidentID: uuid.New(), Status: models.StatusResolved, Actor: "city"},
			wantErr: models.ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ChangeStatus(ctx, tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := svc.ChangeStatus(ctx, service.ChangeStatusInput{IncidentID: incident.ID, Status: models.StatusResolved, Actor: "city"})
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, service.ChangeStatusInput{IncidentID: incident.ID, Status: models.StatusInvestigating, Actor: "city"})
	assert.ErrorIs(t, err, models.ErrInvalidStatus)
}

func TestGetStats(t *testing.T) {
	svc, repo, _ := newTestIncidentService(t)
	ctx := context.Background()

	old := &models.Incident{
		ID: uuid.New(), Category: "garbage", Status: models.StatusResolved,
		CreatedAt: time.Now().Add(-72 * time.Hour),
	}
	require.NoError(t, repo.Create(ctx, old))
	submit(t, svc, "pothole", abuja, models.UserIdentity("a"))
	submit(t, svc, "pothole", abujaFar, models.UserIdentity("b"))

	stats, err := svc.GetStats(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Last24h)
	assert.Equal(t, map[string]int{"pending": 2, "resolved": 1}, stats.ByStatus)
	assert.Equal(t, map[string]int{"pothole": 2, "garbage": 1}, stats.ByCategory)

	since := time.Now().Add(-48 * time.Hour)
	stats, err = svc.GetStats(ctx, &since)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, map[string]int{"pothole": 2}, stats.ByCategory)
}

func TestDeleteIncident_OwnerOnly(t *testing.T) {
	svc, _, _ := newTestIncidentService(t)
	ctx := context.Background()
	incident := seedWithVerifications(t, svc, 1)

	err := svc.DeleteIncident(ctx, incident.ID, models.UserIdentity("seed-0"))
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	require.NoError(t, svc.DeleteIncident(ctx, incident.ID, models.UserIdentity("owner")))

	_, err = svc.GetIncident(ctx, incident.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGetIncident_Success_FromCache(t *testing.T) {
	// Подготовка
	ctrl := gomock.NewController(t)
	cacheMock := mocks.NewMockIncidentCache(ctrl)
	svc := service.NewIncidentService(memory.NewRepository(), cacheMock, nil, nil, service.DefaultSettings(), newTestLogger())
	ctx := context.Background()
	expected := &models.Incident{ID: uuid.New(), Title: "Тестовый инцидент из кеша"}

	// Ожидания
	cacheMock.EXPECT().Get(ctx, expected.ID).Return(expected, nil).Times(1)

	// Действие
	incident, err := svc.GetIncident(ctx, expected.ID)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, expected, incident)
}

func TestGetIncident_Success_FromDB(t *testing.T) {
	// Подготовка
	ctrl := gomock.NewController(t)
	cacheMock := mocks.NewMockIncidentCache(ctrl)
	repo := memory.NewRepository()
	svc := service.NewIncidentService(repo, cacheMock, nil, nil, service.DefaultSettings(), newTestLogger())
	ctx := context.Background()
	stored := &models.Incident{ID: uuid.New(), Title: "Тестовый инцидент из БД", Status: models.StatusPending}
	require.NoError(t, repo.Create(ctx, stored))

	// Ожидания
	// 1. Промах кеша
	cacheMock.EXPECT().Get(ctx, stored.ID).Return(nil, nil).Times(1)
	// 2. Запись в кеш
	cacheMock.EXPECT().Set(ctx, gomock.Any()).Return(nil).Times(1)

	// Действие
	incident, err := svc.GetIncident(ctx, stored.ID)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, stored.ID, incident.ID)
}

func TestVerify_InvalidatesCacheAndSwallowsPublishErrors(t *testing.T) {
	// Подготовка
	ctrl := gomock.NewController(t)
	cacheMock := mocks.NewMockIncidentCache(ctrl)
	publisher := webhook_mocks.NewMockPublisher(ctrl)
	repo := memory.NewRepository()
	settings := service.DefaultSettings()
	settings.PromotionThreshold = 1
	svc := service.NewIncidentService(repo, cacheMock, publisher, nil, settings, newTestLogger())
	ctx := context.Background()
	stored := &models.Incident{ID: uuid.New(), Category: "pothole", Status: models.StatusPending, Latitude: abuja[0], Longitude: abuja[1]}
	require.NoError(t, repo.Create(ctx, stored))

	// Ожидания
	cacheMock.EXPECT().Invalidate(ctx, stored.ID).Return(nil).Times(1)
	publisher.EXPECT().Publish(ctx, gomock.Any()).Return(errors.New("redis down")).Times(1)

	// Действие
	result, err := svc.Verify(ctx, stored.ID, models.UserIdentity("u"), point(abuja))

	// Проверки
	require.NoError(t, err)
	assert.True(t, result.Promoted)
}
