package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shenikar/snap_and_send/internal/models"
	"github.com/shenikar/snap_and_send/internal/repository/memory"
	"github.com/shenikar/snap_and_send/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartnerService_CreateAndAuthenticate(t *testing.T) {
	// Подготовка
	repo := memory.NewRepository()
	svc := service.NewPartnerService(repo, newTestLogger())
	ctx := context.Background()

	// Действие
	partner, key, err := svc.CreatePartner(ctx, "Roads Dept", " Roads@City.gov ", nil)

	// Проверки
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, service.APIKeyPrefix))
	assert.Len(t, key, len(service.APIKeyPrefix)+64)
	assert.Equal(t, "roads@city.gov", partner.Email)
	assert.Equal(t, service.HashAPIKey(key), partner.APIKeyHash)
	assert.NotContains(t, partner.APIKeyHash, key)

	authed, err := svc.Authenticate(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, partner.ID, authed.ID)

	_, err = svc.Authenticate(ctx, "sns_wrong")
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = svc.SetActive(ctx, "roads@city.gov", false)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, key)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestPartnerService_BootstrapIsIdempotent(t *testing.T) {
	repo := memory.NewRepository()
	svc := service.NewPartnerService(repo, newTestLogger())
	ctx := context.Background()

	require.NoError(t, svc.Bootstrap(ctx, []string{"static-a", "", "static-b"}))
	require.NoError(t, svc.Bootstrap(ctx, []string{"static-a", "", "static-b"}))

	partners, err := svc.ListPartners(ctx)
	require.NoError(t, err)
	assert.Len(t, partners, 2)

	_, err = svc.Authenticate(ctx, "static-b")
	assert.NoError(t, err)
}

func TestSubscriptionService_Register(t *testing.T) {
	repo := memory.NewRepository()
	svc := service.NewSubscriptionService(repo, newTestLogger())
	ctx := context.Background()
	partnerID := uuid.New()

	t.Run("defaults to all events", func(t *testing.T) {
		sub, err := svc.Register(ctx, partnerID, "https://partner.example/hook", nil, nil)
		require.NoError(t, err)
		assert.ElementsMatch(t, models.AllEventKinds, sub.Events)
		assert.True(t, sub.IsActive)
	})

	t.Run("deduplicates events", func(t *testing.T) {
		secret := "s3cret"
		sub, err := svc.Register(ctx, partnerID, "https://partner.example/hook", []models.EventKind{
			models.EventIncidentResolved, models.EventIncidentResolved,
		}, &secret)
		require.NoError(t, err)
		assert.Equal(t, []models.EventKind{models.EventIncidentResolved}, sub.Events)
		require.NotNil(t, sub.Secret)
	})

	t.Run("unknown event", func(t *testing.T) {
		_, err := svc.Register(ctx, partnerID, "https://partner.example/hook", []models.EventKind{"incident.exploded"}, nil)
		assert.ErrorIs(t, err, models.ErrInvalidEvent)
	})

	t.Run("bad url", func(t *testing.T) {
		_, err := svc.Register(ctx, partnerID, "ftp://partner.example", nil, nil)
		assert.Error(t, err)
	})

	subs, err := svc.List(ctx, partnerID)
	require.NoError(t, err)
	require.Len(t, subs, 2)

	assert.ErrorIs(t, svc.Delete(ctx, uuid.New(), subs[0].ID), models.ErrNotFound)
	require.NoError(t, svc.Delete(ctx, partnerID, subs[0].ID))
}
