package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/snap_and_send/internal/models"
	"github.com/shenikar/snap_and_send/internal/webhook"
)

// Transition описывает, кто и почему меняет статус
type Transition struct {
	Actor       string
	PartnerID   *uuid.UUID
	Notes       *string
	EvidenceURL *string
}

// StatusLifecycle - конечный автомат статусов инцидента
//
//	pending -> verified            автоматически, по числу верификаций
//	any     -> investigating       действие внешней службы
//	any     -> resolved            действие внешней службы, конечное состояние
type StatusLifecycle struct {
	now func() time.Time
}

func NewStatusLifecycle(now func() time.Time) *StatusLifecycle {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &StatusLifecycle{now: now}
}

// CheckExternal проверяет переход, запрошенный внешней службой.
// noop=true означает, что инцидент уже находится в запрошенном статусе.
func (l *StatusLifecycle) CheckExternal(current, target models.Status) (noop bool, err error) {
	if target != models.StatusInvestigating && target != models.StatusResolved {
		return false, fmt.Errorf("%w: %q cannot be set externally, allowed: investigating, resolved", models.ErrInvalidStatus, target)
	}
	if current == target {
		return true, nil
	}
	if current.Terminal() {
		return false, fmt.Errorf("%w: incident is already resolved", models.ErrInvalidStatus)
	}
	return false, nil
}

// ShouldPromote сообщает, нужно ли повысить статус до verified после верификации
func (l *StatusLifecycle) ShouldPromote(inc *models.Incident, threshold int) bool {
	return inc.Status == models.StatusPending && inc.VerificationCount >= threshold
}

// Apply переводит инцидент в статус to внутри транзакции repo: проставляет
// временные метки, сохраняет статус, пишет журнал и возвращает события для
// отправки после фиксации транзакции.
func (l *StatusLifecycle) Apply(ctx context.Context, repo IncidentRepository, inc *models.Incident, to models.Status, tr Transition) ([]webhook.Event, error) {
	from := inc.Status
	now := l.now()

	inc.Status = to
	inc.UpdatedAt = now
	switch to {
	case models.StatusInvestigating:
		if inc.InvestigatingAt == nil {
			inc.InvestigatingAt = &now
		}
	case models.StatusResolved:
		if inc.ResolvedAt == nil {
			inc.ResolvedAt = &now
			if tr.Notes != nil {
				inc.ResolutionNotes = tr.Notes
			}
			if tr.EvidenceURL != nil {
				inc.ResolutionEvidence = tr.EvidenceURL
			}
		}
	}

	if err := repo.UpdateStatus(ctx, inc); err != nil {
		return nil, fmt.Errorf("could not update incident status: %w", err)
	}

	entry := &models.StatusLog{
		IncidentID:     inc.ID,
		PreviousStatus: from,
		NewStatus:      to,
		Notes:          tr.Notes,
		ChangedBy:      tr.Actor,
		PartnerID:      tr.PartnerID,
		CreatedAt:      now,
	}
	if err := repo.CreateStatusLog(ctx, entry); err != nil {
		return nil, fmt.Errorf("could not write status log: %w", err)
	}

	events, err := transitionEvents(inc, from, tr.Actor)
	if err != nil {
		return nil, fmt.Errorf("could not build transition events: %w", err)
	}
	return events, nil
}
