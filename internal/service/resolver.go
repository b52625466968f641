package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shenikar/snap_and_send/internal/geo"
	"github.com/shenikar/snap_and_send/internal/models"
)

// DuplicateResolver ищет открытый инцидент, в который следует слить новый отчёт
type DuplicateResolver struct {
	radius float64
}

func NewDuplicateResolver(radiusMeters float64) *DuplicateResolver {
	return &DuplicateResolver{radius: radiusMeters}
}

// FindDuplicate возвращает первый подходящий инцидент в порядке убывания даты создания
// (побеждает самый свежий, а не ближайший) и расстояние до него.
// repo должен быть привязан к транзакции: кандидат блокируется и перепроверяется
// под блокировкой, поэтому решённый или удалённый тем временем инцидент пропускается.
func (r *DuplicateResolver) FindDuplicate(ctx context.Context, repo IncidentRepository, category string, at geo.Point, identity models.Identity) (*models.Incident, float64, error) {
	candidates, err := repo.FindOpenByCategory(ctx, category, at, r.radius+prefilterMarginMeters)
	if err != nil {
		return nil, 0, fmt.Errorf("could not load duplicate candidates: %w", err)
	}

	for _, candidate := range candidates {
		if !r.eligible(candidate, category, at, identity) {
			continue
		}

		locked, err := repo.GetByIDForUpdate(ctx, candidate.ID)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, 0, fmt.Errorf("could not lock duplicate candidate: %w", err)
		}
		if !r.eligible(locked, category, at, identity) {
			continue
		}

		existing, err := repo.FindVerification(ctx, locked.ID, identity)
		if err != nil {
			return nil, 0, fmt.Errorf("could not check prior verification: %w", err)
		}
		if existing != nil {
			continue
		}

		return locked, at.DistanceTo(locked.Location()), nil
	}

	return nil, 0, nil
}

// eligible проверяет категорию, статус, радиус и владельца.
// Автор не может слить отчёт в собственный инцидент.
func (r *DuplicateResolver) eligible(candidate *models.Incident, category string, at geo.Point, identity models.Identity) bool {
	return candidate.Category == category &&
		candidate.Status != models.StatusResolved &&
		at.DistanceTo(candidate.Location()) <= r.radius &&
		!candidate.Owner.Equal(identity)
}
