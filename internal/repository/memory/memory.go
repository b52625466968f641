// Package memory - хранилище в памяти процесса. Используется драйвером STORAGE_DRIVER=memory
// и в тестах сервисного слоя. Транзакции сериализуются одним мьютексом и
// откатываются восстановлением снимка.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/snap_and_send/internal/geo"
	"github.com/shenikar/snap_and_send/internal/models"
	"github.com/shenikar/snap_and_send/internal/service"
)

type state struct {
	incidents     map[uuid.UUID]models.Incident
	verifications map[uuid.UUID]models.Verification
	statusLogs    []models.StatusLog
	partners      map[uuid.UUID]models.Partner
	subscriptions map[uuid.UUID]models.Subscription
}

func newState() *state {
	return &state{
		incidents:     make(map[uuid.UUID]models.Incident),
		verifications: make(map[uuid.UUID]models.Verification),
		partners:      make(map[uuid.UUID]models.Partner),
		subscriptions: make(map[uuid.UUID]models.Subscription),
	}
}

func (s *state) clone() *state {
	c := &state{
		incidents:     make(map[uuid.UUID]models.Incident, len(s.incidents)),
		verifications: make(map[uuid.UUID]models.Verification, len(s.verifications)),
		statusLogs:    append([]models.StatusLog(nil), s.statusLogs...),
		partners:      make(map[uuid.UUID]models.Partner, len(s.partners)),
		subscriptions: make(map[uuid.UUID]models.Subscription, len(s.subscriptions)),
	}
	for k, v := range s.incidents {
		v.ImageURLs = append([]string(nil), v.ImageURLs...)
		c.incidents[k] = v
	}
	for k, v := range s.verifications {
		c.verifications[k] = v
	}
	for k, v := range s.partners {
		c.partners[k] = v
	}
	for k, v := range s.subscriptions {
		v.Events = append([]models.EventKind(nil), v.Events...)
		c.subscriptions[k] = v
	}
	return c
}

type store struct {
	mu sync.Mutex
	st *state
}

// Repository реализует service.IncidentRepository, service.SubscriptionRepository
// и service.PartnerRepository
type Repository struct {
	store *store
	inTx  bool
}

var (
	_ service.IncidentRepository     = (*Repository)(nil)
	_ service.SubscriptionRepository = (*Repository)(nil)
	_ service.PartnerRepository      = (*Repository)(nil)
)

func NewRepository() *Repository {
	return &Repository{store: &store{st: newState()}}
}

// lock захватывает мьютекс, если вызов не происходит внутри WithTx
func (r *Repository) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, repo service.IncidentRepository) error) error {
	if r.inTx {
		return fn(ctx, r)
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := r.store.st.clone()
	if err := fn(ctx, &Repository{store: r.store, inTx: true}); err != nil {
		r.store.st = snapshot
		return err
	}
	return nil
}

func copyIncident(inc models.Incident) *models.Incident {
	inc.ImageURLs = append([]string(nil), inc.ImageURLs...)
	return &inc
}

func (r *Repository) Create(_ context.Context, incident *models.Incident) error {
	defer r.lock()()

	if incident.ID == uuid.Nil {
		incident.ID = uuid.New()
	}
	if _, exists := r.store.st.incidents[incident.ID]; exists {
		return fmt.Errorf("incident %s already exists", incident.ID)
	}
	r.store.st.incidents[incident.ID] = *copyIncident(*incident)
	return nil
}

func (r *Repository) GetByID(_ context.Context, id uuid.UUID) (*models.Incident, error) {
	defer r.lock()()

	inc, ok := r.store.st.incidents[id]
	if !ok {
		return nil, fmt.Errorf("incident %s: %w", id, models.ErrNotFound)
	}
	return copyIncident(inc), nil
}

func (r *Repository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	return r.GetByID(ctx, id)
}

func (r *Repository) UpdateStatus(_ context.Context, incident *models.Incident) error {
	defer r.lock()()

	stored, ok := r.store.st.incidents[incident.ID]
	if !ok {
		return fmt.Errorf("incident %s: %w", incident.ID, models.ErrNotFound)
	}
	stored.Status = incident.Status
	stored.UpdatedAt = incident.UpdatedAt
	stored.InvestigatingAt = incident.InvestigatingAt
	stored.ResolvedAt = incident.ResolvedAt
	stored.ResolutionNotes = incident.ResolutionNotes
	stored.ResolutionEvidence = incident.ResolutionEvidence
	r.store.st.incidents[incident.ID] = stored
	return nil
}

func (r *Repository) AdjustVerificationCount(_ context.Context, id uuid.UUID, delta int) (int, error) {
	defer r.lock()()

	stored, ok := r.store.st.incidents[id]
	if !ok {
		return 0, fmt.Errorf("incident %s: %w", id, models.ErrNotFound)
	}
	stored.VerificationCount += delta
	if stored.VerificationCount < 0 {
		stored.VerificationCount = 0
	}
	r.store.st.incidents[id] = stored
	return stored.VerificationCount, nil
}

func (r *Repository) Delete(_ context.Context, id uuid.UUID) error {
	defer r.lock()()

	if _, ok := r.store.st.incidents[id]; !ok {
		return fmt.Errorf("incident %s: %w", id, models.ErrNotFound)
	}
	delete(r.store.st.incidents, id)
	for vid, v := range r.store.st.verifications {
		if v.IncidentID == id {
			delete(r.store.st.verifications, vid)
		}
	}
	logs := r.store.st.statusLogs[:0]
	for _, entry := range r.store.st.statusLogs {
		if entry.IncidentID != id {
			logs = append(logs, entry)
		}
	}
	r.store.st.statusLogs = logs
	return nil
}

// sortedIncidents возвращает инциденты, подходящие под match, новые первыми
func (r *Repository) sortedIncidents(match func(models.Incident) bool) []*models.Incident {
	var out []*models.Incident
	for _, inc := range r.store.st.incidents {
		if match(inc) {
			out = append(out, copyIncident(inc))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *Repository) ListIncidents(_ context.Context, filter models.IncidentFilter) ([]*models.Incident, int, error) {
	defer r.lock()()

	matched := r.sortedIncidents(func(inc models.Incident) bool {
		if filter.Category != "" && inc.Category != filter.Category {
			return false
		}
		if filter.Status != "" && inc.Status != filter.Status {
			return false
		}
		if filter.Since != nil && inc.CreatedAt.Before(*filter.Since) {
			return false
		}
		if filter.Near != nil && filter.RadiusM > 0 && filter.Near.DistanceTo(inc.Location()) > filter.RadiusM {
			return false
		}
		return true
	})

	total := len(matched)
	if filter.Offset >= total {
		return []*models.Incident{}, total, nil
	}
	end := total
	if filter.Limit > 0 && filter.Offset+filter.Limit < end {
		end = filter.Offset + filter.Limit
	}
	return matched[filter.Offset:end], total, nil
}

func (r *Repository) FindOpenByCategory(_ context.Context, category string, near geo.Point, radiusM float64) ([]*models.Incident, error) {
	defer r.lock()()

	return r.sortedIncidents(func(inc models.Incident) bool {
		return inc.Category == category &&
			inc.Status != models.StatusResolved &&
			near.DistanceTo(inc.Location()) <= radiusM
	}), nil
}

func (r *Repository) CountIncidents(_ context.Context, since *time.Time) (int, error) {
	defer r.lock()()

	count := 0
	for _, inc := range r.store.st.incidents {
		if since == nil || !inc.CreatedAt.Before(*since) {
			count++
		}
	}
	return count, nil
}

func (r *Repository) GroupCount(_ context.Context, field models.GroupField, since *time.Time) (map[string]int, error) {
	defer r.lock()()

	out := make(map[string]int)
	for _, inc := range r.store.st.incidents {
		if since != nil && inc.CreatedAt.Before(*since) {
			continue
		}
		switch field {
		case models.GroupByStatus:
			out[string(inc.Status)]++
		case models.GroupByCategory:
			out[inc.Category]++
		default:
			return nil, fmt.Errorf("unsupported group field %q", field)
		}
	}
	return out, nil
}

func (r *Repository) CreateVerification(_ context.Context, verification *models.Verification) error {
	defer r.lock()()

	if _, ok := r.store.st.incidents[verification.IncidentID]; !ok {
		return fmt.Errorf("incident %s: %w", verification.IncidentID, models.ErrNotFound)
	}
	for _, v := range r.store.st.verifications {
		if v.IncidentID == verification.IncidentID && v.Identity.Equal(verification.Identity) {
			return models.ErrAlreadyVerified
		}
	}
	if verification.ID == uuid.Nil {
		verification.ID = uuid.New()
	}
	r.store.st.verifications[verification.ID] = *verification
	return nil
}

func (r *Repository) FindVerification(_ context.Context, incidentID uuid.UUID, identity models.Identity) (*models.Verification, error) {
	defer r.lock()()

	for _, v := range r.store.st.verifications {
		if v.IncidentID == incidentID && v.Identity.Equal(identity) {
			found := v
			return &found, nil
		}
	}
	return nil, nil
}

func (r *Repository) ListVerifications(_ context.Context, incidentID uuid.UUID) ([]*models.Verification, error) {
	defer r.lock()()

	out := []*models.Verification{}
	for _, v := range r.store.st.verifications {
		if v.IncidentID == incidentID {
			found := v
			out = append(out, &found)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *Repository) DeleteVerification(_ context.Context, id uuid.UUID) error {
	defer r.lock()()

	if _, ok := r.store.st.verifications[id]; !ok {
		return fmt.Errorf("verification %s: %w", id, models.ErrNotFound)
	}
	delete(r.store.st.verifications, id)
	return nil
}

func (r *Repository) CreateStatusLog(_ context.Context, entry *models.StatusLog) error {
	defer r.lock()()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	r.store.st.statusLogs = append(r.store.st.statusLogs, *entry)
	return nil
}

// ListStatusLogs возвращает записи, новые первыми
func (r *Repository) ListStatusLogs(_ context.Context, incidentID uuid.UUID) ([]*models.StatusLog, error) {
	defer r.lock()()

	out := []*models.StatusLog{}
	for i := len(r.store.st.statusLogs) - 1; i >= 0; i-- {
		if entry := r.store.st.statusLogs[i]; entry.IncidentID == incidentID {
			out = append(out, &entry)
		}
	}
	return out, nil
}
