package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/snap_and_send/internal/models"
)

func (r *Repository) CreatePartner(_ context.Context, partner *models.Partner) error {
	defer r.lock()()

	for _, p := range r.store.st.partners {
		if p.Email == partner.Email {
			return fmt.Errorf("partner with email %s already exists", partner.Email)
		}
	}
	if partner.ID == uuid.Nil {
		partner.ID = uuid.New()
	}
	r.store.st.partners[partner.ID] = *partner
	return nil
}

func (r *Repository) GetPartnerByKeyHash(_ context.Context, keyHash string) (*models.Partner, error) {
	defer r.lock()()

	for _, p := range r.store.st.partners {
		if p.APIKeyHash == keyHash {
			found := p
			return &found, nil
		}
	}
	return nil, fmt.Errorf("partner: %w", models.ErrNotFound)
}

func (r *Repository) ListPartners(_ context.Context) ([]*models.Partner, error) {
	defer r.lock()()

	out := []*models.Partner{}
	for _, p := range r.store.st.partners {
		found := p
		out = append(out, &found)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *Repository) SetPartnerActive(_ context.Context, email string, active bool) (*models.Partner, error) {
	defer r.lock()()

	for id, p := range r.store.st.partners {
		if p.Email == email {
			p.IsActive = active
			r.store.st.partners[id] = p
			return &p, nil
		}
	}
	return nil, fmt.Errorf("partner %s: %w", email, models.ErrNotFound)
}

func (r *Repository) TouchPartner(_ context.Context, id uuid.UUID, at time.Time) error {
	defer r.lock()()

	p, ok := r.store.st.partners[id]
	if !ok {
		return fmt.Errorf("partner %s: %w", id, models.ErrNotFound)
	}
	p.LastUsedAt = &at
	r.store.st.partners[id] = p
	return nil
}

func (r *Repository) CreateSubscription(_ context.Context, sub *models.Subscription) error {
	defer r.lock()()

	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	stored := *sub
	stored.Events = append([]models.EventKind(nil), sub.Events...)
	r.store.st.subscriptions[sub.ID] = stored
	return nil
}

func (r *Repository) ListSubscriptions(_ context.Context, partnerID uuid.UUID) ([]*models.Subscription, error) {
	defer r.lock()()

	out := []*models.Subscription{}
	for _, s := range r.store.st.subscriptions {
		if s.PartnerID == partnerID {
			found := s
			out = append(out, &found)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *Repository) DeleteSubscription(_ context.Context, partnerID, id uuid.UUID) error {
	defer r.lock()()

	s, ok := r.store.st.subscriptions[id]
	if !ok || s.PartnerID != partnerID {
		return fmt.Errorf("subscription %s: %w", id, models.ErrNotFound)
	}
	delete(r.store.st.subscriptions, id)
	return nil
}

// FindActiveForEvent пропускает подписки деактивированных партнёров
func (r *Repository) FindActiveForEvent(_ context.Context, kind models.EventKind) ([]*models.Subscription, error) {
	defer r.lock()()

	out := []*models.Subscription{}
	for _, s := range r.store.st.subscriptions {
		if !s.IsActive || !s.Wants(kind) {
			continue
		}
		if p, ok := r.store.st.partners[s.PartnerID]; ok && !p.IsActive {
			continue
		}
		found := s
		out = append(out, &found)
	}
	return out, nil
}
