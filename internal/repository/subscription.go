package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shenikar/snap_and_send/internal/models"
	"github.com/shenikar/snap_and_send/internal/service"
)

const subscriptionColumns = `s.id, s.partner_id, s.url, s.events, s.secret, s.is_active, s.created_at`

type SubscriptionRepository struct {
	db *pgxpool.Pool
}

func NewSubscriptionRepository(db *pgxpool.Pool) service.SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func collectSubscriptions(rows pgx.Rows) ([]*models.Subscription, error) {
	defer rows.Close()

	out := make([]*models.Subscription, 0)
	for rows.Next() {
		sub := &models.Subscription{}
		var events []string
		if err := rows.Scan(&sub.ID, &sub.PartnerID, &sub.URL, &events, &sub.Secret, &sub.IsActive, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subscription row: %w", err)
		}
		for _, e := range events {
			sub.Events = append(sub.Events, models.EventKind(e))
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration: %w", err)
	}
	return out, nil
}

func (r *SubscriptionRepository) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	query := `
		INSERT INTO webhook_subscriptions (id, partner_id, url, events, secret, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	events := make([]string, 0, len(sub.Events))
	for _, e := range sub.Events {
		events = append(events, string(e))
	}
	_, err := r.db.Exec(ctx, query, sub.ID, sub.PartnerID, sub.URL, events, sub.Secret, sub.IsActive, sub.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("partner %s: %w", sub.PartnerID, models.ErrNotFound)
		}
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) ListSubscriptions(ctx context.Context, partnerID uuid.UUID) ([]*models.Subscription, error) {
	rows, err := r.db.Query(ctx, `SELECT `+subscriptionColumns+` FROM webhook_subscriptions s WHERE s.partner_id = $1 ORDER BY s.created_at`, partnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return collectSubscriptions(rows)
}

func (r *SubscriptionRepository) DeleteSubscription(ctx context.Context, partnerID, id uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM webhook_subscriptions WHERE id = $1 AND partner_id = $2`, id, partnerID)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("subscription with id %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// FindActiveForEvent возвращает активные подписки активных партнёров на событие
func (r *SubscriptionRepository) FindActiveForEvent(ctx context.Context, kind models.EventKind) ([]*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM webhook_subscriptions s
		JOIN api_partners p ON p.id = s.partner_id
		WHERE s.is_active AND p.is_active AND $1 = ANY(s.events);
	`
	rows, err := r.db.Query(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to find subscriptions for event: %w", err)
	}
	return collectSubscriptions(rows)
}
