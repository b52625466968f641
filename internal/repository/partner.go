package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shenikar/snap_and_send/internal/models"
	"github.com/shenikar/snap_and_send/internal/service"
)

const partnerColumns = `id, name, email, description, api_key_hash, is_active, last_used_at, created_at`

type PartnerRepository struct {
	db *pgxpool.Pool
}

func NewPartnerRepository(db *pgxpool.Pool) service.PartnerRepository {
	return &PartnerRepository{db: db}
}

func scanPartner(row pgx.Row) (*models.Partner, error) {
	p := &models.Partner{}
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Description, &p.APIKeyHash, &p.IsActive, &p.LastUsedAt, &p.CreatedAt)
	return p, err
}

func (r *PartnerRepository) CreatePartner(ctx context.Context, p *models.Partner) error {
	query := `
		INSERT INTO api_partners (id, name, email, description, api_key_hash, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx, query, p.ID, p.Name, p.Email, p.Description, p.APIKeyHash, p.IsActive, p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("partner with email %s already exists", p.Email)
		}
		return fmt.Errorf("failed to create partner: %w", err)
	}
	return nil
}

func (r *PartnerRepository) GetPartnerByKeyHash(ctx context.Context, keyHash string) (*models.Partner, error) {
	p, err := scanPartner(r.db.QueryRow(ctx, `SELECT `+partnerColumns+` FROM api_partners WHERE api_key_hash = $1`, keyHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("partner: %w", models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get partner: %w", err)
	}
	return p, nil
}

func (r *PartnerRepository) ListPartners(ctx context.Context) ([]*models.Partner, error) {
	rows, err := r.db.Query(ctx, `SELECT `+partnerColumns+` FROM api_partners ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list partners: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Partner, 0)
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan partner row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration: %w", err)
	}
	return out, nil
}

func (r *PartnerRepository) SetPartnerActive(ctx context.Context, email string, active bool) (*models.Partner, error) {
	query := `UPDATE api_partners SET is_active = $1 WHERE email = $2 RETURNING ` + partnerColumns
	p, err := scanPartner(r.db.QueryRow(ctx, query, active, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("partner %s: %w", email, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update partner: %w", err)
	}
	return p, nil
}

func (r *PartnerRepository) TouchPartner(ctx context.Context, id uuid.UUID, at time.Time) error {
	if _, err := r.db.Exec(ctx, `UPDATE api_partners SET last_used_at = $1 WHERE id = $2`, at, id); err != nil {
		return fmt.Errorf("failed to touch partner: %w", err)
	}
	return nil
}
