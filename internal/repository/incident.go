package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shenikar/snap_and_send/internal/geo"
	"github.com/shenikar/snap_and_send/internal/models"
	"github.com/shenikar/snap_and_send/internal/service"
)

const incidentColumns = `
	id,
	category,
	title,
	description,
	ST_Y(location::geometry) AS latitude,
	ST_X(location::geometry) AS longitude,
	address,
	image_urls,
	status,
	verification_count,
	owner_kind,
	owner_ref,
	created_at,
	updated_at,
	investigating_at,
	resolved_at,
	resolution_notes,
	resolution_evidence`

type IncidentRepository struct {
	pool *pgxpool.Pool
	db   querier
	inTx bool
}

func NewIncidentRepository(pool *pgxpool.Pool) service.IncidentRepository {
	return &IncidentRepository{pool: pool, db: pool}
}

// WithTx выполняет fn в транзакции. Вложенный вызов переиспользует текущую транзакцию.
func (r *IncidentRepository) WithTx(ctx context.Context, fn func(ctx context.Context, repo service.IncidentRepository) error) error {
	if r.inTx {
		return fn(ctx, r)
	}
	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(ctx, &IncidentRepository{pool: r.pool, db: tx, inTx: true})
	})
}

func scanIncident(row pgx.Row) (*models.Incident, error) {
	incident := &models.Incident{}
	var ownerKind, ownerRef *string
	err := row.Scan(
		&incident.ID,
		&incident.Category,
		&incident.Title,
		&incident.Description,
		&incident.Latitude,
		&incident.Longitude,
		&incident.Address,
		&incident.ImageURLs,
		&incident.Status,
		&incident.VerificationCount,
		&ownerKind,
		&ownerRef,
		&incident.CreatedAt,
		&incident.UpdatedAt,
		&incident.InvestigatingAt,
		&incident.ResolvedAt,
		&incident.ResolutionNotes,
		&incident.ResolutionEvidence,
	)
	if err != nil {
		return nil, err
	}
	owner, err := models.ParseIdentity(deref(ownerKind), deref(ownerRef))
	if err != nil {
		return nil, fmt.Errorf("failed to parse incident owner: %w", err)
	}
	incident.Owner = owner
	return incident, nil
}

func collectIncidents(rows pgx.Rows) ([]*models.Incident, error) {
	defer rows.Close()

	incidents := make([]*models.Incident, 0)
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident row: %w", err)
		}
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration: %w", err)
	}
	return incidents, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Create создает новую запись об инциденте в бд
func (r *IncidentRepository) Create(ctx context.Context, incident *models.Incident) error {
	query := `
		INSERT INTO incidents (
			id, category, title, description, location, address, image_urls,
			status, verification_count, owner_kind, owner_ref, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, ST_SetSRID(ST_MakePoint($5, $6), 4326)::geography, $7, $8, $9, $10, $11, $12, $13, $14);
	`
	if incident.ID == uuid.Nil {
		incident.ID = uuid.New()
	}
	imageURLs := incident.ImageURLs
	if imageURLs == nil {
		imageURLs = []string{}
	}
	ownerKind, ownerRef := incident.Owner.NullableColumns()

	_, err := r.db.Exec(ctx, query,
		incident.ID,
		incident.Category,
		incident.Title,
		incident.Description,
		incident.Longitude,
		incident.Latitude,
		incident.Address,
		imageURLs,
		incident.Status,
		incident.VerificationCount,
		ownerKind,
		ownerRef,
		incident.CreatedAt,
		incident.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create incident: %w", err)
	}
	return nil
}

// GetByID возвращает инцидент по его UUID
func (r *IncidentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	return r.getByID(ctx, id, "")
}

// GetByIDForUpdate блокирует строку до конца транзакции
func (r *IncidentRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	return r.getByID(ctx, id, "FOR UPDATE")
}

func (r *IncidentRepository) getByID(ctx context.Context, id uuid.UUID, lock string) (*models.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1 ` + lock
	incident, err := scanIncident(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("incident with id %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get incident by id: %w", err)
	}
	return incident, nil
}

// UpdateStatus сохраняет статус и связанные с ним поля
func (r *IncidentRepository) UpdateStatus(ctx context.Context, incident *models.Incident) error {
	query := `
		UPDATE incidents SET
			status = $1,
			investigating_at = $2,
			resolved_at = $3,
			resolution_notes = $4,
			resolution_evidence = $5,
			updated_at = $6
		WHERE id = $7;
	`
	cmdTag, err := r.db.Exec(ctx, query,
		incident.Status,
		incident.InvestigatingAt,
		incident.ResolvedAt,
		incident.ResolutionNotes,
		incident.ResolutionEvidence,
		incident.UpdatedAt,
		incident.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update incident status: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("incident with id %s: %w", incident.ID, models.ErrNotFound)
	}
	return nil
}

func (r *IncidentRepository) AdjustVerificationCount(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	query := `
		UPDATE incidents SET
			verification_count = GREATEST(verification_count + $1, 0),
			updated_at = NOW()
		WHERE id = $2
		RETURNING verification_count;
	`
	var count int
	if err := r.db.QueryRow(ctx, query, delta, id).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("incident with id %s: %w", id, models.ErrNotFound)
		}
		return 0, fmt.Errorf("failed to adjust verification count: %w", err)
	}
	return count, nil
}

// Delete удаляет инцидент вместе с верификациями и журналом (ON DELETE CASCADE)
func (r *IncidentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM incidents WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("failed to delete incident: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("incident with id %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// filterClause строит WHERE по фильтру, плейсхолдеры нумеруются с 1
func filterClause(filter models.IncidentFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.Category != "" {
		args = append(args, filter.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.Near != nil && filter.RadiusM > 0 {
		args = append(args, filter.Near.Lon, filter.Near.Lat, filter.RadiusM)
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"ST_DWithin(location, ST_SetSRID(ST_MakePoint($%d, $%d), 4326)::geography, $%d)", n-2, n-1, n))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListIncidents возвращает страницу инцидентов, новые первыми, и общее количество
func (r *IncidentRepository) ListIncidents(ctx context.Context, filter models.IncidentFilter) ([]*models.Incident, int, error) {
	where, args := filterClause(filter)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM incidents`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count incidents: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM incidents%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		incidentColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list incidents: %w", err)
	}
	incidents, err := collectIncidents(rows)
	if err != nil {
		return nil, 0, err
	}
	return incidents, total, nil
}

// FindOpenByCategory находит нерешённые инциденты категории в радиусе, новые первыми
func (r *IncidentRepository) FindOpenByCategory(ctx context.Context, category string, near geo.Point, radiusM float64) ([]*models.Incident, error) {
	query := `SELECT ` + incidentColumns + `
		FROM incidents
		WHERE
			category = $1
			AND status <> 'resolved'
			AND ST_DWithin(
				location,
				ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography,
				$4
			)
		ORDER BY created_at DESC, id DESC;
	`
	rows, err := r.db.Query(ctx, query, category, near.Lon, near.Lat, radiusM)
	if err != nil {
		return nil, fmt.Errorf("failed to find open incidents by location: %w", err)
	}
	return collectIncidents(rows)
}

func (r *IncidentRepository) CountIncidents(ctx context.Context, since *time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM incidents WHERE $1::timestamptz IS NULL OR created_at >= $1`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count incidents: %w", err)
	}
	return count, nil
}

func (r *IncidentRepository) GroupCount(ctx context.Context, field models.GroupField, since *time.Time) (map[string]int, error) {
	var column string
	switch field {
	case models.GroupByStatus:
		column = "status"
	case models.GroupByCategory:
		column = "category"
	default:
		return nil, fmt.Errorf("unsupported group field %q", field)
	}

	query := fmt.Sprintf(`
		SELECT %s, COUNT(*)
		FROM incidents
		WHERE $1::timestamptz IS NULL OR created_at >= $1
		GROUP BY %s;
	`, column, column)
	rows, err := r.db.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to group incidents by %s: %w", column, err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			key   string
			count int
		)
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("failed to scan group row: %w", err)
		}
		out[key] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error group iteration: %w", err)
	}
	return out, nil
}
