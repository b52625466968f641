package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shenikar/snap_and_send/internal/models"
)

const verificationColumns = `
	id,
	incident_id,
	identity_kind,
	identity_ref,
	ST_Y(location::geometry) AS latitude,
	ST_X(location::geometry) AS longitude,
	distance_m,
	created_at`

func scanVerification(row pgx.Row) (*models.Verification, error) {
	v := &models.Verification{}
	var kind, ref string
	if err := row.Scan(&v.ID, &v.IncidentID, &kind, &ref, &v.Latitude, &v.Longitude, &v.Distance, &v.CreatedAt); err != nil {
		return nil, err
	}
	identity, err := models.ParseIdentity(kind, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to parse verification identity: %w", err)
	}
	v.Identity = identity
	return v, nil
}

// CreateVerification сохраняет верификацию. Уникальный индекс (incident_id, identity_kind, identity_ref)
// превращается в models.ErrAlreadyVerified.
func (r *IncidentRepository) CreateVerification(ctx context.Context, v *models.Verification) error {
	query := `
		INSERT INTO verifications (id, incident_id, identity_kind, identity_ref, location, distance_m, created_at)
		VALUES ($1, $2, $3, $4, ST_SetSRID(ST_MakePoint($5, $6), 4326)::geography, $7, $8);
	`
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx, query,
		v.ID,
		v.IncidentID,
		string(v.Identity.Kind()),
		v.Identity.Ref(),
		v.Longitude,
		v.Latitude,
		v.Distance,
		v.CreatedAt,
	)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return models.ErrAlreadyVerified
	case isForeignKeyViolation(err):
		return fmt.Errorf("incident with id %s: %w", v.IncidentID, models.ErrNotFound)
	}
	return fmt.Errorf("failed to create verification: %w", err)
}

func (r *IncidentRepository) FindVerification(ctx context.Context, incidentID uuid.UUID, identity models.Identity) (*models.Verification, error) {
	query := `SELECT ` + verificationColumns + `
		FROM verifications
		WHERE incident_id = $1 AND identity_kind = $2 AND identity_ref = $3;
	`
	v, err := scanVerification(r.db.QueryRow(ctx, query, incidentID, string(identity.Kind()), identity.Ref()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find verification: %w", err)
	}
	return v, nil
}

func (r *IncidentRepository) ListVerifications(ctx context.Context, incidentID uuid.UUID) ([]*models.Verification, error) {
	query := `SELECT ` + verificationColumns + `
		FROM verifications
		WHERE incident_id = $1
		ORDER BY created_at;
	`
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list verifications: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Verification, 0)
	for rows.Next() {
		v, err := scanVerification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan verification row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration: %w", err)
	}
	return out, nil
}

func (r *IncidentRepository) DeleteVerification(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM verifications WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("failed to delete verification: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("verification with id %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (r *IncidentRepository) CreateStatusLog(ctx context.Context, entry *models.StatusLog) error {
	query := `
		INSERT INTO status_logs (id, incident_id, previous_status, new_status, notes, changed_by, partner_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.IncidentID,
		entry.PreviousStatus,
		entry.NewStatus,
		entry.Notes,
		entry.ChangedBy,
		entry.PartnerID,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create status log: %w", err)
	}
	return nil
}

// ListStatusLogs возвращает журнал, новые записи первыми
func (r *IncidentRepository) ListStatusLogs(ctx context.Context, incidentID uuid.UUID) ([]*models.StatusLog, error) {
	query := `
		SELECT id, incident_id, previous_status, new_status, notes, changed_by, partner_id, created_at
		FROM status_logs
		WHERE incident_id = $1
		ORDER BY created_at DESC, seq DESC;
	`
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list status logs: %w", err)
	}
	defer rows.Close()

	out := make([]*models.StatusLog, 0)
	for rows.Next() {
		entry := &models.StatusLog{}
		if err := rows.Scan(
			&entry.ID,
			&entry.IncidentID,
			&entry.PreviousStatus,
			&entry.NewStatus,
			&entry.Notes,
			&entry.ChangedBy,
			&entry.PartnerID,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan status log row: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration: %w", err)
	}
	return out, nil
}
