package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/voicehive-hotels/orchestrator/internal/domain"
	"github.com/voicehive-hotels/orchestrator/internal/secrets"
)

// SecretsRepository implements secrets.Repository against the secrets
// and secret_access_events tables.
type SecretsRepository struct {
	db *sqlx.DB
}

func NewSecretsRepository(db *sqlx.DB) *SecretsRepository {
	return &SecretsRepository{db: db}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func (r *SecretsRepository) GetSecret(ctx context.Context, id string) (*secrets.StoredSecret, error) {
	var row struct {
		ID             string         `db:"id"`
		Type           string         `db:"type"`
		Status         string         `db:"status"`
		Tenant         string         `db:"tenant"`
		Ciphertext     []byte         `db:"ciphertext"`
		Backups        pq.ByteaArray  `db:"backups"`
		CreatedAt      time.Time      `db:"created_at"`
		ExpiresAt      sql.NullTime   `db:"expires_at"`
		RotationCount  int            `db:"rotation_count"`
		UsageCount     int            `db:"usage_count"`
		LastAccessedAt sql.NullTime   `db:"last_accessed_at"`
		LastRotatedAt  sql.NullTime   `db:"last_rotated_at"`
	}

	err := r.db.GetContext(ctx, &row, `
		SELECT id, type, status, tenant, ciphertext, backups, created_at,
		       expires_at, rotation_count, usage_count, last_accessed_at, last_rotated_at
		FROM secrets WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	backups := make([][]byte, len(row.Backups))
	copy(backups, row.Backups)

	return &secrets.StoredSecret{
		Metadata: domain.SecretMetadata{
			ID:             row.ID,
			Type:           domain.SecretType(row.Type),
			Status:         domain.SecretStatus(row.Status),
			Tenant:         row.Tenant,
			CreatedAt:      row.CreatedAt,
			ExpiresAt:      row.ExpiresAt.Time,
			RotationCount:  row.RotationCount,
			UsageCount:     row.UsageCount,
			LastAccessedAt: row.LastAccessedAt.Time,
			LastRotatedAt:  row.LastRotatedAt.Time,
		},
		Ciphertext: row.Ciphertext,
		Backups:    backups,
	}, nil
}

func (r *SecretsRepository) PutSecret(ctx context.Context, s *secrets.StoredSecret) error {
	backups := make(pq.ByteaArray, len(s.Backups))
	copy(backups, s.Backups)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO secrets (id, type, status, tenant, ciphertext, backups, created_at,
		                      expires_at, rotation_count, usage_count, last_accessed_at, last_rotated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type,
			status = EXCLUDED.status,
			tenant = EXCLUDED.tenant,
			ciphertext = EXCLUDED.ciphertext,
			backups = EXCLUDED.backups,
			expires_at = EXCLUDED.expires_at,
			rotation_count = EXCLUDED.rotation_count,
			usage_count = EXCLUDED.usage_count,
			last_accessed_at = EXCLUDED.last_accessed_at,
			last_rotated_at = EXCLUDED.last_rotated_at
	`, s.Metadata.ID, s.Metadata.Type, s.Metadata.Status, s.Metadata.Tenant, s.Ciphertext, backups,
		s.Metadata.CreatedAt, nullTime(s.Metadata.ExpiresAt), s.Metadata.RotationCount, s.Metadata.UsageCount,
		nullTime(s.Metadata.LastAccessedAt), nullTime(s.Metadata.LastRotatedAt))
	return err
}

func (r *SecretsRepository) ListExpiringBefore(ctx context.Context, t time.Time) ([]*secrets.StoredSecret, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM secrets WHERE expires_at IS NOT NULL AND expires_at < $1`, t); err != nil {
		return nil, err
	}
	out := make([]*secrets.StoredSecret, 0, len(ids))
	for _, id := range ids {
		s, err := r.GetSecret(ctx, id)
		if err != nil {
			return nil, err
		}
		if s != nil {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *SecretsRepository) RecordAccess(ctx context.Context, event domain.SecretAccessEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO secret_access_events (secret_id, accessor, service_id, successful, reason, occurred_at, source_ip, region)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, event.SecretID, event.Accessor, event.ServiceID, event.Successful, event.Reason, event.OccurredAt, event.SourceIP, event.Region)
	return err
}

func (r *SecretsRepository) RecentAccess(ctx context.Context, secretID string, since time.Time) ([]domain.SecretAccessEvent, error) {
	var rows []domain.SecretAccessEvent
	err := r.db.SelectContext(ctx, &rows, `
		SELECT secret_id, accessor, service_id, successful, reason, occurred_at, source_ip, region
		FROM secret_access_events
		WHERE secret_id = $1 AND occurred_at >= $2
		ORDER BY occurred_at
	`, secretID, since)
	return rows, err
}
