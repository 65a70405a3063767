package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/voicehive-hotels/orchestrator/internal/domain"
)

// EnrollmentRepository implements mfa.EnrollmentStore against the
// mfa_enrollments table. The TOTP secret itself is never persisted here;
// it lives behind internal/secrets.Store, keyed by
// mfa.secretIDFor(userID); this table only tracks confirmation state and
// recovery-code hashes.
type EnrollmentRepository struct {
	db *sqlx.DB
}

func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

type enrollmentRow struct {
	UserID             string         `db:"user_id"`
	Confirmed          bool           `db:"confirmed"`
	RecoveryCodeHashes pq.StringArray `db:"recovery_code_hashes"`
	CreatedAt          time.Time      `db:"created_at"`
	ConfirmedAt        sql.NullTime   `db:"confirmed_at"`
}

func (r *EnrollmentRepository) GetEnrollment(ctx context.Context, userID string) (domain.MFAEnrollment, bool, error) {
	var row enrollmentRow
	err := r.db.GetContext(ctx, &row, `
		SELECT user_id, confirmed, recovery_code_hashes, created_at, confirmed_at
		FROM mfa_enrollments WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.MFAEnrollment{}, false, nil
	}
	if err != nil {
		return domain.MFAEnrollment{}, false, err
	}
	return domain.MFAEnrollment{
		UserID:             row.UserID,
		Confirmed:          row.Confirmed,
		RecoveryCodeHashes: []string(row.RecoveryCodeHashes),
		CreatedAt:          row.CreatedAt,
		ConfirmedAt:        row.ConfirmedAt.Time,
	}, true, nil
}

func (r *EnrollmentRepository) SaveEnrollment(ctx context.Context, e domain.MFAEnrollment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mfa_enrollments (user_id, confirmed, recovery_code_hashes, created_at, confirmed_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (user_id) DO UPDATE SET
			confirmed = EXCLUDED.confirmed,
			recovery_code_hashes = EXCLUDED.recovery_code_hashes,
			confirmed_at = EXCLUDED.confirmed_at
	`, e.UserID, e.Confirmed, pq.Array(e.RecoveryCodeHashes), e.CreatedAt, nullTime(e.ConfirmedAt))
	return err
}
