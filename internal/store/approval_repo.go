package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/voicehive-hotels/orchestrator/internal/domain"
)

// ApprovalRepository implements approval.Store against the
// approval_requests table.
type ApprovalRepository struct {
	db *sqlx.DB
}

func NewApprovalRepository(db *sqlx.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

type approvalRow struct {
	ID                string         `db:"id"`
	Environment       string         `db:"environment"`
	RequestedBy       string         `db:"requested_by"`
	Changes           []byte         `db:"changes"`
	RequiredApprovers pq.StringArray `db:"required_approvers"`
	Priority          int            `db:"priority"`
	Status            string         `db:"status"`
	Approvals         []byte         `db:"approvals"`
	Rejection         []byte         `db:"rejection"`
	EmergencyOverride bool           `db:"emergency_override"`
	CreatedAt         time.Time      `db:"created_at"`
	ExpiresAt         time.Time      `db:"expires_at"`
}

func (row approvalRow) toDomain() (*domain.ApprovalRequest, error) {
	var changes []domain.ConfigurationChange
	if len(row.Changes) > 0 {
		if err := json.Unmarshal(row.Changes, &changes); err != nil {
			return nil, err
		}
	}
	approvals := make(map[domain.ApproverRole]domain.Approval)
	if len(row.Approvals) > 0 {
		if err := json.Unmarshal(row.Approvals, &approvals); err != nil {
			return nil, err
		}
	}
	var rejection *domain.Rejection
	if len(row.Rejection) > 0 {
		rejection = &domain.Rejection{}
		if err := json.Unmarshal(row.Rejection, rejection); err != nil {
			return nil, err
		}
	}

	required := make([]domain.ApproverRole, len(row.RequiredApprovers))
	for i, r := range row.RequiredApprovers {
		required[i] = domain.ApproverRole(r)
	}

	return &domain.ApprovalRequest{
		ID:                row.ID,
		Environment:       row.Environment,
		Changes:           changes,
		RequiredApprovers: required,
		Priority:          domain.ApprovalPriority(row.Priority),
		Status:            domain.ApprovalStatus(row.Status),
		RequestedBy:       row.RequestedBy,
		Approvals:         approvals,
		Rejection:         rejection,
		CreatedAt:         row.CreatedAt,
		ExpiresAt:         row.ExpiresAt,
		EmergencyOverride: row.EmergencyOverride,
	}, nil
}

func (r *ApprovalRepository) Get(ctx context.Context, requestID string) (*domain.ApprovalRequest, error) {
	var row approvalRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, environment, requested_by, changes, required_approvers, priority, status,
		       approvals, rejection, emergency_override, created_at, expires_at
		FROM approval_requests WHERE id = $1`, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

func (r *ApprovalRepository) Save(ctx context.Context, req *domain.ApprovalRequest) error {
	changes, err := json.Marshal(req.Changes)
	if err != nil {
		return err
	}
	approvals, err := json.Marshal(req.Approvals)
	if err != nil {
		return err
	}
	var rejection []byte
	if req.Rejection != nil {
		rejection, err = json.Marshal(req.Rejection)
		if err != nil {
			return err
		}
	}
	required := make(pq.StringArray, len(req.RequiredApprovers))
	for i, role := range req.RequiredApprovers {
		required[i] = string(role)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO approval_requests (id, environment, requested_by, changes, required_approvers,
		                                priority, status, approvals, rejection, emergency_override,
		                                created_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			approvals = EXCLUDED.approvals,
			rejection = EXCLUDED.rejection,
			emergency_override = EXCLUDED.emergency_override
	`, req.ID, req.Environment, req.RequestedBy, changes, required, int(req.Priority), req.Status,
		approvals, rejection, req.EmergencyOverride, req.CreatedAt, req.ExpiresAt)
	return err
}

func (r *ApprovalRepository) Pending(ctx context.Context, environment string) ([]*domain.ApprovalRequest, error) {
	var rows []approvalRow
	query := `
		SELECT id, environment, requested_by, changes, required_approvers, priority, status,
		       approvals, rejection, emergency_override, created_at, expires_at
		FROM approval_requests WHERE status = 'pending'`
	args := []any{}
	if environment != "" {
		query += ` AND environment = $1`
		args = append(args, environment)
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]*domain.ApprovalRequest, 0, len(rows))
	for _, row := range rows {
		req, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}
