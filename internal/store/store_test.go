package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/voicehive-hotels/orchestrator/internal/domain"
	"github.com/voicehive-hotels/orchestrator/internal/secrets"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestSecretsRepository_GetSecretReturnsNilOnNoRows(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSecretsRepository(db)

	mock.ExpectQuery(`SELECT id, type, status, tenant, ciphertext, backups, created_at`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	got, err := repo.GetSecret(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetSecret: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil secret, got %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSecretsRepository_GetSecretScansRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSecretsRepository(db)

	now := time.Now().UTC().Truncate(time.Second)
	rows := sqlmock.NewRows([]string{
		"id", "type", "status", "tenant", "ciphertext", "backups", "created_at",
		"expires_at", "rotation_count", "usage_count", "last_accessed_at", "last_rotated_at",
	}).AddRow("sec-1", "jwt_secret", "active", "acme", []byte("cipher"), nil, now, nil, 2, 5, nil, nil)

	mock.ExpectQuery(`SELECT id, type, status, tenant, ciphertext, backups, created_at`).
		WithArgs("sec-1").
		WillReturnRows(rows)

	got, err := repo.GetSecret(context.Background(), "sec-1")
	if err != nil {
		t.Fatalf("GetSecret: %v", err)
	}
	if got == nil || got.Metadata.ID != "sec-1" || got.Metadata.RotationCount != 2 {
		t.Fatalf("unexpected secret: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSecretsRepository_PutSecretUpserts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSecretsRepository(db)

	mock.ExpectExec(`INSERT INTO secrets`).
		WithArgs("sec-1", domain.SecretType("jwt_secret"), domain.SecretStatus("active"), "acme",
			[]byte("cipher"), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), 0, 0, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.PutSecret(context.Background(), &secrets.StoredSecret{
		Metadata: domain.SecretMetadata{
			ID:        "sec-1",
			Type:      "jwt_secret",
			Status:    "active",
			Tenant:    "acme",
			CreatedAt: time.Now(),
		},
		Ciphertext: []byte("cipher"),
	})
	if err != nil {
		t.Fatalf("PutSecret: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSecretsRepository_RecordAndRecentAccess(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSecretsRepository(db)

	mock.ExpectExec(`INSERT INTO secret_access_events`).
		WithArgs("sec-1", "svc-a", "svc-a", true, "rotation", sqlmock.AnyArg(), "10.0.0.1", "eu-west-1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	event := domain.SecretAccessEvent{
		SecretID:   "sec-1",
		Accessor:   "svc-a",
		ServiceID:  "svc-a",
		Successful: true,
		Reason:     "rotation",
		OccurredAt: time.Now(),
		SourceIP:   "10.0.0.1",
		Region:     "eu-west-1",
	}
	if err := repo.RecordAccess(context.Background(), event); err != nil {
		t.Fatalf("RecordAccess: %v", err)
	}

	since := time.Now().Add(-time.Hour)
	rows := sqlmock.NewRows([]string{"secret_id", "accessor", "service_id", "successful", "reason", "occurred_at", "source_ip", "region"}).
		AddRow("sec-1", "svc-a", "svc-a", true, "rotation", event.OccurredAt, "10.0.0.1", "eu-west-1")
	mock.ExpectQuery(`SELECT secret_id, accessor, service_id, successful, reason, occurred_at, source_ip, region`).
		WithArgs("sec-1", since).
		WillReturnRows(rows)

	events, err := repo.RecentAccess(context.Background(), "sec-1", since)
	if err != nil {
		t.Fatalf("RecentAccess: %v", err)
	}
	if len(events) != 1 || events[0].Accessor != "svc-a" {
		t.Fatalf("unexpected events: %+v", events)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEnrollmentRepository_GetEnrollmentNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(`SELECT user_id, confirmed, recovery_code_hashes, created_at, confirmed_at`).
		WithArgs("user-1").
		WillReturnError(sql.ErrNoRows)

	_, found, err := repo.GetEnrollment(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetEnrollment: %v", err)
	}
	if found {
		t.Fatalf("expected not found")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEnrollmentRepository_SaveEnrollmentUpserts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(`INSERT INTO mfa_enrollments`).
		WithArgs("user-1", true, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveEnrollment(context.Background(), domain.MFAEnrollment{
		UserID:             "user-1",
		Confirmed:          true,
		RecoveryCodeHashes: []string{"hash-1", "hash-2"},
		CreatedAt:          time.Now(),
		ConfirmedAt:        time.Now(),
	})
	if err != nil {
		t.Fatalf("SaveEnrollment: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApprovalRepository_PendingFiltersByEnvironment(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewApprovalRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "environment", "requested_by", "changes", "required_approvers", "priority", "status",
		"approvals", "rejection", "emergency_override", "created_at", "expires_at",
	}).AddRow("req-1", "production", "alice", []byte(`[]`), []byte(`{platform_admin}`), 2, "pending",
		[]byte(`{}`), nil, false, now, now.Add(time.Hour))

	mock.ExpectQuery(`SELECT id, environment, requested_by, changes, required_approvers, priority, status`).
		WithArgs("production").
		WillReturnRows(rows)

	reqs, err := repo.Pending(context.Background(), "production")
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(reqs) != 1 || reqs[0].Environment != "production" {
		t.Fatalf("unexpected requests: %+v", reqs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApprovalRepository_SavePersistsEnvironment(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewApprovalRepository(db)

	req := &domain.ApprovalRequest{
		ID:                "req-2",
		Environment:       "staging",
		RequestedBy:       "bob",
		RequiredApprovers: []domain.ApproverRole{domain.RoleTeamLead},
		Priority:          domain.PriorityMedium,
		Status:            domain.ApprovalPending,
		Approvals:         map[domain.ApproverRole]domain.Approval{},
		CreatedAt:         time.Now(),
		ExpiresAt:         time.Now().Add(time.Hour),
	}

	mock.ExpectExec(`INSERT INTO approval_requests`).
		WithArgs(req.ID, req.Environment, req.RequestedBy, sqlmock.AnyArg(), sqlmock.AnyArg(),
			int(req.Priority), req.Status, sqlmock.AnyArg(), sqlmock.AnyArg(), req.EmergencyOverride,
			req.CreatedAt, req.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Save(context.Background(), req); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestHierarchyRepository_GetPropertyNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewHierarchyRepository(db)

	mock.ExpectQuery(`SELECT property_id, chain_id, parent_id, level, type, status`).
		WithArgs("prop-404").
		WillReturnError(sql.ErrNoRows)

	_, found, err := repo.GetProperty(context.Background(), "prop-404")
	if err != nil {
		t.Fatalf("GetProperty: %v", err)
	}
	if found {
		t.Fatalf("expected property not found")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestHierarchyRepository_ChainPoliciesDefaultsToEmptyMap(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewHierarchyRepository(db)

	mock.ExpectQuery(`SELECT policies FROM chain_policies`).
		WithArgs("chain-1").
		WillReturnError(sql.ErrNoRows)

	policies, err := repo.ChainPolicies(context.Background(), "chain-1")
	if err != nil {
		t.Fatalf("ChainPolicies: %v", err)
	}
	if policies == nil || len(policies) != 0 {
		t.Fatalf("expected empty map, got %+v", policies)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
