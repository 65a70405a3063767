package approval

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/voicehive-hotels/orchestrator/internal/domain"
	"github.com/voicehive-hotels/orchestrator/pkg/voicehiveerr"
)

// Store persists approval requests; internal/store provides the
// sqlx-backed implementation against the approval_requests table.
// Requests live in the relational store so every replica observes the
// same approval state.
type Store interface {
	Get(ctx context.Context, requestID string) (*domain.ApprovalRequest, error)
	Save(ctx context.Context, req *domain.ApprovalRequest) error
	Pending(ctx context.Context, environment string) ([]*domain.ApprovalRequest, error)
}

// AuditLogger records security-relevant approval events; internal/secrets
// already defines an equivalent seam for secret access events, so
// approval reuses the same shape rather than inventing a second one.
type AuditLogger interface {
	LogSecurityEvent(ctx context.Context, eventType string, details map[string]any, severity string)
}

// Workflow implements create/approve/reject/emergency-approve over a
// rule table and a Store.
type Workflow struct {
	rules         *RuleTable
	store         Store
	audit         AuditLogger
	defaultExpiry time.Duration
}

func NewWorkflow(rules *RuleTable, store Store, audit AuditLogger) *Workflow {
	return &Workflow{rules: rules, store: store, audit: audit, defaultExpiry: 24 * time.Hour}
}

// WithDefaultExpiry overrides the fallback expiry used when no change in
// a request specifies its own, returning w for chaining at construction
// time.
func (w *Workflow) WithDefaultExpiry(d time.Duration) *Workflow {
	if d > 0 {
		w.defaultExpiry = d
	}
	return w
}

// emergencyEligibleRoles is the fixed set authorized to invoke emergency
// approval, matching emergency_approve_request's hardcoded role check.
var emergencyEligibleRoles = map[domain.ApproverRole]bool{
	domain.RoleOnCallLead:    true,
	domain.RoleSecurityAdmin: true,
	domain.RolePlatformAdmin: true,
}

// CreateRequest resolves required approvers, priority, and expiry as the
// strictest rule among changes: union of required approvers, maximum
// priority, minimum (soonest) expiry. Production environments always add
// a mandatory platform-admin approver.
func (w *Workflow) CreateRequest(ctx context.Context, environment, requestedBy string, changes []domain.ConfigurationChange, priorityOverride *domain.ApprovalPriority) (*domain.ApprovalRequest, error) {
	if len(changes) == 0 {
		return nil, voicehiveerr.Validation("approval request must include at least one change", nil)
	}

	approverSet := make(map[domain.ApproverRole]bool)
	maxPriority := domain.PriorityLow
	minExpiry := w.defaultExpiry

	for _, change := range changes {
		rule := w.rules.Lookup(normalizeFieldPath(change.FieldPath))
		for _, role := range rule.RequiredApprovers {
			approverSet[role] = true
		}
		if rule.Priority > maxPriority {
			maxPriority = rule.Priority
		}
		if rule.ExpiryDuration < minExpiry {
			minExpiry = rule.ExpiryDuration
		}
	}

	if priorityOverride != nil && *priorityOverride > maxPriority {
		maxPriority = *priorityOverride
	}

	if environment == "production" {
		approverSet[domain.RolePlatformAdmin] = true
	}

	required := make([]domain.ApproverRole, 0, len(approverSet))
	for role := range approverSet {
		required = append(required, role)
	}

	now := time.Now()
	req := &domain.ApprovalRequest{
		ID:                uuid.New().String(),
		Environment:       environment,
		Changes:           changes,
		RequiredApprovers: required,
		Priority:          maxPriority,
		Status:            domain.ApprovalPending,
		RequestedBy:       requestedBy,
		Approvals:         make(map[domain.ApproverRole]domain.Approval),
		CreatedAt:         now,
		ExpiresAt:         now.Add(minExpiry),
	}

	if err := w.store.Save(ctx, req); err != nil {
		return nil, err
	}

	w.audit.LogSecurityEvent(ctx, "configuration_approval_request_created", map[string]any{
		"request_id":         req.ID,
		"environment":        environment,
		"requested_by":       requestedBy,
		"changes_count":      len(changes),
		"priority":           maxPriority,
		"required_approvers": required,
		"expires_at":         req.ExpiresAt,
	}, "medium")

	return req, nil
}

// expireIfPast transitions req to Expired in place and persists it when
// its deadline has passed; callers must re-check Status after calling
// this before acting on a request they loaded.
func (w *Workflow) expireIfPast(ctx context.Context, req *domain.ApprovalRequest) error {
	if req.Status != domain.ApprovalPending || time.Now().Before(req.ExpiresAt) {
		return nil
	}
	req.Status = domain.ApprovalExpired
	return w.store.Save(ctx, req)
}

// Approve records one role's approval. The request transitions to
// Approved only once every required role has approved; terminal states
// never transition back to pending.
func (w *Workflow) Approve(ctx context.Context, requestID, approvedBy string, role domain.ApproverRole) (*domain.ApprovalRequest, error) {
	req, err := w.store.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, voicehiveerr.NotFound("approval request not found: "+requestID, nil)
	}
	if err := w.expireIfPast(ctx, req); err != nil {
		return nil, err
	}
	if req.Status != domain.ApprovalPending {
		return nil, voicehiveerr.Conflict("approval request is not pending", nil)
	}
	if !roleRequired(req.RequiredApprovers, role) {
		return nil, voicehiveerr.Validation("role not authorized to approve this request", nil)
	}
	if _, already := req.Approvals[role]; already {
		return nil, voicehiveerr.Conflict("role has already approved this request", nil)
	}

	req.Approvals[role] = domain.Approval{Role: role, ApprovedBy: approvedBy, ApprovedAt: time.Now()}

	fullyApproved := true
	for _, required := range req.RequiredApprovers {
		if _, ok := req.Approvals[required]; !ok {
			fullyApproved = false
			break
		}
	}
	if fullyApproved {
		req.Status = domain.ApprovalApproved
	}

	if err := w.store.Save(ctx, req); err != nil {
		return nil, err
	}

	w.audit.LogSecurityEvent(ctx, "configuration_change_approved", map[string]any{
		"request_id":     requestID,
		"approved_by":    approvedBy,
		"role":            role,
		"fully_approved": fullyApproved,
	}, "medium")

	return req, nil
}

// Reject ends the request immediately: any required role's rejection is
// terminal, unlike approval which needs every role.
func (w *Workflow) Reject(ctx context.Context, requestID, rejectedBy string, role domain.ApproverRole, reason string) (*domain.ApprovalRequest, error) {
	req, err := w.store.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, voicehiveerr.NotFound("approval request not found: "+requestID, nil)
	}
	if err := w.expireIfPast(ctx, req); err != nil {
		return nil, err
	}
	if req.Status != domain.ApprovalPending {
		return nil, voicehiveerr.Conflict("approval request is not pending", nil)
	}
	if !roleRequired(req.RequiredApprovers, role) {
		return nil, voicehiveerr.Validation("role not authorized to reject this request", nil)
	}

	req.Status = domain.ApprovalRejected
	req.Rejection = &domain.Rejection{Role: role, RejectedBy: rejectedBy, RejectedAt: time.Now(), Reason: reason}

	if err := w.store.Save(ctx, req); err != nil {
		return nil, err
	}

	w.audit.LogSecurityEvent(ctx, "configuration_change_rejected", map[string]any{
		"request_id": requestID,
		"rejected_by": rejectedBy,
		"role":        role,
		"reason":      reason,
	}, "medium")

	return req, nil
}

// EmergencyApprove bypasses the remaining required approvers, available
// only when at least one change's rule opted in (AllowEmergency) and the
// actor holds an eligible role. It records an elevated-severity audit
// event, matching emergency_approve_request's "HIGH SEVERITY" log.
func (w *Workflow) EmergencyApprove(ctx context.Context, requestID, approvedBy string, role domain.ApproverRole, justification string) (*domain.ApprovalRequest, error) {
	if justification == "" {
		return nil, voicehiveerr.Validation("emergency approval requires a written justification", nil)
	}
	req, err := w.store.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, voicehiveerr.NotFound("approval request not found: "+requestID, nil)
	}
	if err := w.expireIfPast(ctx, req); err != nil {
		return nil, err
	}
	if req.Status != domain.ApprovalPending {
		return nil, voicehiveerr.Conflict("approval request is not pending", nil)
	}

	allowed := false
	for _, change := range req.Changes {
		if w.rules.Lookup(normalizeFieldPath(change.FieldPath)).AllowEmergency {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, voicehiveerr.Validation("emergency approval not allowed for this configuration change", nil)
	}
	if !emergencyEligibleRoles[role] {
		return nil, voicehiveerr.Auth("role not authorized for emergency approvals", nil)
	}

	req.Status = domain.ApprovalApproved
	req.EmergencyOverride = true
	req.Approvals[role] = domain.Approval{Role: role, ApprovedBy: approvedBy, ApprovedAt: time.Now()}

	if err := w.store.Save(ctx, req); err != nil {
		return nil, err
	}

	w.audit.LogSecurityEvent(ctx, "emergency_configuration_approval", map[string]any{
		"request_id":    requestID,
		"approved_by":   approvedBy,
		"role":          role,
		"justification": justification,
	}, "high")

	return req, nil
}

// Pending returns all still-pending requests for environment (empty
// string for all environments), expiring any whose deadline has passed
// as it goes, mirroring get_pending_requests' lazy-expiry sweep.
func (w *Workflow) Pending(ctx context.Context, environment string) ([]*domain.ApprovalRequest, error) {
	reqs, err := w.store.Pending(ctx, environment)
	if err != nil {
		return nil, err
	}
	live := make([]*domain.ApprovalRequest, 0, len(reqs))
	for _, req := range reqs {
		if err := w.expireIfPast(ctx, req); err != nil {
			return nil, err
		}
		if req.Status == domain.ApprovalPending {
			live = append(live, req)
		}
	}
	return live, nil
}

func roleRequired(required []domain.ApproverRole, role domain.ApproverRole) bool {
	for _, r := range required {
		if r == role {
			return true
		}
	}
	return false
}
