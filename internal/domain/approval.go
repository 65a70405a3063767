package domain

import "time"

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
	ApprovalExpired  ApprovalStatus = "expired"
)

type ApprovalPriority int

const (
	PriorityLow ApprovalPriority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// ApproverRole enumerates the roles that can be named as a required
// approver on a rule, or granted emergency-override authority.
type ApproverRole string

const (
	RoleEngineer      ApproverRole = "engineer"
	RoleTeamLead      ApproverRole = "team_lead"
	RoleSecurityAdmin ApproverRole = "security_admin"
	RolePlatformAdmin ApproverRole = "platform_admin"
	RoleOnCallLead    ApproverRole = "on_call_lead"
)

// ApprovalRule is one entry in the field_path-keyed rule table that
// determines how many/which approvers a configuration change needs.
type ApprovalRule struct {
	FieldPath         string
	RequiredApprovers []ApproverRole
	Priority          ApprovalPriority
	ExpiryDuration    time.Duration
	AllowEmergency    bool
	EmergencyRoles    []ApproverRole
}

// ConfigurationChange is one proposed field_path -> new value edit.
type ConfigurationChange struct {
	FieldPath string
	OldValue  any
	NewValue  any
	Tenant    string
	Environment string
}

// ApprovalRequest bundles one or more ConfigurationChange values that
// must be approved together. When multiple rules apply (one per change),
// the request's aggregate requirement is the strictest rule: the union
// of every rule's required approver roles, the maximum priority, and the
// minimum (soonest) expiry.
type ApprovalRequest struct {
	ID                string
	Environment       string
	Changes           []ConfigurationChange
	RequiredApprovers []ApproverRole
	Priority          ApprovalPriority
	Status            ApprovalStatus
	RequestedBy        string
	Approvals         map[ApproverRole]Approval
	Rejection         *Rejection
	CreatedAt         time.Time
	ExpiresAt         time.Time
	EmergencyOverride bool
}

type Approval struct {
	Role      ApproverRole
	ApprovedBy string
	ApprovedAt time.Time
}

type Rejection struct {
	Role       ApproverRole
	RejectedBy string
	RejectedAt time.Time
	Reason     string
}
