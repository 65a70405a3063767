// Package approval implements the configuration change approval
// workflow: a field-path-keyed rule table, strictest-rule-wins
// aggregation across a multi-change request, the pending/approved/
// rejected/expired state machine, and emergency override.
package approval

import (
	"strings"
	"time"

	"github.com/voicehive-hotels/orchestrator/internal/domain"
)

// Rule mirrors one entry of _initialize_approval_rules: the approvers,
// priority, and expiry window a changed field demands, plus whether an
// emergency override may bypass the remaining approvers.
type Rule = domain.ApprovalRule

// defaultFieldPath is the catch-all rule key.
const defaultFieldPath = "_default"

// RuleTable resolves field paths to rules, falling back to _default for
// anything unlisted.
type RuleTable struct {
	rules map[string]Rule
}

// NewDefaultRuleTable reproduces _initialize_approval_rules verbatim:
// security- and environment-critical fields require security/platform
// admin sign-off with short expiries and no emergency override; most
// database and auth-adjacent fields allow emergency override; anything
// unlisted falls to the system-admin default.
func NewDefaultRuleTable() *RuleTable {
	rules := map[string]Rule{
		"auth.jwt_secret_key": {
			FieldPath:         "auth.jwt_secret_key",
			RequiredApprovers: []domain.ApproverRole{domain.RoleSecurityAdmin, domain.RolePlatformAdmin},
			Priority:          domain.PriorityCritical,
			ExpiryDuration:    4 * time.Hour,
			AllowEmergency:    false,
		},
		"security.encryption_key": {
			FieldPath:         "security.encryption_key",
			RequiredApprovers: []domain.ApproverRole{domain.RoleSecurityAdmin, domain.RolePlatformAdmin},
			Priority:          domain.PriorityCritical,
			ExpiryDuration:    4 * time.Hour,
			AllowEmergency:    false,
		},
		"security.webhook_signature_secret": {
			FieldPath:         "security.webhook_signature_secret",
			RequiredApprovers: []domain.ApproverRole{domain.RoleSecurityAdmin},
			Priority:          domain.PriorityHigh,
			ExpiryDuration:    8 * time.Hour,
			AllowEmergency:    false,
		},
		"database.password": {
			FieldPath:         "database.password",
			RequiredApprovers: []domain.ApproverRole{domain.RoleSecurityAdmin, domain.RolePlatformAdmin},
			Priority:          domain.PriorityHigh,
			ExpiryDuration:    8 * time.Hour,
			AllowEmergency:    true,
			EmergencyRoles:    []domain.ApproverRole{domain.RoleOnCallLead, domain.RoleSecurityAdmin},
		},
		"database.ssl_mode": {
			FieldPath:         "database.ssl_mode",
			RequiredApprovers: []domain.ApproverRole{domain.RoleSecurityAdmin},
			Priority:          domain.PriorityCritical,
			ExpiryDuration:    4 * time.Hour,
			AllowEmergency:    false,
		},
		"environment": {
			FieldPath:         "environment",
			RequiredApprovers: []domain.ApproverRole{domain.RoleSecurityAdmin, domain.RolePlatformAdmin},
			Priority:          domain.PriorityCritical,
			ExpiryDuration:    2 * time.Hour,
			AllowEmergency:    false,
		},
		"region": {
			FieldPath:         "region",
			RequiredApprovers: []domain.ApproverRole{domain.RoleSecurityAdmin, domain.RolePlatformAdmin},
			Priority:          domain.PriorityCritical,
			ExpiryDuration:    2 * time.Hour,
			AllowEmergency:    false,
		},
		"auth.jwt_algorithm": {
			FieldPath:         "auth.jwt_algorithm",
			RequiredApprovers: []domain.ApproverRole{domain.RoleSecurityAdmin},
			Priority:          domain.PriorityHigh,
			ExpiryDuration:    8 * time.Hour,
			AllowEmergency:    false,
		},
		"auth.jwt_expiration_minutes": {
			FieldPath:         "auth.jwt_expiration_minutes",
			RequiredApprovers: []domain.ApproverRole{domain.RoleSecurityAdmin},
			Priority:          domain.PriorityMedium,
			ExpiryDuration:    12 * time.Hour,
			AllowEmergency:    true,
			EmergencyRoles:    []domain.ApproverRole{domain.RoleOnCallLead, domain.RoleSecurityAdmin},
		},
		"external_services.vault_url": {
			FieldPath:         "external_services.vault_url",
			RequiredApprovers: []domain.ApproverRole{domain.RoleSecurityAdmin, domain.RoleTeamLead},
			Priority:          domain.PriorityHigh,
			ExpiryDuration:    8 * time.Hour,
			AllowEmergency:    true,
			EmergencyRoles:    []domain.ApproverRole{domain.RoleOnCallLead, domain.RoleSecurityAdmin},
		},
		defaultFieldPath: {
			FieldPath:         defaultFieldPath,
			RequiredApprovers: []domain.ApproverRole{domain.RoleTeamLead},
			Priority:          domain.PriorityMedium,
			ExpiryDuration:    24 * time.Hour,
			AllowEmergency:    true,
			EmergencyRoles:    []domain.ApproverRole{domain.RoleOnCallLead, domain.RoleSecurityAdmin},
		},
	}
	return &RuleTable{rules: rules}
}

// Lookup returns the rule for fieldPath, falling back to _default.
func (t *RuleTable) Lookup(fieldPath string) Rule {
	if r, ok := t.rules[fieldPath]; ok {
		return r
	}
	return t.rules[defaultFieldPath]
}

// normalizeFieldPath trims surrounding whitespace; kept separate in
// case callers start passing mixed-case paths.
func normalizeFieldPath(p string) string { return strings.TrimSpace(p) }
