package policy

const (
	PermissionSystemAdmin = "system_admin"
	RoleOwner             = "owner"

	RuleSystemAdmin   = "system_admin_permission"
	RuleDenyInactive  = "deny_inactive_user"
	RuleOwnerRole     = "owner_role"
	RuleRoleMatrix    = "role_permission_matrix"
	RuleResourceOwner = "resource_owner"
)

// DefaultRules are registered at startup. Role grants outrank ownership, and
// a deactivated account loses everything except the system_admin override,
// including the blanket owner grant.
func DefaultRules(enforcer Enforcer) []Rule {
	return []Rule{
		{
			ID:        RuleSystemAdmin,
			Effect:    EffectAllow,
			Priority:  1000,
			Condition: PermissionIncludes{Permission: PermissionSystemAdmin},
		},
		{
			ID:        RuleDenyInactive,
			Effect:    EffectDeny,
			Priority:  950,
			Condition: InactiveUser{},
		},
		{
			ID:        RuleOwnerRole,
			Effect:    EffectAllow,
			Priority:  900,
			Condition: RoleEquals{Role: RoleOwner},
		},
		{
			ID:        RuleRoleMatrix,
			Effect:    EffectAllow,
			Priority:  500,
			Condition: CasbinPermission{Enforcer: enforcer},
		},
		{
			ID:        RuleResourceOwner,
			Effect:    EffectAllow,
			Priority:  300,
			Condition: ResourceOwner{},
		},
	}
}
