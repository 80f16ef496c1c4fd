package review

import "accessreview/internal/domain"

// ClassifyRole labels a principal from membership/ownership set
// overlap. A principal in both sets keeps the conjunction label and is
// never collapsed to a single role.
func ClassifyRole(principalID string, members, owners map[string]struct{}) string {
	_, isMember := members[principalID]
	_, isOwner := owners[principalID]
	switch {
	case isMember && isOwner:
		return domain.RoleOwnerMember
	case isMember:
		return domain.RoleMember
	case isOwner:
		return domain.RoleOwner
	default:
		return domain.NotAvailable
	}
}

// RoleForAccessLevel maps the membership API's numeric access level to
// a role name. Levels outside the documented set map to "unknown".
func RoleForAccessLevel(level int) string {
	switch level {
	case 10:
		return "guest"
	case 20:
		return "reporter"
	case 30:
		return "developer"
	case 40:
		return "maintainer"
	case 50:
		return domain.RoleOwner
	default:
		return domain.RoleUnknown
	}
}
