// Package discuss implements the multi-agent orchestration core: per-role
// prompt assembly, research gating, token budgeting, model invocation, and
// graceful degradation of auxiliary services (history, search, speech).
package discuss

import "strings"

// Role is one of the four fixed agent specializations. The default pipeline
// order is architect, then backend and frontend concurrently, then qa.
type Role string

const (
	RoleArchitect Role = "architect"
	RoleBackend   Role = "backend"
	RoleFrontend  Role = "frontend"
	RoleQA        Role = "qa"
)

// AllRoles returns the four known roles in pipeline order.
func AllRoles() []Role {
	return []Role{RoleArchitect, RoleBackend, RoleFrontend, RoleQA}
}

// ValidRole reports whether r is one of the four known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleArchitect, RoleBackend, RoleFrontend, RoleQA:
		return true
	default:
		return false
	}
}

// ParseRole normalizes a caller-supplied role label.
func ParseRole(s string) Role {
	return Role(strings.ToLower(strings.TrimSpace(s)))
}

// DisplayName returns the human-facing label used in context entries and
// persisted responses.
func (r Role) DisplayName() string {
	switch r {
	case RoleArchitect:
		return "Architect"
	case RoleBackend:
		return "Backend"
	case RoleFrontend:
		return "Frontend"
	case RoleQA:
		return "QA"
	default:
		return string(r)
	}
}

// roleList is the accepted-roles string included in validation errors.
func roleList() string {
	names := make([]string, 0, 4)
	for _, r := range AllRoles() {
		names = append(names, string(r))
	}
	return strings.Join(names, ", ")
}
