package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleSuperAdmin = "super_admin"
	RoleAgent      = "agent"
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

// Known reports whether role is one this service issues.
func Known(role string) bool { return role == RoleSuperAdmin || role == RoleAgent }
