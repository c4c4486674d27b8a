package rbac

// Permission constants for the engagement API surface.
const (
	PermissionCreateProject   = "project:create"
	PermissionManageProject   = "project:manage"
	PermissionApplyToProject  = "project:apply"
	PermissionSubmitWork      = "work:submit"
	PermissionReviewWork      = "work:review"
	PermissionGenerateInvoice = "invoice:generate"
	PermissionPayInvoice      = "invoice:pay"
	PermissionOpenDispute     = "dispute:open"
	PermissionResolveDispute  = "dispute:resolve"
	PermissionCreateReview    = "review:create"
	PermissionReplayOutbox    = "outbox:replay"
)

// Role constants.
const (
	RoleClient     = "client"
	RoleFreelancer = "freelancer"
	RoleAdmin      = "admin"
)

var rolePermissions = map[string][]string{
	RoleClient: {
		PermissionCreateProject,
		PermissionManageProject,
		PermissionReviewWork,
		PermissionPayInvoice,
		PermissionOpenDispute,
		PermissionCreateReview,
	},
	RoleFreelancer: {
		PermissionApplyToProject,
		PermissionSubmitWork,
		PermissionGenerateInvoice,
		PermissionOpenDispute,
	},
	RoleAdmin: {
		PermissionResolveDispute,
		PermissionReplayOutbox,
	},
}

// HasPermission checks whether the role grants the permission. This is
// the coarse route-level check; ownership of the specific project is
// verified again inside the domain services.
func HasPermission(role string, permission string) bool {
	permissions, ok := rolePermissions[role]
	if !ok {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission returns a typed error instead of a boolean.
func CheckPermission(role string, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{
			Role:       role,
			Permission: permission,
		}
	}
	return nil
}

type PermissionDeniedError struct {
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permissions"
}
