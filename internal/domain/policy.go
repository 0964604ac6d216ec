package domain

// Permission is one discrete action a principal may be authorized to
// perform.
type Permission int

const (
	PermissionViewDrift Permission = iota
	PermissionViewDeployments
	PermissionTriggerHeal
	PermissionRunPlaybook
	PermissionApproveDeployment
	PermissionManageRoles
)

func (p Permission) String() string {
	switch p {
	case PermissionViewDrift:
		return "VIEW_DRIFT"
	case PermissionViewDeployments:
		return "VIEW_DEPLOYMENTS"
	case PermissionTriggerHeal:
		return "TRIGGER_HEAL"
	case PermissionRunPlaybook:
		return "RUN_PLAYBOOK"
	case PermissionApproveDeployment:
		return "APPROVE_DEPLOYMENT"
	case PermissionManageRoles:
		return "MANAGE_ROLES"
	default:
		return "UNKNOWN"
	}
}

// Role is a named set of permissions. An Admin role implies every
// permission regardless of what is listed explicitly.
type Role struct {
	Name        string
	Permissions map[Permission]bool
	IsAdmin     bool
}

// Allows reports whether this role grants the given permission.
func (r Role) Allows(p Permission) bool {
	if r.IsAdmin {
		return true
	}
	return r.Permissions[p]
}

// Predefined roles mirroring the three principal tiers Chimera ships
// out of the box.
var (
	ViewerRole = Role{
		Name: "viewer",
		Permissions: map[Permission]bool{
			PermissionViewDrift:       true,
			PermissionViewDeployments: true,
		},
	}
	OperatorRole = Role{
		Name: "operator",
		Permissions: map[Permission]bool{
			PermissionViewDrift:       true,
			PermissionViewDeployments: true,
			PermissionTriggerHeal:     true,
			PermissionRunPlaybook:     true,
		},
	}
	AdminRole = Role{
		Name:    "admin",
		IsAdmin: true,
	}
)

// PolicyDecision is the value object returned by evaluating a policy
// request: whether it was allowed, the reason for the decision, and the
// permission/principal it concerned.
type PolicyDecision struct {
	Allowed   bool
	Reason    string
	Principal string
	Permission Permission
}

// PolicyEngine evaluates whether a named principal's role grants a
// requested permission.
type PolicyEngine struct {
	roles map[string]Role
}

// NewPolicyEngine constructs a PolicyEngine with no assigned principals.
func NewPolicyEngine() *PolicyEngine {
	return &PolicyEngine{roles: make(map[string]Role)}
}

// Assign binds a principal name to a role.
func (e *PolicyEngine) Assign(principal string, role Role) {
	e.roles[principal] = role
}

// Evaluate decides whether the given principal may exercise the
// requested permission.
func (e *PolicyEngine) Evaluate(principal string, permission Permission) PolicyDecision {
	role, ok := e.roles[principal]
	if !ok {
		return PolicyDecision{
			Allowed:    false,
			Reason:     "principal has no assigned role",
			Principal:  principal,
			Permission: permission,
		}
	}
	if role.Allows(permission) {
		return PolicyDecision{
			Allowed:    true,
			Reason:     "role " + role.Name + " grants " + permission.String(),
			Principal:  principal,
			Permission: permission,
		}
	}
	return PolicyDecision{
		Allowed:    false,
		Reason:     "role " + role.Name + " does not grant " + permission.String(),
		Principal:  principal,
		Permission: permission,
	}
}
