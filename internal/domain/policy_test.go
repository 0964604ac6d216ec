package domain

import "testing"

func TestPolicyEngineUnassignedPrincipalDenied(t *testing.T) {
	e := NewPolicyEngine()
	decision := e.Evaluate("alice", PermissionViewDrift)
	if decision.Allowed {
		t.Fatal("unassigned principal should be denied")
	}
}

func TestPolicyEngineViewerCannotTriggerHeal(t *testing.T) {
	e := NewPolicyEngine()
	e.Assign("alice", ViewerRole)
	if e.Evaluate("alice", PermissionTriggerHeal).Allowed {
		t.Fatal("viewer should not be able to trigger heal")
	}
	if !e.Evaluate("alice", PermissionViewDrift).Allowed {
		t.Fatal("viewer should be able to view drift")
	}
}

func TestPolicyEngineOperatorCanHealButNotManageRoles(t *testing.T) {
	e := NewPolicyEngine()
	e.Assign("bob", OperatorRole)
	if !e.Evaluate("bob", PermissionTriggerHeal).Allowed {
		t.Fatal("operator should be able to trigger heal")
	}
	if e.Evaluate("bob", PermissionManageRoles).Allowed {
		t.Fatal("operator should not manage roles")
	}
}

func TestPolicyEngineAdminAllowsEverything(t *testing.T) {
	e := NewPolicyEngine()
	e.Assign("root", AdminRole)
	for p := PermissionViewDrift; p <= PermissionManageRoles; p++ {
		if !e.Evaluate("root", p).Allowed {
			t.Fatalf("admin should allow permission %v", p)
		}
	}
}
