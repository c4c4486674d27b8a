package rbac

import "testing"

func TestRolePermissions(t *testing.T) {
	cases := []struct {
		role       string
		permission string
		want       bool
	}{
		{RoleClient, PermissionCreateProject, true},
		{RoleClient, PermissionPayInvoice, true},
		{RoleClient, PermissionCreateReview, true},
		{RoleFreelancer, PermissionCreateReview, false},
		{RoleClient, PermissionResolveDispute, false},
		{RoleClient, PermissionSubmitWork, false},
		{RoleFreelancer, PermissionSubmitWork, true},
		{RoleFreelancer, PermissionGenerateInvoice, true},
		{RoleFreelancer, PermissionCreateProject, false},
		{RoleFreelancer, PermissionResolveDispute, false},
		{RoleAdmin, PermissionResolveDispute, true},
		{RoleAdmin, PermissionReplayOutbox, true},
		{RoleAdmin, PermissionPayInvoice, false},
		{"unknown", PermissionCreateProject, false},
	}

	for _, c := range cases {
		if got := HasPermission(c.role, c.permission); got != c.want {
			t.Fatalf("HasPermission(%s, %s) = %v, want %v", c.role, c.permission, got, c.want)
		}
	}
}

func TestCheckPermissionError(t *testing.T) {
	if err := CheckPermission(RoleClient, PermissionResolveDispute); err == nil {
		t.Fatal("expected error")
	}
	if err := CheckPermission(RoleAdmin, PermissionResolveDispute); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}
