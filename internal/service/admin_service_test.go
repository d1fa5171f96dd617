package service

import (
	"context"
	"testing"

	"familytree/internal/apperr"
	"familytree/internal/models"
)

func newAdminFixture() (*AdminService, *fakeUserStore, *fakeInviteStore) {
	users := newFakeUserStore()
	invites := newFakeInviteStore()
	activity := &fakeActivityStore{}
	svc := NewAdminService(users, invites, activity, activity, newFakeEmailSender(), testLogger())
	return svc, users, invites
}

func TestUpdateUserRoleLastSuperAdminGuard(t *testing.T) {
	svc, users, _ := newAdminFixture()
	rootID, _ := users.CreateUser(&models.User{Email: "root@x.example", Name: "Root", Role: models.RoleSuperAdmin})
	root, _ := users.GetUserByID(rootID)

	_, err := svc.UpdateUserRole(root, rootID, models.RoleAdmin, "")
	appErr := apperr.As(err)
	if appErr == nil || appErr.Code != apperr.CodeConflict {
		t.Fatalf("expected conflict demoting last super admin, got %v", err)
	}

	// With a second super admin the demotion goes through
	_, _ = users.CreateUser(&models.User{Email: "root2@x.example", Name: "Root2", Role: models.RoleSuperAdmin})
	updated, err := svc.UpdateUserRole(root, rootID, models.RoleAdmin, "")
	if err != nil {
		t.Fatalf("demotion failed: %v", err)
	}
	if updated.Role != models.RoleAdmin {
		t.Errorf("role = %q, want ADMIN", updated.Role)
	}
}

func TestUpdateUserRoleOnlySuperAdminGrantsSuperAdmin(t *testing.T) {
	svc, users, _ := newAdminFixture()
	adminID, _ := users.CreateUser(&models.User{Email: "admin@x.example", Role: models.RoleAdmin})
	admin, _ := users.GetUserByID(adminID)
	targetID, _ := users.CreateUser(&models.User{Email: "target@x.example", Role: models.RoleMember})

	_, err := svc.UpdateUserRole(admin, targetID, models.RoleSuperAdmin, "")
	appErr := apperr.As(err)
	if appErr == nil || appErr.Code != apperr.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestCreateInviteBranchLeaderScope(t *testing.T) {
	svc, users, _ := newAdminFixture()
	leaderID, _ := users.CreateUser(&models.User{
		Email: "leader@x.example", Name: "Leader",
		Role: models.RoleBranchLeader, AssignedBranch: "Riyadh",
	})
	leader, _ := users.GetUserByID(leaderID)

	// Leaders cannot grant elevated roles
	_, err := svc.CreateInvite(context.Background(), leader, "x@x.example", models.RoleAdmin, "")
	appErr := apperr.As(err)
	if appErr == nil || appErr.Code != apperr.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}

	// Member invites are forced into the leader's own branch
	invite, err := svc.CreateInvite(context.Background(), leader, "x@x.example", models.RoleMember, "Jeddah")
	if err != nil {
		t.Fatalf("invite failed: %v", err)
	}
	if invite.Branch != "Riyadh" {
		t.Errorf("invite branch = %q, want leader's Riyadh", invite.Branch)
	}
}

func TestCreateInviteNeverGrantsSuperAdmin(t *testing.T) {
	svc, users, _ := newAdminFixture()
	rootID, _ := users.CreateUser(&models.User{Email: "root@x.example", Role: models.RoleSuperAdmin})
	root, _ := users.GetUserByID(rootID)

	_, err := svc.CreateInvite(context.Background(), root, "x@x.example", models.RoleSuperAdmin, "")
	appErr := apperr.As(err)
	if appErr == nil || appErr.Code != apperr.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestListUsersBranchLeaderScoped(t *testing.T) {
	svc, users, _ := newAdminFixture()
	leaderID, _ := users.CreateUser(&models.User{
		Email: "leader@x.example", Role: models.RoleBranchLeader, AssignedBranch: "Riyadh",
	})
	leader, _ := users.GetUserByID(leaderID)
	_, _ = users.CreateUser(&models.User{Email: "a@x.example", Role: models.RoleMember, AssignedBranch: "Riyadh"})
	_, _ = users.CreateUser(&models.User{Email: "b@x.example", Role: models.RoleMember, AssignedBranch: "Jeddah"})

	visible, err := svc.ListUsers(leader)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, u := range visible {
		if u.AssignedBranch != "Riyadh" {
			t.Errorf("user %s outside leader's branch is visible", u.Email)
		}
	}
	if len(visible) != 2 {
		t.Errorf("visible users = %d, want 2 (leader and branch member)", len(visible))
	}
}
