package models

import (
	"testing"
	"time"
)

func TestSessionIsExpired(t *testing.T) {
	live := &Session{ExpiresAt: time.Now().Add(time.Hour)}
	if live.IsExpired() {
		t.Error("session expiring in an hour should not be expired")
	}

	dead := &Session{ExpiresAt: time.Now().Add(-time.Minute)}
	if !dead.IsExpired() {
		t.Error("session that expired a minute ago should be expired")
	}
}

func TestInviteValidity(t *testing.T) {
	now := time.Now()
	used := now.Add(-time.Hour)

	tests := []struct {
		name   string
		invite Invite
		valid  bool
	}{
		{
			name:   "fresh invite",
			invite: Invite{ExpiresAt: now.Add(48 * time.Hour)},
			valid:  true,
		},
		{
			name:   "expired invite",
			invite: Invite{ExpiresAt: now.Add(-time.Hour)},
			valid:  false,
		},
		{
			name:   "used invite",
			invite: Invite{ExpiresAt: now.Add(48 * time.Hour), UsedAt: &used},
			valid:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.invite.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestFilterProposedChanges(t *testing.T) {
	changes := map[string]interface{}{
		"city":      "Riyadh",
		"hackField": "x",
		"birthYear": 1950,
		"id":        "G1-0001",
		"firstName": "Evil",
	}

	filtered := FilterProposedChanges(changes)

	if len(filtered) != 2 {
		t.Fatalf("expected 2 fields after filtering, got %d: %v", len(filtered), filtered)
	}
	if filtered["city"] != "Riyadh" {
		t.Errorf("city should survive filtering, got %v", filtered["city"])
	}
	if filtered["birthYear"] != 1950 {
		t.Errorf("birthYear should survive filtering, got %v", filtered["birthYear"])
	}
	if _, ok := filtered["hackField"]; ok {
		t.Error("hackField should be dropped")
	}
	if _, ok := filtered["firstName"]; ok {
		t.Error("firstName is not updatable and should be dropped")
	}
}

func TestRoleCapabilities(t *testing.T) {
	tests := []struct {
		role Role
		cap  Capability
		want bool
	}{
		{RoleSuperAdmin, CapRestoreSnapshot, true},
		{RoleSuperAdmin, CapManageUsers, true},
		{RoleAdmin, CapApprovePendingMembers, true},
		{RoleAdmin, CapRestoreSnapshot, false},
		{RoleAdmin, CapManageUsers, false},
		{RoleBranchLeader, CapInviteUsers, true},
		{RoleBranchLeader, CapApprovePendingMembers, false},
		{RoleMember, CapViewUsers, false},
		{RoleMember, CapInviteUsers, false},
	}

	for _, tt := range tests {
		if got := tt.role.HasCapability(tt.cap); got != tt.want {
			t.Errorf("%s.HasCapability(%s) = %v, want %v", tt.role, tt.cap, got, tt.want)
		}
	}
}

func TestRoleIsValid(t *testing.T) {
	for _, r := range []Role{RoleSuperAdmin, RoleAdmin, RoleBranchLeader, RoleMember} {
		if !r.IsValid() {
			t.Errorf("%s should be valid", r)
		}
	}
	if Role("OWNER").IsValid() {
		t.Error("unknown role should not be valid")
	}
}

func TestPendingMemberIsReviewed(t *testing.T) {
	p := &PendingMember{ReviewStatus: ReviewPending}
	if p.IsReviewed() {
		t.Error("pending record should not be reviewed")
	}
	p.ReviewStatus = ReviewApproved
	if !p.IsReviewed() {
		t.Error("approved record should be reviewed")
	}
}

func TestRSVPResponseIsValid(t *testing.T) {
	if !RSVPYes.IsValid() || !RSVPNo.IsValid() || !RSVPMaybe.IsValid() {
		t.Error("known responses should be valid")
	}
	if RSVPResponse("PERHAPS").IsValid() {
		t.Error("unknown response should not be valid")
	}
}
