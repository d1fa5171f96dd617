package models

// Role is a user's role in the system
type Role string

const (
	RoleSuperAdmin   Role = "SUPER_ADMIN"
	RoleAdmin        Role = "ADMIN"
	RoleBranchLeader Role = "BRANCH_LEADER"
	RoleMember       Role = "MEMBER"
)

// Capability is a named permission flag attached to a role
type Capability string

const (
	CapInviteUsers           Capability = "invite_users"
	CapViewUsers             Capability = "view_users"
	CapManageUsers           Capability = "manage_users"
	CapManageMembers         Capability = "manage_members"
	CapApprovePendingMembers Capability = "approve_pending_members"
	CapManageSnapshots       Capability = "manage_snapshots"
	CapRestoreSnapshot       Capability = "restore_snapshot"
	CapViewAuditLogs         Capability = "view_audit_logs"
	CapSendBroadcasts        Capability = "send_broadcasts"
)

// roleCapabilities is the flat role→capability table. There is no
// inheritance; each role lists its full capability set.
var roleCapabilities = map[Role][]Capability{
	RoleSuperAdmin: {
		CapInviteUsers,
		CapViewUsers,
		CapManageUsers,
		CapManageMembers,
		CapApprovePendingMembers,
		CapManageSnapshots,
		CapRestoreSnapshot,
		CapViewAuditLogs,
		CapSendBroadcasts,
	},
	RoleAdmin: {
		CapInviteUsers,
		CapViewUsers,
		CapManageMembers,
		CapApprovePendingMembers,
		CapManageSnapshots,
		CapViewAuditLogs,
		CapSendBroadcasts,
	},
	RoleBranchLeader: {
		// Invitations and visibility are additionally scoped to the
		// leader's assigned branch at the handler layer.
		CapInviteUsers,
		CapViewUsers,
	},
	RoleMember: {},
}

// HasCapability reports whether the role grants the capability
func (r Role) HasCapability(cap Capability) bool {
	for _, c := range roleCapabilities[r] {
		if c == cap {
			return true
		}
	}
	return false
}

// IsValid reports whether the role is one of the known roles
func (r Role) IsValid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleBranchLeader, RoleMember:
		return true
	}
	return false
}

// HasCapability reports whether the user's role grants the capability
func (u *User) HasCapability(cap Capability) bool {
	return u.Role.HasCapability(cap)
}
