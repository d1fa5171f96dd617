package models

import "time"

// ActivityLog is an append-only audit record. Every state-changing action
// emits exactly one row.
type ActivityLog struct {
	ID         int64     `json:"id"`
	ActorID    *int64    `json:"actorId,omitempty"`
	Action     string    `json:"action"`
	TargetType string    `json:"targetType"`
	TargetID   string    `json:"targetId"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Audit action names
const (
	ActionPendingApproved  = "pending_member_approved"
	ActionPendingRejected  = "pending_member_rejected"
	ActionUpdateApproved   = "update_request_approved"
	ActionUpdateRejected   = "update_request_rejected"
	ActionMemberCreated    = "member_created"
	ActionMemberUpdated    = "member_updated"
	ActionSnapshotCreated  = "snapshot_created"
	ActionSnapshotDeleted  = "snapshot_deleted"
	ActionSnapshotRestored = "snapshot_restored"
	ActionUserUpdated      = "user_updated"
	ActionInviteCreated    = "invite_created"
	ActionBroadcastSent    = "broadcast_sent"
	ActionPasswordReset    = "password_reset"
)
