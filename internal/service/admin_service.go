package service

import (
	"context"
	"fmt"
	"time"

	"familytree/internal/apperr"
	"familytree/internal/logger"
	"familytree/internal/models"
	"familytree/internal/security"
)

// ActivityLister reads back the audit log
type ActivityLister interface {
	List(limit int) ([]models.ActivityLog, error)
}

// AdminService handles user administration, invites and the audit log
type AdminService struct {
	users    UserStore
	invites  InviteStore
	activity ActivityStore
	auditLog ActivityLister
	email    EmailSender
	log      *logger.Logger
	now      func() time.Time
}

// NewAdminService creates a new admin service
func NewAdminService(users UserStore, invites InviteStore, activity ActivityStore, auditLog ActivityLister, email EmailSender, log *logger.Logger) *AdminService {
	return &AdminService{
		users:    users,
		invites:  invites,
		activity: activity,
		auditLog: auditLog,
		email:    email,
		log:      log,
		now:      time.Now,
	}
}

// ListUsers returns accounts visible to the actor. Branch leaders only see
// users assigned to their own branch.
func (s *AdminService) ListUsers(actor *models.User) ([]models.User, error) {
	branch := ""
	if actor.Role == models.RoleBranchLeader {
		branch = actor.AssignedBranch
	}
	users, err := s.users.ListUsers(branch)
	if err != nil {
		return nil, apperr.Database(err)
	}
	return users, nil
}

// UpdateUserRole changes a user's role and branch assignment. The last
// remaining super admin can never be demoted.
func (s *AdminService) UpdateUserRole(actor *models.User, userID int64, role models.Role, branch string) (*models.User, error) {
	if !role.IsValid() {
		return nil, apperr.Validation("Invalid role", "الدور غير صالح")
	}
	if role == models.RoleSuperAdmin && actor.Role != models.RoleSuperAdmin {
		return nil, apperr.Forbidden("Only a super admin can grant the super admin role", "فقط المشرف الأعلى يمكنه منح دور المشرف الأعلى")
	}

	target, err := s.users.GetUserByID(userID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	if target == nil {
		return nil, apperr.NotFound("User not found", "المستخدم غير موجود")
	}

	if target.Role == models.RoleSuperAdmin && role != models.RoleSuperAdmin {
		admins, err := s.countSuperAdmins()
		if err != nil {
			return nil, err
		}
		if admins <= 1 {
			return nil, apperr.Conflict("Cannot demote the last super admin", "لا يمكن تخفيض رتبة المشرف الأعلى الأخير")
		}
	}

	if err := s.users.UpdateUserRole(userID, role, branch); err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("User not found", "المستخدم غير موجود")
		}
		return nil, apperr.Database(err)
	}

	s.audit(actor.ID, models.ActionUserUpdated, "user", fmt.Sprintf("%d", userID),
		fmt.Sprintf("role %s, branch %q", role, branch))

	updated, err := s.users.GetUserByID(userID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	return updated, nil
}

// CreateInvite issues an invite code granting a role by email. Branch
// leaders can only invite members into their own branch.
func (s *AdminService) CreateInvite(ctx context.Context, actor *models.User, email string, role models.Role, branch string) (*models.Invite, error) {
	if !role.IsValid() {
		return nil, apperr.Validation("Invalid role", "الدور غير صالح")
	}
	if role == models.RoleSuperAdmin {
		return nil, apperr.Forbidden("The super admin role cannot be granted by invite", "لا يمكن منح دور المشرف الأعلى عبر دعوة")
	}
	if actor.Role == models.RoleBranchLeader {
		if role != models.RoleMember {
			return nil, apperr.Forbidden("Branch leaders can only invite members", "قادة الفروع يمكنهم دعوة الأعضاء فقط")
		}
		branch = actor.AssignedBranch
	}

	code, err := security.GenerateSecureToken(16)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	invite := &models.Invite{
		Code:      code,
		Email:     email,
		Role:      role,
		Branch:    branch,
		InvitedBy: actor.ID,
		ExpiresAt: s.now().Add(7 * 24 * time.Hour),
	}
	id, err := s.invites.CreateInvite(invite)
	if err != nil {
		return nil, apperr.Database(err)
	}
	invite.ID = id
	invite.CreatedAt = s.now()

	if s.email != nil && s.email.IsEnabled() {
		if err := s.email.SendInviteEmail(ctx, email, actor.Name, code); err != nil {
			s.log.WithError(err).WithField("email", email).Warn("failed to send invite email")
		}
	}

	s.audit(actor.ID, models.ActionInviteCreated, "invite", fmt.Sprintf("%d", id), email)
	return invite, nil
}

// ListInvites returns invites visible to the actor
func (s *AdminService) ListInvites(actor *models.User) ([]models.Invite, error) {
	branch := ""
	if actor.Role == models.RoleBranchLeader {
		branch = actor.AssignedBranch
	}
	invites, err := s.invites.ListInvites(branch)
	if err != nil {
		return nil, apperr.Database(err)
	}
	return invites, nil
}

// RevokeInvite deletes an unused invite
func (s *AdminService) RevokeInvite(id int64) error {
	if err := s.invites.DeleteInvite(id); err != nil {
		if isNoRows(err) {
			return apperr.NotFound("Invite not found", "الدعوة غير موجودة")
		}
		return apperr.Database(err)
	}
	return nil
}

// ListActivity returns recent audit entries
func (s *AdminService) ListActivity(limit int) ([]models.ActivityLog, error) {
	entries, err := s.auditLog.List(limit)
	if err != nil {
		return nil, apperr.Database(err)
	}
	return entries, nil
}

func (s *AdminService) countSuperAdmins() (int, error) {
	users, err := s.users.ListUsers("")
	if err != nil {
		return 0, apperr.Database(err)
	}
	count := 0
	for _, u := range users {
		if u.Role == models.RoleSuperAdmin {
			count++
		}
	}
	return count, nil
}

func (s *AdminService) audit(actorID int64, action, targetType, targetID, detail string) {
	entry := &models.ActivityLog{
		ActorID:    &actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Detail:     detail,
	}
	if err := s.activity.Record(entry); err != nil {
		s.log.WithError(err).WithField("action", action).Warn("failed to record activity")
	}
}
