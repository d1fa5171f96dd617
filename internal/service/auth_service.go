package service

import (
	"context"
	"time"

	"familytree/internal/apperr"
	"familytree/internal/logger"
	"familytree/internal/models"
	"familytree/internal/security"
	"familytree/internal/validation"
)

// UserStore is the user and session persistence surface
type UserStore interface {
	CreateUser(u *models.User) (int64, error)
	GetUserByID(id int64) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByOAuth(provider, subject string) (*models.User, error)
	ListUsers(branch string) ([]models.User, error)
	UpdateUserRole(id int64, role models.Role, branch string) error
	UpdateUserPassword(id int64, passwordHash string) error
	LinkOAuthIdentity(id int64, provider, subject string) error
	CountUsers() (int, error)
	CreateSession(s *models.Session) error
	GetSession(id string) (*models.Session, error)
	DeleteSession(id string) error
	DeleteUserSessions(userID int64) error
	DeleteExpiredSessions() (int64, error)
	CreateResetToken(t *models.PasswordResetToken) error
	GetResetToken(token string) (*models.PasswordResetToken, error)
	MarkResetTokenUsed(token string) (bool, error)
}

// InviteStore is the invite persistence surface
type InviteStore interface {
	CreateInvite(inv *models.Invite) (int64, error)
	GetInviteByCode(code string) (*models.Invite, error)
	ListInvites(branch string) ([]models.Invite, error)
	MarkInviteUsed(code string, usedBy int64) (bool, error)
	DeleteInvite(id int64) error
}

// EmailSender delivers transactional email
type EmailSender interface {
	IsEnabled() bool
	SendPasswordResetEmail(ctx context.Context, toEmail, toName, resetToken string) error
	SendWelcomeEmail(ctx context.Context, toEmail, toName string) error
	SendInviteEmail(ctx context.Context, toEmail, inviterName, code string) error
	SendBroadcastEmail(ctx context.Context, toEmail, title, body string) error
}

// AuthService handles registration, login, sessions and password reset
type AuthService struct {
	users           UserStore
	invites         InviteStore
	activity        ActivityStore
	email           EmailSender
	sessionDuration time.Duration
	log             *logger.Logger
	now             func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(users UserStore, invites InviteStore, activity ActivityStore, email EmailSender, sessionDuration time.Duration, log *logger.Logger) *AuthService {
	return &AuthService{
		users:           users,
		invites:         invites,
		activity:        activity,
		email:           email,
		sessionDuration: sessionDuration,
		log:             log,
		now:             time.Now,
	}
}

func invalidCredentials() error {
	return apperr.Unauthorized("Invalid email or password", "البريد الإلكتروني أو كلمة المرور غير صحيحة")
}

// Register creates a new account. The very first account becomes the super
// admin; everyone after that needs a valid invite code, which fixes their
// role and branch.
func (s *AuthService) Register(ctx context.Context, email, password, name, inviteCode string) (*models.Session, *models.User, error) {
	if err := validation.ValidateEmail(email); err != nil {
		return nil, nil, apperr.Validation(err.Error(), "البريد الإلكتروني غير صالح")
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, nil, apperr.Validation(err.Error(), "كلمة المرور غير صالحة")
	}
	if err := validation.ValidateName(name); err != nil {
		return nil, nil, apperr.Validation(err.Error(), "الاسم غير صالح")
	}

	existing, err := s.users.GetUserByEmail(email)
	if err != nil {
		return nil, nil, apperr.Database(err)
	}
	if existing != nil {
		return nil, nil, apperr.Conflict("Email already registered", "البريد الإلكتروني مسجل بالفعل")
	}

	count, err := s.users.CountUsers()
	if err != nil {
		return nil, nil, apperr.Database(err)
	}

	role := models.RoleMember
	branch := ""
	var invite *models.Invite
	if count == 0 {
		role = models.RoleSuperAdmin
	} else {
		if inviteCode == "" {
			return nil, nil, apperr.Forbidden("An invite code is required to register", "رمز الدعوة مطلوب للتسجيل")
		}
		invite, err = s.invites.GetInviteByCode(inviteCode)
		if err != nil {
			return nil, nil, apperr.Database(err)
		}
		if invite == nil || !invite.IsValid() {
			return nil, nil, apperr.Validation("Invite code is invalid or expired", "رمز الدعوة غير صالح أو منتهي")
		}
		role = invite.Role
		branch = invite.Branch
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return nil, nil, apperr.Internal(err)
	}

	user := &models.User{
		Email:          email,
		PasswordHash:   passwordHash,
		Name:           name,
		Role:           role,
		AssignedBranch: branch,
	}
	userID, err := s.users.CreateUser(user)
	if err != nil {
		return nil, nil, apperr.Database(err)
	}
	user.ID = userID

	if invite != nil {
		used, err := s.invites.MarkInviteUsed(invite.Code, userID)
		if err != nil {
			return nil, nil, apperr.Database(err)
		}
		if !used {
			return nil, nil, apperr.Conflict("Invite code has already been used", "رمز الدعوة مستخدم بالفعل")
		}
	}

	if s.email != nil && s.email.IsEnabled() {
		if err := s.email.SendWelcomeEmail(ctx, user.Email, user.Name); err != nil {
			s.log.WithError(err).WithField("email", user.Email).Warn("failed to send welcome email")
		}
	}

	session, err := s.createSession(userID)
	if err != nil {
		return nil, nil, err
	}
	s.log.WithField("user_id", userID).WithField("role", role).Info("user registered")
	return session, user, nil
}

// Login authenticates a user and creates a session
func (s *AuthService) Login(email, password string) (*models.Session, *models.User, error) {
	user, err := s.users.GetUserByEmail(email)
	if err != nil {
		return nil, nil, apperr.Database(err)
	}
	if user == nil || user.PasswordHash == "" {
		return nil, nil, invalidCredentials()
	}
	if !security.CheckPassword(password, user.PasswordHash) {
		return nil, nil, invalidCredentials()
	}

	session, err := s.createSession(user.ID)
	if err != nil {
		return nil, nil, err
	}
	return session, user, nil
}

// OAuthLogin authenticates or creates an account from a verified provider
// identity. New accounts get the MEMBER role; roles are only granted through
// invites or an admin.
func (s *AuthService) OAuthLogin(provider, subject, email, name string) (*models.Session, *models.User, error) {
	if provider == "" || subject == "" {
		return nil, nil, apperr.Validation("Missing provider identity", "هوية مزود الخدمة مفقودة")
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, nil, apperr.Validation(err.Error(), "البريد الإلكتروني غير صالح")
	}

	user, err := s.users.GetUserByOAuth(provider, subject)
	if err != nil {
		return nil, nil, apperr.Database(err)
	}

	if user == nil {
		existing, err := s.users.GetUserByEmail(email)
		if err != nil {
			return nil, nil, apperr.Database(err)
		}
		if existing != nil {
			if existing.OAuthProvider != "" && existing.OAuthProvider != provider {
				return nil, nil, apperr.Conflict("Email is linked to another sign-in provider", "البريد الإلكتروني مرتبط بمزود تسجيل دخول آخر")
			}
			if err := s.users.LinkOAuthIdentity(existing.ID, provider, subject); err != nil {
				return nil, nil, apperr.Database(err)
			}
			user = existing
		} else {
			if name == "" {
				name = email
			}
			user = &models.User{
				Email:         email,
				Name:          name,
				Role:          models.RoleMember,
				OAuthProvider: provider,
				OAuthSubject:  subject,
			}
			userID, err := s.users.CreateUser(user)
			if err != nil {
				return nil, nil, apperr.Database(err)
			}
			user.ID = userID
			s.log.WithField("user_id", userID).WithField("provider", provider).Info("oauth user created")
		}
	}

	session, err := s.createSession(user.ID)
	if err != nil {
		return nil, nil, err
	}
	return session, user, nil
}

// Authenticate resolves a bearer token to its user
func (s *AuthService) Authenticate(token string) (*models.User, error) {
	if token == "" {
		return nil, apperr.Unauthorized("Authentication required", "المصادقة مطلوبة")
	}

	session, err := s.users.GetSession(token)
	if err != nil {
		return nil, apperr.Database(err)
	}
	if session == nil {
		return nil, apperr.Unauthorized("Invalid session", "الجلسة غير صالحة")
	}
	if session.IsExpired() {
		_ = s.users.DeleteSession(token)
		return nil, apperr.Unauthorized("Session expired", "انتهت صلاحية الجلسة")
	}

	user, err := s.users.GetUserByID(session.UserID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	if user == nil {
		return nil, apperr.Unauthorized("Invalid session", "الجلسة غير صالحة")
	}
	return user, nil
}

// Logout invalidates a session
func (s *AuthService) Logout(token string) error {
	if err := s.users.DeleteSession(token); err != nil {
		return apperr.Database(err)
	}
	return nil
}

// RequestPasswordReset issues a reset token and emails it. It never reveals
// whether the address exists.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(email)
	if err != nil {
		return apperr.Database(err)
	}
	if user == nil {
		return nil
	}
	if user.PasswordHash == "" && user.OAuthProvider != "" {
		return nil
	}

	token, err := security.GenerateSecureToken(32)
	if err != nil {
		return apperr.Internal(err)
	}
	resetToken := &models.PasswordResetToken{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: s.now().Add(time.Hour),
	}
	if err := s.users.CreateResetToken(resetToken); err != nil {
		return apperr.Database(err)
	}

	if s.email != nil && s.email.IsEnabled() {
		if err := s.email.SendPasswordResetEmail(ctx, user.Email, user.Name, token); err != nil {
			return apperr.External("Failed to send reset email", "فشل إرسال بريد إعادة التعيين", err)
		}
	}
	return nil
}

// ResetPassword redeems a reset token. The token is consumed with a
// conditional update so it can only ever be redeemed once, and all of the
// user's sessions are revoked.
func (s *AuthService) ResetPassword(token, newPassword string) error {
	if err := validation.ValidatePassword(newPassword); err != nil {
		return apperr.Validation(err.Error(), "كلمة المرور غير صالحة")
	}

	resetToken, err := s.users.GetResetToken(token)
	if err != nil {
		return apperr.Database(err)
	}
	if resetToken == nil || resetToken.Used || resetToken.IsExpired() {
		return apperr.Validation("Reset link is invalid or expired", "رابط إعادة التعيين غير صالح أو منتهي")
	}

	consumed, err := s.users.MarkResetTokenUsed(token)
	if err != nil {
		return apperr.Database(err)
	}
	if !consumed {
		return apperr.Validation("Reset link is invalid or expired", "رابط إعادة التعيين غير صالح أو منتهي")
	}

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := s.users.UpdateUserPassword(resetToken.UserID, passwordHash); err != nil {
		return apperr.Database(err)
	}
	if err := s.users.DeleteUserSessions(resetToken.UserID); err != nil {
		s.log.WithError(err).WithField("user_id", resetToken.UserID).Warn("failed to revoke sessions after reset")
	}

	s.audit(resetToken.UserID, models.ActionPasswordReset, "user", "")
	return nil
}

// CleanupExpiredSessions removes expired sessions. Called by the scheduler.
func (s *AuthService) CleanupExpiredSessions() (int64, error) {
	return s.users.DeleteExpiredSessions()
}

func (s *AuthService) createSession(userID int64) (*models.Session, error) {
	session := &models.Session{
		ID:        security.GenerateSessionID(),
		UserID:    userID,
		ExpiresAt: s.now().Add(s.sessionDuration),
	}
	if err := s.users.CreateSession(session); err != nil {
		return nil, apperr.Database(err)
	}
	return session, nil
}

func (s *AuthService) audit(actorID int64, action, targetType, detail string) {
	entry := &models.ActivityLog{
		ActorID:    &actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   "",
		Detail:     detail,
	}
	if err := s.activity.Record(entry); err != nil {
		s.log.WithError(err).WithField("action", action).Warn("failed to record activity")
	}
}
