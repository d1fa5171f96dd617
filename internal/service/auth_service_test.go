package service

import (
	"context"
	"testing"
	"time"

	"familytree/internal/apperr"
	"familytree/internal/models"
)

func newAuthFixture() (*AuthService, *fakeUserStore, *fakeInviteStore, *fakeEmailSender) {
	users := newFakeUserStore()
	invites := newFakeInviteStore()
	email := newFakeEmailSender()
	svc := NewAuthService(users, invites, &fakeActivityStore{}, email, time.Hour, testLogger())
	return svc, users, invites, email
}

func TestRegisterFirstUserBecomesSuperAdmin(t *testing.T) {
	svc, _, _, _ := newAuthFixture()

	session, user, err := svc.Register(context.Background(), "root@family.example", "a strong password", "Abdullah", "")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if user.Role != models.RoleSuperAdmin {
		t.Errorf("first user role = %q, want SUPER_ADMIN", user.Role)
	}
	if session.ID == "" {
		t.Error("no session created")
	}
}

func TestRegisterSecondUserRequiresInvite(t *testing.T) {
	svc, _, _, _ := newAuthFixture()
	mustRegisterFirst(t, svc)

	_, _, err := svc.Register(context.Background(), "cousin@family.example", "a strong password", "Fahad", "")
	appErr := apperr.As(err)
	if appErr == nil || appErr.Code != apperr.CodeForbidden {
		t.Fatalf("expected forbidden without invite, got %v", err)
	}
}

func TestRegisterWithInviteTakesRoleAndBranch(t *testing.T) {
	svc, _, invites, _ := newAuthFixture()
	mustRegisterFirst(t, svc)

	_, _ = invites.CreateInvite(&models.Invite{
		Code:      "invite-code",
		Email:     "leader@family.example",
		Role:      models.RoleBranchLeader,
		Branch:    "Riyadh",
		InvitedBy: 1,
		ExpiresAt: time.Now().Add(time.Hour),
	})

	_, user, err := svc.Register(context.Background(), "leader@family.example", "a strong password", "Fahad", "invite-code")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if user.Role != models.RoleBranchLeader {
		t.Errorf("role = %q, want BRANCH_LEADER", user.Role)
	}
	if user.AssignedBranch != "Riyadh" {
		t.Errorf("branch = %q, want Riyadh", user.AssignedBranch)
	}

	// The invite is consumed
	inv, _ := invites.GetInviteByCode("invite-code")
	if !inv.IsUsed() {
		t.Error("invite not marked used")
	}
}

func TestRegisterWithExpiredInvite(t *testing.T) {
	svc, _, invites, _ := newAuthFixture()
	mustRegisterFirst(t, svc)

	_, _ = invites.CreateInvite(&models.Invite{
		Code:      "stale",
		Role:      models.RoleMember,
		InvitedBy: 1,
		ExpiresAt: time.Now().Add(-time.Minute),
	})

	_, _, err := svc.Register(context.Background(), "late@family.example", "a strong password", "Late", "stale")
	appErr := apperr.As(err)
	if appErr == nil || appErr.Code != apperr.CodeValidation {
		t.Fatalf("expected validation error for expired invite, got %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _, _ := newAuthFixture()
	mustRegisterFirst(t, svc)

	_, _, err := svc.Register(context.Background(), "root@family.example", "a strong password", "Clone", "")
	appErr := apperr.As(err)
	if appErr == nil || appErr.Code != apperr.CodeConflict {
		t.Fatalf("expected conflict for duplicate email, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	svc, _, _, _ := newAuthFixture()
	mustRegisterFirst(t, svc)

	session, user, err := svc.Login("root@family.example", "a strong password")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if user.Email != "root@family.example" {
		t.Errorf("user email = %q", user.Email)
	}

	resolved, err := svc.Authenticate(session.ID)
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if resolved.ID != user.ID {
		t.Errorf("authenticated user %d, want %d", resolved.ID, user.ID)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _, _ := newAuthFixture()
	mustRegisterFirst(t, svc)

	_, _, err := svc.Login("root@family.example", "not the password")
	appErr := apperr.As(err)
	if appErr == nil || appErr.Code != apperr.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	// Unknown email gets the same answer
	_, _, err = svc.Login("nobody@family.example", "whatever pass")
	appErr = apperr.As(err)
	if appErr == nil || appErr.Code != apperr.CodeUnauthorized {
		t.Fatalf("expected unauthorized for unknown email, got %v", err)
	}
}

func TestAuthenticateExpiredSession(t *testing.T) {
	svc, users, _, _ := newAuthFixture()
	mustRegisterFirst(t, svc)

	expired := &models.Session{ID: "expired-session", UserID: 1, ExpiresAt: time.Now().Add(-time.Minute)}
	_ = users.CreateSession(expired)

	_, err := svc.Authenticate("expired-session")
	appErr := apperr.As(err)
	if appErr == nil || appErr.Code != apperr.CodeUnauthorized {
		t.Fatalf("expected unauthorized for expired session, got %v", err)
	}
	// The expired session is cleaned up on the way out
	if s, _ := users.GetSession("expired-session"); s != nil {
		t.Error("expired session not deleted")
	}
}

func TestPasswordResetFlow(t *testing.T) {
	svc, users, _, email := newAuthFixture()
	mustRegisterFirst(t, svc)

	if err := svc.RequestPasswordReset(context.Background(), "root@family.example"); err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if len(email.sent) != 2 { // welcome + reset
		t.Fatalf("emails sent = %d, want 2", len(email.sent))
	}

	var token string
	for tok := range users.tokens {
		token = tok
	}
	if token == "" {
		t.Fatal("no reset token stored")
	}

	// An active session exists before the reset
	session, _, err := svc.Login("root@family.example", "a strong password")
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.ResetPassword(token, "a brand new password"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	// Old sessions are revoked, old password stops working
	if _, err := svc.Authenticate(session.ID); err == nil {
		t.Error("old session survived password reset")
	}
	if _, _, err := svc.Login("root@family.example", "a strong password"); err == nil {
		t.Error("old password still accepted")
	}
	if _, _, err := svc.Login("root@family.example", "a brand new password"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}

	// The token is single use
	err = svc.ResetPassword(token, "yet another password")
	if apperr.As(err) == nil {
		t.Error("used token accepted again")
	}
}

func TestRequestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	svc, users, _, _ := newAuthFixture()

	if err := svc.RequestPasswordReset(context.Background(), "ghost@family.example"); err != nil {
		t.Fatalf("unknown email must not error: %v", err)
	}
	if len(users.tokens) != 0 {
		t.Error("token created for unknown email")
	}
}

func TestOAuthLoginCreatesMember(t *testing.T) {
	svc, _, _, _ := newAuthFixture()

	session, user, err := svc.OAuthLogin("google", "sub-123", "new@family.example", "New Person")
	if err != nil {
		t.Fatalf("oauth login failed: %v", err)
	}
	if user.Role != models.RoleMember {
		t.Errorf("oauth user role = %q, want MEMBER", user.Role)
	}
	if session.ID == "" {
		t.Error("no session created")
	}

	// Second login with the same identity resolves to the same user
	_, again, err := svc.OAuthLogin("google", "sub-123", "new@family.example", "")
	if err != nil {
		t.Fatalf("second oauth login failed: %v", err)
	}
	if again.ID != user.ID {
		t.Errorf("second login user %d, want %d", again.ID, user.ID)
	}
}

func TestOAuthLoginLinksExistingEmail(t *testing.T) {
	svc, users, _, _ := newAuthFixture()
	mustRegisterFirst(t, svc)

	_, user, err := svc.OAuthLogin("google", "sub-root", "root@family.example", "Abdullah")
	if err != nil {
		t.Fatalf("oauth login failed: %v", err)
	}
	if user.ID != 1 {
		t.Errorf("linked user %d, want existing 1", user.ID)
	}
	stored, _ := users.GetUserByID(1)
	if stored.OAuthProvider != "google" || stored.OAuthSubject != "sub-root" {
		t.Errorf("identity not linked: %q %q", stored.OAuthProvider, stored.OAuthSubject)
	}
}

func mustRegisterFirst(t *testing.T, svc *AuthService) {
	t.Helper()
	if _, _, err := svc.Register(context.Background(), "root@family.example", "a strong password", "Abdullah", ""); err != nil {
		t.Fatalf("setup register failed: %v", err)
	}
}
