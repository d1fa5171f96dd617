package models

import "time"

// User represents an account in the system
type User struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	Name           string    `json:"name"`
	Role           Role      `json:"role"`
	AssignedBranch string    `json:"assignedBranch,omitempty"`
	OAuthProvider  string    `json:"-"`
	OAuthSubject   string    `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Session represents an authenticated session, looked up by bearer token
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsExpired checks if the session has expired
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// PasswordResetToken represents a single-use token for password reset
type PasswordResetToken struct {
	Token     string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
	Used      bool
}

// IsExpired checks if the reset token has expired
func (t *PasswordResetToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// Invite lets an admin grant a role (optionally branch-scoped) by email
type Invite struct {
	ID          int64      `json:"id"`
	Code        string     `json:"code"`
	Email       string     `json:"email"`
	Role        Role       `json:"role"`
	Branch      string     `json:"branch,omitempty"`
	InvitedBy   int64      `json:"invitedBy"`
	InviterName string     `json:"inviterName,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UsedAt      *time.Time `json:"usedAt,omitempty"`
	UsedBy      *int64     `json:"usedBy,omitempty"`
	ExpiresAt   time.Time  `json:"expiresAt"`
}

func (i *Invite) IsExpired() bool {
	return time.Now().After(i.ExpiresAt)
}

func (i *Invite) IsUsed() bool {
	return i.UsedAt != nil
}

func (i *Invite) IsValid() bool {
	return !i.IsExpired() && !i.IsUsed()
}
