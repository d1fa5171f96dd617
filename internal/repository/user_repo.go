package repository

import (
	"database/sql"
	"fmt"
	"time"

	"familytree/internal/database"
	"familytree/internal/models"
)

// UserRepository handles database operations for users and sessions
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, COALESCE(password_hash, ''), name, role,
	COALESCE(assigned_branch, ''), COALESCE(oauth_provider, ''), COALESCE(oauth_subject, ''),
	created_at, updated_at`

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role,
		&u.AssignedBranch, &u.OAuthProvider, &u.OAuthSubject,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// CreateUser inserts a new user account
func (r *UserRepository) CreateUser(u *models.User) (int64, error) {
	query := `
		INSERT INTO users (email, password_hash, name, role, assigned_branch, oauth_provider, oauth_subject)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(query,
		u.Email, nullIfEmpty(u.PasswordHash), u.Name, string(u.Role),
		nullIfEmpty(u.AssignedBranch), nullIfEmpty(u.OAuthProvider), nullIfEmpty(u.OAuthSubject))
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return id, nil
}

// GetUserByID retrieves a user by id, nil when not found
func (r *UserRepository) GetUserByID(id int64) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE id = ?"
	u, err := scanUser(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetUserByEmail retrieves a user by email, nil when not found
func (r *UserRepository) GetUserByEmail(email string) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE email = ?"
	u, err := scanUser(r.db.QueryRow(query, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

// GetUserByOAuth retrieves a user by provider and subject, nil when not found
func (r *UserRepository) GetUserByOAuth(provider, subject string) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE oauth_provider = ? AND oauth_subject = ?"
	u, err := scanUser(r.db.QueryRow(query, provider, subject))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by oauth identity: %w", err)
	}
	return u, nil
}

// ListUsers retrieves all users, optionally filtered by assigned branch
func (r *UserRepository) ListUsers(branch string) ([]models.User, error) {
	query := "SELECT " + userColumns + " FROM users"
	args := []interface{}{}
	if branch != "" {
		query += " WHERE assigned_branch = ?"
		args = append(args, branch)
	}
	query += " ORDER BY created_at"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateUserRole changes a user's role and assigned branch
func (r *UserRepository) UpdateUserRole(id int64, role models.Role, branch string) error {
	query := "UPDATE users SET role = ?, assigned_branch = ?, updated_at = ? WHERE id = ?"
	result, err := r.db.Exec(query, string(role), nullIfEmpty(branch), time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update user role: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateUserPassword replaces a user's password hash
func (r *UserRepository) UpdateUserPassword(id int64, passwordHash string) error {
	query := "UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?"
	result, err := r.db.Exec(query, passwordHash, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// LinkOAuthIdentity records a provider identity on an existing user
func (r *UserRepository) LinkOAuthIdentity(id int64, provider, subject string) error {
	query := "UPDATE users SET oauth_provider = ?, oauth_subject = ?, updated_at = ? WHERE id = ?"
	_, err := r.db.Exec(query, provider, subject, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to link oauth identity: %w", err)
	}
	return nil
}

// CountUsers returns the total number of user accounts
func (r *UserRepository) CountUsers() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// CreateSession stores a new session
func (r *UserRepository) CreateSession(s *models.Session) error {
	query := "INSERT INTO sessions (id, user_id, expires_at) VALUES (?, ?, ?)"
	if _, err := r.db.Exec(query, s.ID, s.UserID, s.ExpiresAt); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by id, nil when not found
func (r *UserRepository) GetSession(id string) (*models.Session, error) {
	s := &models.Session{}
	query := "SELECT id, user_id, expires_at, created_at FROM sessions WHERE id = ?"
	err := r.db.QueryRow(query, id).Scan(&s.ID, &s.UserID, &s.ExpiresAt, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// DeleteSession removes a single session
func (r *UserRepository) DeleteSession(id string) error {
	_, err := r.db.Exec("DELETE FROM sessions WHERE id = ?", id)
	return err
}

// DeleteUserSessions removes every session for a user. Called after a
// password reset so stolen tokens stop working.
func (r *UserRepository) DeleteUserSessions(userID int64) error {
	_, err := r.db.Exec("DELETE FROM sessions WHERE user_id = ?", userID)
	return err
}

// DeleteExpiredSessions removes sessions past their expiry
func (r *UserRepository) DeleteExpiredSessions() (int64, error) {
	result, err := r.db.Exec("DELETE FROM sessions WHERE expires_at < ?", time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return result.RowsAffected()
}

// CreateResetToken stores a password reset token
func (r *UserRepository) CreateResetToken(t *models.PasswordResetToken) error {
	query := "INSERT INTO password_reset_tokens (token, user_id, expires_at) VALUES (?, ?, ?)"
	if _, err := r.db.Exec(query, t.Token, t.UserID, t.ExpiresAt); err != nil {
		return fmt.Errorf("failed to create reset token: %w", err)
	}
	return nil
}

// GetResetToken retrieves a reset token, nil when not found
func (r *UserRepository) GetResetToken(token string) (*models.PasswordResetToken, error) {
	t := &models.PasswordResetToken{}
	query := "SELECT token, user_id, expires_at, created_at, used FROM password_reset_tokens WHERE token = ?"
	err := r.db.QueryRow(query, token).Scan(&t.Token, &t.UserID, &t.ExpiresAt, &t.CreatedAt, &t.Used)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reset token: %w", err)
	}
	return t, nil
}

// MarkResetTokenUsed consumes a reset token. Returns false when the token
// was already used, so a token can never be redeemed twice.
func (r *UserRepository) MarkResetTokenUsed(token string) (bool, error) {
	result, err := r.db.Exec("UPDATE password_reset_tokens SET used = ? WHERE token = ? AND used = ?", true, token, false)
	if err != nil {
		return false, fmt.Errorf("failed to mark reset token used: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}
