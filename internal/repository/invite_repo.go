package repository

import (
	"database/sql"
	"fmt"
	"time"

	"familytree/internal/database"
	"familytree/internal/models"
)

// InviteRepository handles database operations for invites
type InviteRepository struct {
	db *database.DB
}

// NewInviteRepository creates a new invite repository
func NewInviteRepository(db *database.DB) *InviteRepository {
	return &InviteRepository{db: db}
}

const inviteColumns = `i.id, i.code, i.email, i.role, COALESCE(i.branch, ''),
	i.invited_by, COALESCE(u.name, ''), i.created_at, i.used_at, i.used_by, i.expires_at`

func scanInvite(row rowScanner) (*models.Invite, error) {
	inv := &models.Invite{}
	var usedAt sql.NullTime
	var usedBy sql.NullInt64

	err := row.Scan(&inv.ID, &inv.Code, &inv.Email, &inv.Role, &inv.Branch,
		&inv.InvitedBy, &inv.InviterName, &inv.CreatedAt, &usedAt, &usedBy, &inv.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if usedAt.Valid {
		inv.UsedAt = &usedAt.Time
	}
	if usedBy.Valid {
		inv.UsedBy = &usedBy.Int64
	}
	return inv, nil
}

// CreateInvite stores a new invite
func (r *InviteRepository) CreateInvite(inv *models.Invite) (int64, error) {
	query := `
		INSERT INTO invites (code, email, role, branch, invited_by, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(query, inv.Code, inv.Email, string(inv.Role),
		nullIfEmpty(inv.Branch), inv.InvitedBy, inv.ExpiresAt)
	if err != nil {
		return 0, fmt.Errorf("failed to create invite: %w", err)
	}
	return id, nil
}

// GetInviteByCode retrieves an invite by its code, nil when not found
func (r *InviteRepository) GetInviteByCode(code string) (*models.Invite, error) {
	query := "SELECT " + inviteColumns + ` FROM invites i
		LEFT JOIN users u ON u.id = i.invited_by WHERE i.code = ?`
	inv, err := scanInvite(r.db.QueryRow(query, code))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}
	return inv, nil
}

// ListInvites retrieves all invites, newest first. Branch leaders pass their
// branch to see only their own.
func (r *InviteRepository) ListInvites(branch string) ([]models.Invite, error) {
	query := "SELECT " + inviteColumns + ` FROM invites i
		LEFT JOIN users u ON u.id = i.invited_by`
	args := []interface{}{}
	if branch != "" {
		query += " WHERE i.branch = ?"
		args = append(args, branch)
	}
	query += " ORDER BY i.created_at DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invites: %w", err)
	}
	defer rows.Close()

	var invites []models.Invite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invite: %w", err)
		}
		invites = append(invites, *inv)
	}
	return invites, rows.Err()
}

// MarkInviteUsed consumes an invite. Returns false when it was already used.
func (r *InviteRepository) MarkInviteUsed(code string, usedBy int64) (bool, error) {
	result, err := r.db.Exec(
		"UPDATE invites SET used_at = ?, used_by = ? WHERE code = ? AND used_at IS NULL",
		time.Now(), usedBy, code)
	if err != nil {
		return false, fmt.Errorf("failed to mark invite used: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// DeleteInvite removes an invite by id
func (r *InviteRepository) DeleteInvite(id int64) error {
	result, err := r.db.Exec("DELETE FROM invites WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete invite: %w", err)
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
