package repository

import (
	"database/sql"
	"fmt"
	"time"

	"familytree/internal/database"
	"familytree/internal/models"
)

// BroadcastRepository handles database operations for broadcasts and RSVPs
type BroadcastRepository struct {
	db *database.DB
}

// NewBroadcastRepository creates a new broadcast repository
func NewBroadcastRepository(db *database.DB) *BroadcastRepository {
	return &BroadcastRepository{db: db}
}

const broadcastColumns = `id, title, body, scheduled_at, sent_at, sent_count, failed_count, created_by, created_at`

func scanBroadcast(row rowScanner) (*models.Broadcast, error) {
	b := &models.Broadcast{}
	var scheduledAt, sentAt sql.NullTime

	err := row.Scan(&b.ID, &b.Title, &b.Body, &scheduledAt, &sentAt,
		&b.SentCount, &b.FailedCount, &b.CreatedBy, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	if scheduledAt.Valid {
		b.ScheduledAt = &scheduledAt.Time
	}
	if sentAt.Valid {
		b.SentAt = &sentAt.Time
	}
	return b, nil
}

// CreateBroadcast inserts a new broadcast
func (r *BroadcastRepository) CreateBroadcast(b *models.Broadcast) (int64, error) {
	query := `
		INSERT INTO broadcasts (title, body, scheduled_at, created_by)
		VALUES (?, ?, ?, ?)
	`
	var scheduledAt interface{}
	if b.ScheduledAt != nil {
		scheduledAt = *b.ScheduledAt
	}
	id, err := r.db.ExecReturningID(query, b.Title, b.Body, scheduledAt, b.CreatedBy)
	if err != nil {
		return 0, fmt.Errorf("failed to create broadcast: %w", err)
	}
	return id, nil
}

// GetBroadcast retrieves a broadcast by id, nil when not found
func (r *BroadcastRepository) GetBroadcast(id int64) (*models.Broadcast, error) {
	query := "SELECT " + broadcastColumns + " FROM broadcasts WHERE id = ?"
	b, err := scanBroadcast(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get broadcast: %w", err)
	}
	return b, nil
}

// ListBroadcasts retrieves all broadcasts, newest first
func (r *BroadcastRepository) ListBroadcasts() ([]models.Broadcast, error) {
	query := "SELECT " + broadcastColumns + " FROM broadcasts ORDER BY created_at DESC"
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query broadcasts: %w", err)
	}
	defer rows.Close()

	var broadcasts []models.Broadcast
	for rows.Next() {
		b, err := scanBroadcast(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan broadcast: %w", err)
		}
		broadcasts = append(broadcasts, *b)
	}
	return broadcasts, rows.Err()
}

// ListDue retrieves unsent broadcasts whose scheduled time has passed,
// plus unscheduled ones awaiting immediate dispatch.
func (r *BroadcastRepository) ListDue(now time.Time) ([]models.Broadcast, error) {
	query := "SELECT " + broadcastColumns + ` FROM broadcasts
		WHERE sent_at IS NULL AND (scheduled_at IS NULL OR scheduled_at <= ?)
		ORDER BY created_at`
	rows, err := r.db.Query(query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due broadcasts: %w", err)
	}
	defer rows.Close()

	var due []models.Broadcast
	for rows.Next() {
		b, err := scanBroadcast(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan broadcast: %w", err)
		}
		due = append(due, *b)
	}
	return due, rows.Err()
}

// MarkSent records the dispatch outcome. The sent_at IS NULL guard keeps a
// broadcast from being dispatched twice by overlapping scheduler ticks.
func (r *BroadcastRepository) MarkSent(id int64, sentCount, failedCount int, at time.Time) (bool, error) {
	result, err := r.db.Exec(
		"UPDATE broadcasts SET sent_at = ?, sent_count = ?, failed_count = ? WHERE id = ? AND sent_at IS NULL",
		at, sentCount, failedCount, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark broadcast sent: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// DeleteBroadcast removes a broadcast and its RSVPs
func (r *BroadcastRepository) DeleteBroadcast(id int64) error {
	if _, err := r.db.Exec("DELETE FROM broadcast_rsvps WHERE broadcast_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete broadcast rsvps: %w", err)
	}
	result, err := r.db.Exec("DELETE FROM broadcasts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete broadcast: %w", err)
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

// UpsertRSVP records a user's response, replacing any earlier one
func (r *BroadcastRepository) UpsertRSVP(broadcastID, userID int64, response models.RSVPResponse) error {
	now := time.Now()
	result, err := r.db.Exec(
		"UPDATE broadcast_rsvps SET response = ?, updated_at = ? WHERE broadcast_id = ? AND user_id = ?",
		string(response), now, broadcastID, userID)
	if err != nil {
		return fmt.Errorf("failed to update rsvp: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		_, err = r.db.Exec(
			"INSERT INTO broadcast_rsvps (broadcast_id, user_id, response, updated_at) VALUES (?, ?, ?, ?)",
			broadcastID, userID, string(response), now)
		if err != nil {
			return fmt.Errorf("failed to insert rsvp: %w", err)
		}
	}
	return nil
}

// ListRSVPs retrieves all responses for a broadcast with user names
func (r *BroadcastRepository) ListRSVPs(broadcastID int64) ([]models.BroadcastRSVP, error) {
	query := `
		SELECT r.broadcast_id, r.user_id, COALESCE(u.name, ''), r.response, r.updated_at
		FROM broadcast_rsvps r
		LEFT JOIN users u ON u.id = r.user_id
		WHERE r.broadcast_id = ?
		ORDER BY r.updated_at
	`
	rows, err := r.db.Query(query, broadcastID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rsvps: %w", err)
	}
	defer rows.Close()

	var rsvps []models.BroadcastRSVP
	for rows.Next() {
		var rsvp models.BroadcastRSVP
		if err := rows.Scan(&rsvp.BroadcastID, &rsvp.UserID, &rsvp.UserName,
			&rsvp.Response, &rsvp.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rsvp: %w", err)
		}
		rsvps = append(rsvps, rsvp)
	}
	return rsvps, rows.Err()
}

// SummarizeRSVPs aggregates responses for a broadcast
func (r *BroadcastRepository) SummarizeRSVPs(broadcastID int64) (*models.RSVPSummary, error) {
	query := "SELECT response, COUNT(*) FROM broadcast_rsvps WHERE broadcast_id = ? GROUP BY response"
	rows, err := r.db.Query(query, broadcastID)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize rsvps: %w", err)
	}
	defer rows.Close()

	summary := &models.RSVPSummary{}
	for rows.Next() {
		var response string
		var count int
		if err := rows.Scan(&response, &count); err != nil {
			return nil, err
		}
		switch models.RSVPResponse(response) {
		case models.RSVPYes:
			summary.Yes = count
		case models.RSVPNo:
			summary.No = count
		case models.RSVPMaybe:
			summary.Maybe = count
		}
	}
	return summary, rows.Err()
}
