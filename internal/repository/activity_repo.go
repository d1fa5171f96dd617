package repository

import (
	"database/sql"
	"fmt"

	"familytree/internal/database"
	"familytree/internal/models"
)

// ActivityRepository handles the append-only audit log
type ActivityRepository struct {
	db *database.DB
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *database.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Record appends an audit entry
func (r *ActivityRepository) Record(entry *models.ActivityLog) error {
	query := `
		INSERT INTO activity_logs (actor_id, action, target_type, target_id, detail)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, nullableInt64(entry.ActorID), entry.Action,
		entry.TargetType, entry.TargetID, nullIfEmpty(entry.Detail))
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// List retrieves recent audit entries, newest first
func (r *ActivityRepository) List(limit int) ([]models.ActivityLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `
		SELECT id, actor_id, action, target_type, target_id, COALESCE(detail, ''), created_at
		FROM activity_logs
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity logs: %w", err)
	}
	defer rows.Close()

	var entries []models.ActivityLog
	for rows.Next() {
		var e models.ActivityLog
		var actorID sql.NullInt64
		if err := rows.Scan(&e.ID, &actorID, &e.Action, &e.TargetType,
			&e.TargetID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity log: %w", err)
		}
		if actorID.Valid {
			e.ActorID = &actorID.Int64
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
