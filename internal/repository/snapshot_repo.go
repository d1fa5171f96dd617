package repository

import (
	"database/sql"
	"fmt"
	"time"

	"familytree/internal/database"
	"familytree/internal/models"
)

// SnapshotRepository handles database operations for snapshots
type SnapshotRepository struct {
	db *database.DB
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *database.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

const snapshotColumns = `id, name, tree_data, member_count, snapshot_type, COALESCE(s3_key, ''), created_by, created_at`

func scanSnapshot(row rowScanner) (*models.Snapshot, error) {
	s := &models.Snapshot{}
	var createdBy sql.NullInt64

	err := row.Scan(&s.ID, &s.Name, &s.TreeData, &s.MemberCount,
		&s.SnapshotType, &s.S3Key, &createdBy, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	if createdBy.Valid {
		s.CreatedBy = &createdBy.Int64
	}
	return s, nil
}

// CreateSnapshot inserts a new snapshot row
func (r *SnapshotRepository) CreateSnapshot(s *models.Snapshot) (int64, error) {
	query := `
		INSERT INTO snapshots (name, tree_data, member_count, snapshot_type, s3_key, created_by)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(query, s.Name, s.TreeData, s.MemberCount,
		string(s.SnapshotType), nullIfEmpty(s.S3Key), nullableInt64(s.CreatedBy))
	if err != nil {
		return 0, fmt.Errorf("failed to create snapshot: %w", err)
	}
	return id, nil
}

// GetSnapshot retrieves a snapshot by id, nil when not found
func (r *SnapshotRepository) GetSnapshot(id int64) (*models.Snapshot, error) {
	query := "SELECT " + snapshotColumns + " FROM snapshots WHERE id = ?"
	s, err := scanSnapshot(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return s, nil
}

// ListSnapshots retrieves all snapshots without tree data, newest first
func (r *SnapshotRepository) ListSnapshots() ([]models.Snapshot, error) {
	query := `
		SELECT id, name, member_count, snapshot_type, COALESCE(s3_key, ''), created_by, created_at
		FROM snapshots
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []models.Snapshot
	for rows.Next() {
		var s models.Snapshot
		var createdBy sql.NullInt64
		if err := rows.Scan(&s.ID, &s.Name, &s.MemberCount, &s.SnapshotType,
			&s.S3Key, &createdBy, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		if createdBy.Valid {
			s.CreatedBy = &createdBy.Int64
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// LatestAutoBackup returns the newest AUTO_BACKUP snapshot, nil when none exists
func (r *SnapshotRepository) LatestAutoBackup() (*models.Snapshot, error) {
	query := "SELECT " + snapshotColumns + ` FROM snapshots
		WHERE snapshot_type = ? ORDER BY created_at DESC LIMIT 1`
	s, err := scanSnapshot(r.db.QueryRow(query, string(models.SnapshotAutoBackup)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest auto backup: %w", err)
	}
	return s, nil
}

// DeleteSnapshot removes a snapshot by id
func (r *SnapshotRepository) DeleteSnapshot(id int64) error {
	result, err := r.db.Exec("DELETE FROM snapshots WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
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

// ListAutoBackupIDs returns the ids of all AUTO_BACKUP snapshots, newest first
func (r *SnapshotRepository) ListAutoBackupIDs() ([]int64, error) {
	query := "SELECT id FROM snapshots WHERE snapshot_type = ? ORDER BY created_at DESC"
	rows, err := r.db.Query(query, string(models.SnapshotAutoBackup))
	if err != nil {
		return nil, fmt.Errorf("failed to query auto backups: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteAutoBackupsOlderThan removes AUTO_BACKUP snapshots created before the cutoff
func (r *SnapshotRepository) DeleteAutoBackupsOlderThan(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec("DELETE FROM snapshots WHERE snapshot_type = ? AND created_at < ?",
		string(models.SnapshotAutoBackup), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old auto backups: %w", err)
	}
	return result.RowsAffected()
}
