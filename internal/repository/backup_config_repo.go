package repository

import (
	"database/sql"
	"fmt"
	"time"

	"familytree/internal/database"
	"familytree/internal/models"
)

// BackupConfigRepository handles the singleton backup configuration row
type BackupConfigRepository struct {
	db *database.DB
}

// NewBackupConfigRepository creates a new backup config repository
func NewBackupConfigRepository(db *database.DB) *BackupConfigRepository {
	return &BackupConfigRepository{db: db}
}

// GetConfig returns the stored configuration, or the defaults when no row
// has been written yet.
func (r *BackupConfigRepository) GetConfig() (*models.BackupConfig, error) {
	cfg := &models.BackupConfig{}
	var lastBackupAt sql.NullTime
	var lastStatus, lastError sql.NullString

	query := `SELECT enabled, interval_hours, max_backups, retention_days,
		last_backup_at, last_status, last_error, updated_at
		FROM backup_config WHERE id = 1`
	err := r.db.QueryRow(query).Scan(&cfg.Enabled, &cfg.IntervalHours,
		&cfg.MaxBackups, &cfg.RetentionDays, &lastBackupAt, &lastStatus,
		&lastError, &cfg.UpdatedAt)
	if err == sql.ErrNoRows {
		return models.DefaultBackupConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get backup config: %w", err)
	}

	if lastBackupAt.Valid {
		cfg.LastBackupAt = &lastBackupAt.Time
	}
	cfg.LastStatus = lastStatus.String
	cfg.LastError = lastError.String
	return cfg, nil
}

// UpdateConfig writes the configuration, creating the row if needed
func (r *BackupConfigRepository) UpdateConfig(cfg *models.BackupConfig) error {
	result, err := r.db.Exec(`UPDATE backup_config
		SET enabled = ?, interval_hours = ?, max_backups = ?, retention_days = ?, updated_at = ?
		WHERE id = 1`,
		cfg.Enabled, cfg.IntervalHours, cfg.MaxBackups, cfg.RetentionDays, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update backup config: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		_, err = r.db.Exec(`INSERT INTO backup_config (id, enabled, interval_hours, max_backups, retention_days)
			VALUES (1, ?, ?, ?, ?)`,
			cfg.Enabled, cfg.IntervalHours, cfg.MaxBackups, cfg.RetentionDays)
		if err != nil {
			return fmt.Errorf("failed to insert backup config: %w", err)
		}
	}
	return nil
}

// RecordRun stores the outcome of a backup attempt
func (r *BackupConfigRepository) RecordRun(status, errMsg string, at time.Time) error {
	result, err := r.db.Exec(`UPDATE backup_config
		SET last_backup_at = ?, last_status = ?, last_error = ?, updated_at = ?
		WHERE id = 1`,
		at, status, nullIfEmpty(errMsg), time.Now())
	if err != nil {
		return fmt.Errorf("failed to record backup run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		defaults := models.DefaultBackupConfig()
		_, err = r.db.Exec(`INSERT INTO backup_config (id, enabled, interval_hours, max_backups, retention_days, last_backup_at, last_status, last_error)
			VALUES (1, ?, ?, ?, ?, ?, ?, ?)`,
			defaults.Enabled, defaults.IntervalHours, defaults.MaxBackups, defaults.RetentionDays,
			at, status, nullIfEmpty(errMsg))
		if err != nil {
			return fmt.Errorf("failed to insert backup run record: %w", err)
		}
	}
	return nil
}
