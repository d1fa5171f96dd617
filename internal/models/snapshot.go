package models

import "time"

// SnapshotType records how a snapshot came to exist
type SnapshotType string

const (
	SnapshotManual     SnapshotType = "MANUAL"
	SnapshotAutoBackup SnapshotType = "AUTO_BACKUP"
	SnapshotPreRestore SnapshotType = "PRE_RESTORE"
)

// Snapshot is an immutable point-in-time capture of the full member set.
// TreeData holds the serialized JSON array of all member rows at capture time.
type Snapshot struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	TreeData     string       `json:"-"`
	MemberCount  int          `json:"memberCount"`
	SnapshotType SnapshotType `json:"snapshotType"`
	S3Key        string       `json:"s3Key,omitempty"`
	CreatedBy    *int64       `json:"createdBy,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// Backup run outcomes recorded in BackupConfig
const (
	BackupRunOK     = "ok"
	BackupRunFailed = "failed"
)

// BackupConfig is the singleton row controlling automatic backups
type BackupConfig struct {
	Enabled       bool       `json:"enabled"`
	IntervalHours int        `json:"intervalHours"`
	MaxBackups    int        `json:"maxBackups"`
	RetentionDays int        `json:"retentionDays"`
	LastBackupAt  *time.Time `json:"lastBackupAt,omitempty"`
	LastStatus    string     `json:"lastStatus,omitempty"`
	LastError     string     `json:"lastError,omitempty"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// DefaultBackupConfig returns the configuration used when no row exists yet
func DefaultBackupConfig() *BackupConfig {
	return &BackupConfig{
		Enabled:       true,
		IntervalHours: 24,
		MaxBackups:    10,
		RetentionDays: 90,
	}
}

// BackupDocumentFormat identifies the downloadable backup file format
const BackupDocumentFormat = "AlShayeFamilyTree_Backup_v1"

// BackupDocument is the downloadable JSON backup file layout
type BackupDocument struct {
	SnapshotID   int64          `json:"snapshotId"`
	SnapshotName string         `json:"snapshotName"`
	Members      []FamilyMember `json:"members"`
	Metadata     BackupMetadata `json:"metadata"`
}

// BackupMetadata describes the export itself
type BackupMetadata struct {
	ExportedAt time.Time `json:"exportedAt"`
	Format     string    `json:"format"`
}
