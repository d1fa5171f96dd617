package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"familytree/internal/apperr"
	"familytree/internal/logger"
	"familytree/internal/models"
)

// SnapshotStore is the snapshot persistence surface
type SnapshotStore interface {
	CreateSnapshot(s *models.Snapshot) (int64, error)
	GetSnapshot(id int64) (*models.Snapshot, error)
	ListSnapshots() ([]models.Snapshot, error)
	LatestAutoBackup() (*models.Snapshot, error)
	DeleteSnapshot(id int64) error
	ListAutoBackupIDs() ([]int64, error)
	DeleteAutoBackupsOlderThan(cutoff time.Time) (int64, error)
}

// BackupConfigStore is the backup configuration persistence surface
type BackupConfigStore interface {
	GetConfig() (*models.BackupConfig, error)
	UpdateConfig(cfg *models.BackupConfig) error
	RecordRun(status, errMsg string, at time.Time) error
}

// SnapshotUploader copies snapshot documents to off-site storage
type SnapshotUploader interface {
	Upload(ctx context.Context, key string, data []byte) error
}

// SnapshotMetrics records snapshot outcomes
type SnapshotMetrics interface {
	RecordSnapshot(snapshotType, result string)
}

// SnapshotService handles snapshot capture, retention, restore and export
type SnapshotService struct {
	snapshots SnapshotStore
	members   MemberStore
	config    BackupConfigStore
	activity  ActivityStore
	uploader  SnapshotUploader
	metrics   SnapshotMetrics
	log       *logger.Logger
	now       func() time.Time
}

// NewSnapshotService creates a new snapshot service. uploader and metrics
// may be nil when off-site copies or instrumentation are not configured.
func NewSnapshotService(snapshots SnapshotStore, members MemberStore, config BackupConfigStore, activity ActivityStore, uploader SnapshotUploader, metrics SnapshotMetrics, log *logger.Logger) *SnapshotService {
	return &SnapshotService{
		snapshots: snapshots,
		members:   members,
		config:    config,
		activity:  activity,
		uploader:  uploader,
		metrics:   metrics,
		log:       log,
		now:       time.Now,
	}
}

// CreateSnapshot captures the full member set under the given name and type
func (s *SnapshotService) CreateSnapshot(ctx context.Context, name string, snapshotType models.SnapshotType, createdBy *int64) (*models.Snapshot, error) {
	if name == "" {
		name = fmt.Sprintf("%s %s", snapshotType, s.now().Format("2006-01-02 15:04"))
	}

	members, err := s.members.ListMembers("")
	if err != nil {
		s.recordMetric(snapshotType, "failed")
		return nil, apperr.Database(err)
	}
	if members == nil {
		members = []models.FamilyMember{}
	}

	treeData, err := json.Marshal(members)
	if err != nil {
		s.recordMetric(snapshotType, "failed")
		return nil, apperr.Internal(err)
	}

	snapshot := &models.Snapshot{
		Name:         name,
		TreeData:     string(treeData),
		MemberCount:  len(members),
		SnapshotType: snapshotType,
		CreatedBy:    createdBy,
	}

	if s.uploader != nil {
		key := fmt.Sprintf("snapshots/%s/%s.json", snapshotType, s.now().Format("20060102T150405"))
		if err := s.uploader.Upload(ctx, key, treeData); err != nil {
			// Off-site copy is best effort, the local snapshot still counts
			s.log.WithError(err).WithField("s3_key", key).Warn("failed to upload snapshot copy")
		} else {
			snapshot.S3Key = key
		}
	}

	id, err := s.snapshots.CreateSnapshot(snapshot)
	if err != nil {
		s.recordMetric(snapshotType, "failed")
		return nil, apperr.Database(err)
	}
	snapshot.ID = id
	snapshot.CreatedAt = s.now()

	s.recordMetric(snapshotType, "ok")
	s.log.WithField("snapshot_id", id).WithField("type", snapshotType).
		WithField("member_count", snapshot.MemberCount).Info("snapshot created")

	if createdBy != nil {
		s.auditWith(createdBy, models.ActionSnapshotCreated, fmt.Sprintf("%d", id), name)
	}
	return snapshot, nil
}

// ListSnapshots returns snapshot metadata, newest first
func (s *SnapshotService) ListSnapshots() ([]models.Snapshot, error) {
	snapshots, err := s.snapshots.ListSnapshots()
	if err != nil {
		return nil, apperr.Database(err)
	}
	return snapshots, nil
}

// GetSnapshot retrieves a snapshot including its tree data
func (s *SnapshotService) GetSnapshot(id int64) (*models.Snapshot, error) {
	snapshot, err := s.snapshots.GetSnapshot(id)
	if err != nil {
		return nil, apperr.Database(err)
	}
	if snapshot == nil {
		return nil, apperr.NotFound("Snapshot not found", "النسخة غير موجودة")
	}
	return snapshot, nil
}

// DeleteSnapshot removes a snapshot
func (s *SnapshotService) DeleteSnapshot(actorID int64, id int64) error {
	if err := s.snapshots.DeleteSnapshot(id); err != nil {
		if isNoRows(err) {
			return apperr.NotFound("Snapshot not found", "النسخة غير موجودة")
		}
		return apperr.Database(err)
	}
	s.auditWith(&actorID, models.ActionSnapshotDeleted, fmt.Sprintf("%d", id), "")
	return nil
}

// IsBackupNeeded reports whether an automatic backup is due
func (s *SnapshotService) IsBackupNeeded() (bool, error) {
	cfg, err := s.config.GetConfig()
	if err != nil {
		return false, apperr.Database(err)
	}
	if !cfg.Enabled {
		return false, nil
	}

	latest, err := s.snapshots.LatestAutoBackup()
	if err != nil {
		return false, apperr.Database(err)
	}
	if latest == nil {
		return true, nil
	}

	interval := time.Duration(cfg.IntervalHours) * time.Hour
	return s.now().Sub(latest.CreatedAt) >= interval, nil
}

// RunScheduledBackup creates an automatic backup if one is due, then applies
// retention. The run outcome is recorded on the backup configuration either way.
func (s *SnapshotService) RunScheduledBackup(ctx context.Context) (bool, error) {
	needed, err := s.IsBackupNeeded()
	if err != nil {
		return false, err
	}
	if !needed {
		return false, nil
	}

	if _, err := s.CreateSnapshot(ctx, "", models.SnapshotAutoBackup, nil); err != nil {
		if recErr := s.config.RecordRun(models.BackupRunFailed, err.Error(), s.now()); recErr != nil {
			s.log.WithError(recErr).Warn("failed to record backup run")
		}
		return false, err
	}

	if err := s.CleanupOldBackups(); err != nil {
		s.log.WithError(err).Warn("backup retention cleanup failed")
	}

	if err := s.config.RecordRun(models.BackupRunOK, "", s.now()); err != nil {
		s.log.WithError(err).Warn("failed to record backup run")
	}
	return true, nil
}

// CleanupOldBackups enforces both retention policies on AUTO_BACKUP
// snapshots: at most MaxBackups kept, and none older than RetentionDays.
// Manual and pre-restore snapshots are never touched.
func (s *SnapshotService) CleanupOldBackups() error {
	cfg, err := s.config.GetConfig()
	if err != nil {
		return apperr.Database(err)
	}

	if cfg.MaxBackups > 0 {
		ids, err := s.snapshots.ListAutoBackupIDs()
		if err != nil {
			return apperr.Database(err)
		}
		for _, id := range idsBeyond(ids, cfg.MaxBackups) {
			if err := s.snapshots.DeleteSnapshot(id); err != nil && !isNoRows(err) {
				return apperr.Database(err)
			}
		}
	}

	if cfg.RetentionDays > 0 {
		cutoff := s.now().AddDate(0, 0, -cfg.RetentionDays)
		deleted, err := s.snapshots.DeleteAutoBackupsOlderThan(cutoff)
		if err != nil {
			return apperr.Database(err)
		}
		if deleted > 0 {
			s.log.WithField("deleted", deleted).Info("expired auto backups removed")
		}
	}
	return nil
}

// RestoreResult reports the outcome of a destructive restore
type RestoreResult struct {
	SnapshotID      int64    `json:"snapshotId"`
	PreRestoreID    int64    `json:"preRestoreSnapshotId"`
	RestoredCount   int      `json:"restoredCount"`
	FailedCount     int      `json:"failedCount"`
	Errors          []string `json:"errors,omitempty"`
	PreviousMembers int      `json:"previousMembers"`
}

// RestoreFromSnapshot replaces the entire member set with a snapshot's
// contents. A PRE_RESTORE snapshot of the current state is captured first.
// Rows that fail to insert are skipped and reported, the restore continues.
func (s *SnapshotService) RestoreFromSnapshot(ctx context.Context, actorID int64, snapshotID int64) (*RestoreResult, error) {
	snapshot, err := s.GetSnapshot(snapshotID)
	if err != nil {
		return nil, err
	}

	var members []models.FamilyMember
	if err := json.Unmarshal([]byte(snapshot.TreeData), &members); err != nil {
		return nil, apperr.Validation("Invalid JSON data", "بيانات JSON غير صالحة")
	}

	previousCount, err := s.members.CountMembers()
	if err != nil {
		return nil, apperr.Database(err)
	}

	preRestore, err := s.CreateSnapshot(ctx, fmt.Sprintf("Before restore of #%d", snapshotID), models.SnapshotPreRestore, &actorID)
	if err != nil {
		return nil, err
	}

	if err := s.members.DeleteAllMembers(); err != nil {
		return nil, apperr.Database(err)
	}

	result := &RestoreResult{
		SnapshotID:      snapshotID,
		PreRestoreID:    preRestore.ID,
		PreviousMembers: previousCount,
	}
	for i := range members {
		m := members[i]
		if err := s.members.CreateMember(&m); err != nil {
			result.FailedCount++
			result.Errors = append(result.Errors, fmt.Sprintf("member %s: %v", m.ID, err))
			continue
		}
		result.RestoredCount++
	}

	s.auditWith(&actorID, models.ActionSnapshotRestored, fmt.Sprintf("%d", snapshotID),
		fmt.Sprintf("restored %d, failed %d", result.RestoredCount, result.FailedCount))
	s.log.WithActor(actorID).WithField("snapshot_id", snapshotID).
		WithField("restored", result.RestoredCount).WithField("failed", result.FailedCount).
		Info("snapshot restored")
	return result, nil
}

// IntegrityReport describes the result of verifying a snapshot
type IntegrityReport struct {
	SnapshotID    int64    `json:"snapshotId"`
	Valid         bool     `json:"valid"`
	MemberCount   int      `json:"memberCount"`
	ExpectedCount int      `json:"expectedCount"`
	Issues        []string `json:"issues,omitempty"`
}

// VerifyBackupIntegrity checks that a snapshot's tree data parses, matches
// its recorded member count, carries the required fields on every member,
// and contains no duplicate ids or dangling father references. Missing
// required fields are reported once per field, not once per member.
func (s *SnapshotService) VerifyBackupIntegrity(snapshotID int64) (*IntegrityReport, error) {
	snapshot, err := s.GetSnapshot(snapshotID)
	if err != nil {
		return nil, err
	}

	report := &IntegrityReport{SnapshotID: snapshotID, ExpectedCount: snapshot.MemberCount}

	var members []models.FamilyMember
	if err := json.Unmarshal([]byte(snapshot.TreeData), &members); err != nil {
		report.Issues = append(report.Issues, "Invalid JSON data")
		return report, nil
	}
	report.MemberCount = len(members)

	if len(members) != snapshot.MemberCount {
		report.Issues = append(report.Issues,
			fmt.Sprintf("member count mismatch: recorded %d, found %d", snapshot.MemberCount, len(members)))
	}

	var missingID, missingName bool
	seen := make(map[string]bool, len(members))
	for i, m := range members {
		if m.ID == "" {
			if !missingID {
				report.Issues = append(report.Issues, fmt.Sprintf("member at index %d has no id", i))
				missingID = true
			}
		} else {
			if seen[m.ID] {
				report.Issues = append(report.Issues, "duplicate member id "+m.ID)
			}
			seen[m.ID] = true
		}
		if m.FirstName == "" && !missingName {
			report.Issues = append(report.Issues, fmt.Sprintf("member at index %d has no firstName", i))
			missingName = true
		}
	}
	for _, m := range members {
		if m.FatherID != nil && !seen[*m.FatherID] {
			report.Issues = append(report.Issues,
				fmt.Sprintf("member %s references missing father %s", m.ID, *m.FatherID))
		}
	}

	report.Valid = len(report.Issues) == 0
	return report, nil
}

// BuildBackupDocument assembles the downloadable backup file for a snapshot
func (s *SnapshotService) BuildBackupDocument(snapshotID int64) (*models.BackupDocument, error) {
	snapshot, err := s.GetSnapshot(snapshotID)
	if err != nil {
		return nil, err
	}

	var members []models.FamilyMember
	if err := json.Unmarshal([]byte(snapshot.TreeData), &members); err != nil {
		return nil, apperr.Validation("Invalid JSON data", "بيانات JSON غير صالحة")
	}

	return &models.BackupDocument{
		SnapshotID:   snapshot.ID,
		SnapshotName: snapshot.Name,
		Members:      members,
		Metadata: models.BackupMetadata{
			ExportedAt: s.now(),
			Format:     models.BackupDocumentFormat,
		},
	}, nil
}

// GetBackupConfig returns the current backup configuration
func (s *SnapshotService) GetBackupConfig() (*models.BackupConfig, error) {
	cfg, err := s.config.GetConfig()
	if err != nil {
		return nil, apperr.Database(err)
	}
	return cfg, nil
}

// UpdateBackupConfig validates and stores new backup settings
func (s *SnapshotService) UpdateBackupConfig(cfg *models.BackupConfig) error {
	if cfg.IntervalHours < 1 {
		return apperr.Validation("Backup interval must be at least one hour", "يجب أن تكون فترة النسخ ساعة واحدة على الأقل")
	}
	if cfg.MaxBackups < 1 {
		return apperr.Validation("Max backups must be at least one", "الحد الأقصى للنسخ يجب أن يكون واحداً على الأقل")
	}
	if cfg.RetentionDays < 1 {
		return apperr.Validation("Retention must be at least one day", "مدة الاحتفاظ يجب أن تكون يوماً واحداً على الأقل")
	}
	if err := s.config.UpdateConfig(cfg); err != nil {
		return apperr.Database(err)
	}
	return nil
}

func (s *SnapshotService) recordMetric(snapshotType models.SnapshotType, result string) {
	if s.metrics != nil {
		s.metrics.RecordSnapshot(string(snapshotType), result)
	}
}

func (s *SnapshotService) auditWith(actorID *int64, action, targetID, detail string) {
	entry := &models.ActivityLog{
		ActorID:    actorID,
		Action:     action,
		TargetType: "snapshot",
		TargetID:   targetID,
		Detail:     detail,
	}
	if err := s.activity.Record(entry); err != nil {
		s.log.WithError(err).WithField("action", action).Warn("failed to record activity")
	}
}

// idsBeyond returns the ids after the first keep entries. Input is newest first.
func idsBeyond(ids []int64, keep int) []int64 {
	if len(ids) <= keep {
		return nil
	}
	return ids[keep:]
}
