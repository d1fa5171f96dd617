package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"familytree/internal/apperr"
	"familytree/internal/models"
)

func newSnapshotFixture() (*SnapshotService, *fakeMemberStore, *fakeSnapshotStore, *fakeConfigStore) {
	members := newFakeMemberStore()
	snapshots := newFakeSnapshotStore()
	config := newFakeConfigStore()
	activity := &fakeActivityStore{}
	svc := NewSnapshotService(snapshots, members, config, activity, nil, nil, testLogger())
	return svc, members, snapshots, config
}

func seedMembers(members *fakeMemberStore, n int) {
	for i := 0; i < n; i++ {
		id, _ := members.NextMemberID(1)
		_ = members.CreateMember(&models.FamilyMember{
			ID:         id,
			FirstName:  "Member",
			Gender:     "Male",
			Generation: 1,
			Status:     models.StatusLiving,
		})
	}
}

func TestCreateSnapshotCapturesAllMembers(t *testing.T) {
	svc, members, _, _ := newSnapshotFixture()
	seedMembers(members, 3)

	creator := int64(1)
	snapshot, err := svc.CreateSnapshot(context.Background(), "before reunion", models.SnapshotManual, &creator)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if snapshot.MemberCount != 3 {
		t.Errorf("member count = %d, want 3", snapshot.MemberCount)
	}
	var captured []models.FamilyMember
	if err := json.Unmarshal([]byte(snapshot.TreeData), &captured); err != nil {
		t.Fatalf("tree data is not valid JSON: %v", err)
	}
	if len(captured) != 3 {
		t.Errorf("captured %d members, want 3", len(captured))
	}
}

func TestCreateSnapshotEmptyTree(t *testing.T) {
	svc, _, _, _ := newSnapshotFixture()

	snapshot, err := svc.CreateSnapshot(context.Background(), "", models.SnapshotManual, nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if snapshot.MemberCount != 0 {
		t.Errorf("member count = %d, want 0", snapshot.MemberCount)
	}
	if snapshot.TreeData != "[]" {
		t.Errorf("tree data = %q, want empty array", snapshot.TreeData)
	}
	if snapshot.Name == "" {
		t.Error("default name not generated")
	}
}

func TestIsBackupNeeded(t *testing.T) {
	svc, _, snapshots, config := newSnapshotFixture()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	needed, err := svc.IsBackupNeeded()
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !needed {
		t.Error("backup should be needed when none exists")
	}

	recent := base.Add(-2 * time.Hour)
	snapshots.clock = &recent
	if _, err := snapshots.CreateSnapshot(&models.Snapshot{
		Name: "auto", SnapshotType: models.SnapshotAutoBackup, TreeData: "[]",
	}); err != nil {
		t.Fatal(err)
	}

	needed, err = svc.IsBackupNeeded()
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if needed {
		t.Error("backup should not be needed 2h after the last one on a 24h interval")
	}

	svc.now = func() time.Time { return base.Add(25 * time.Hour) }
	needed, err = svc.IsBackupNeeded()
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !needed {
		t.Error("backup should be needed once the interval has elapsed")
	}

	config.cfg.Enabled = false
	needed, err = svc.IsBackupNeeded()
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if needed {
		t.Error("disabled config must never report a needed backup")
	}
}

func TestRunScheduledBackupRecordsRun(t *testing.T) {
	svc, members, snapshots, config := newSnapshotFixture()
	seedMembers(members, 2)

	ran, err := svc.RunScheduledBackup(context.Background())
	if err != nil {
		t.Fatalf("scheduled backup failed: %v", err)
	}
	if !ran {
		t.Fatal("backup should have run")
	}

	latest, _ := snapshots.LatestAutoBackup()
	if latest == nil {
		t.Fatal("no auto backup created")
	}
	if len(config.runs) != 1 || config.runs[0] != models.BackupRunOK {
		t.Errorf("runs = %v, want one ok", config.runs)
	}

	// Immediately after, nothing is due
	ran, err = svc.RunScheduledBackup(context.Background())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if ran {
		t.Error("backup ran again with nothing due")
	}
}

func TestCleanupOldBackupsMaxCount(t *testing.T) {
	svc, _, snapshots, config := newSnapshotFixture()
	config.cfg.MaxBackups = 2
	config.cfg.RetentionDays = 365

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		snapshots.clock = &at
		if _, err := snapshots.CreateSnapshot(&models.Snapshot{
			Name: "auto", SnapshotType: models.SnapshotAutoBackup, TreeData: "[]",
		}); err != nil {
			t.Fatal(err)
		}
	}
	// A manual snapshot must survive any cleanup
	manualAt := base.Add(-48 * time.Hour)
	snapshots.clock = &manualAt
	manualID, _ := snapshots.CreateSnapshot(&models.Snapshot{
		Name: "keep me", SnapshotType: models.SnapshotManual, TreeData: "[]",
	})

	if err := svc.CleanupOldBackups(); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}

	ids, _ := snapshots.ListAutoBackupIDs()
	if len(ids) != 2 {
		t.Errorf("auto backups after cleanup = %d, want 2", len(ids))
	}
	if s, _ := snapshots.GetSnapshot(manualID); s == nil {
		t.Error("manual snapshot was deleted by retention")
	}
}

func TestCleanupOldBackupsRetentionDays(t *testing.T) {
	svc, _, snapshots, config := newSnapshotFixture()
	config.cfg.MaxBackups = 100
	config.cfg.RetentionDays = 30

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	old := base.AddDate(0, 0, -40)
	snapshots.clock = &old
	oldID, _ := snapshots.CreateSnapshot(&models.Snapshot{
		Name: "old auto", SnapshotType: models.SnapshotAutoBackup, TreeData: "[]",
	})
	fresh := base.AddDate(0, 0, -5)
	snapshots.clock = &fresh
	freshID, _ := snapshots.CreateSnapshot(&models.Snapshot{
		Name: "fresh auto", SnapshotType: models.SnapshotAutoBackup, TreeData: "[]",
	})

	if err := svc.CleanupOldBackups(); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}

	if s, _ := snapshots.GetSnapshot(oldID); s != nil {
		t.Error("40 day old auto backup survived a 30 day retention")
	}
	if s, _ := snapshots.GetSnapshot(freshID); s == nil {
		t.Error("5 day old auto backup was deleted")
	}
}

func TestRestoreFromSnapshot(t *testing.T) {
	svc, members, snapshots, _ := newSnapshotFixture()
	seedMembers(members, 2)

	creator := int64(1)
	snapshot, err := svc.CreateSnapshot(context.Background(), "good state", models.SnapshotManual, &creator)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// The tree changes after the snapshot
	seedMembers(members, 3)
	if count, _ := members.CountMembers(); count != 5 {
		t.Fatalf("setup: count = %d, want 5", count)
	}

	result, err := svc.RestoreFromSnapshot(context.Background(), 1, snapshot.ID)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	if result.RestoredCount != 2 {
		t.Errorf("restored = %d, want 2", result.RestoredCount)
	}
	if result.FailedCount != 0 {
		t.Errorf("failed = %d, want 0", result.FailedCount)
	}
	if result.PreviousMembers != 5 {
		t.Errorf("previous members = %d, want 5", result.PreviousMembers)
	}
	if count, _ := members.CountMembers(); count != 2 {
		t.Errorf("member count after restore = %d, want 2", count)
	}

	// A pre-restore snapshot of the 5-member state must exist
	pre, _ := snapshots.GetSnapshot(result.PreRestoreID)
	if pre == nil {
		t.Fatal("pre-restore snapshot missing")
	}
	if pre.SnapshotType != models.SnapshotPreRestore {
		t.Errorf("pre-restore type = %q", pre.SnapshotType)
	}
	if pre.MemberCount != 5 {
		t.Errorf("pre-restore captured %d members, want 5", pre.MemberCount)
	}
}

func TestRestoreCountsPerRowFailures(t *testing.T) {
	svc, members, _, _ := newSnapshotFixture()
	seedMembers(members, 3)

	creator := int64(1)
	snapshot, err := svc.CreateSnapshot(context.Background(), "state", models.SnapshotManual, &creator)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	members.failIDs["G1-0002"] = true

	result, err := svc.RestoreFromSnapshot(context.Background(), 1, snapshot.ID)
	if err != nil {
		t.Fatalf("restore should not abort on row failures: %v", err)
	}
	if result.RestoredCount != 2 {
		t.Errorf("restored = %d, want 2", result.RestoredCount)
	}
	if result.FailedCount != 1 {
		t.Errorf("failed = %d, want 1", result.FailedCount)
	}
	if len(result.Errors) != 1 {
		t.Errorf("errors = %v, want one entry", result.Errors)
	}
}

func TestRestoreInvalidJSON(t *testing.T) {
	svc, _, snapshots, _ := newSnapshotFixture()
	id, _ := snapshots.CreateSnapshot(&models.Snapshot{
		Name: "corrupt", SnapshotType: models.SnapshotManual, TreeData: "{not json",
	})

	_, err := svc.RestoreFromSnapshot(context.Background(), 1, id)
	appErr := apperr.As(err)
	if appErr == nil || appErr.Code != apperr.CodeValidation {
		t.Fatalf("expected validation error for corrupt data, got %v", err)
	}
	if appErr.Message != "Invalid JSON data" {
		t.Errorf("message = %q", appErr.Message)
	}
}

func TestVerifyBackupIntegrity(t *testing.T) {
	svc, members, snapshots, _ := newSnapshotFixture()
	seedMembers(members, 2)

	creator := int64(1)
	snapshot, err := svc.CreateSnapshot(context.Background(), "state", models.SnapshotManual, &creator)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	report, err := svc.VerifyBackupIntegrity(snapshot.ID)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !report.Valid {
		t.Errorf("clean snapshot reported invalid: %v", report.Issues)
	}

	// Corrupt data parses as a problem, not an error
	corruptID, _ := snapshots.CreateSnapshot(&models.Snapshot{
		Name: "corrupt", SnapshotType: models.SnapshotManual, TreeData: "{not json", MemberCount: 2,
	})
	report, err = svc.VerifyBackupIntegrity(corruptID)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if report.Valid {
		t.Error("corrupt snapshot reported valid")
	}

	// Dangling father reference
	danglingID, _ := snapshots.CreateSnapshot(&models.Snapshot{
		Name:         "dangling",
		SnapshotType: models.SnapshotManual,
		TreeData:     `[{"id":"G2-0001","firstName":"A","gender":"Male","generation":2,"status":"Living","fatherId":"G1-0009"}]`,
		MemberCount:  1,
	})
	report, err = svc.VerifyBackupIntegrity(danglingID)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if report.Valid {
		t.Error("dangling father reference not detected")
	}

	// A member without a first name fails verification even when the count
	// and ids line up
	namelessID, _ := snapshots.CreateSnapshot(&models.Snapshot{
		Name:         "nameless",
		SnapshotType: models.SnapshotManual,
		TreeData:     `[{"id":"G1-0001","gender":"Male","generation":1,"status":"Living"}]`,
		MemberCount:  1,
	})
	report, err = svc.VerifyBackupIntegrity(namelessID)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if report.Valid {
		t.Error("member without firstName not detected")
	}
}

func TestBuildBackupDocument(t *testing.T) {
	svc, members, _, _ := newSnapshotFixture()
	seedMembers(members, 2)

	creator := int64(1)
	snapshot, err := svc.CreateSnapshot(context.Background(), "export me", models.SnapshotManual, &creator)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	doc, err := svc.BuildBackupDocument(snapshot.ID)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if doc.SnapshotName != "export me" {
		t.Errorf("snapshot name = %q", doc.SnapshotName)
	}
	if len(doc.Members) != 2 {
		t.Errorf("members = %d, want 2", len(doc.Members))
	}
	if doc.Metadata.Format != models.BackupDocumentFormat {
		t.Errorf("format = %q, want %q", doc.Metadata.Format, models.BackupDocumentFormat)
	}
}

func TestUpdateBackupConfigValidation(t *testing.T) {
	svc, _, _, config := newSnapshotFixture()

	err := svc.UpdateBackupConfig(&models.BackupConfig{IntervalHours: 0, MaxBackups: 5, RetentionDays: 30})
	if apperr.As(err) == nil {
		t.Error("zero interval accepted")
	}

	if err := svc.UpdateBackupConfig(&models.BackupConfig{Enabled: true, IntervalHours: 12, MaxBackups: 5, RetentionDays: 30}); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if config.cfg.IntervalHours != 12 {
		t.Errorf("interval = %d, want 12", config.cfg.IntervalHours)
	}
}
