package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"familytree/internal/apperr"
	"familytree/internal/logger"
	"familytree/internal/models"
	"familytree/internal/service"
)

// SnapshotHandler serves the backup and restore endpoints
type SnapshotHandler struct {
	snapshotService *service.SnapshotService
	log             *logger.Logger
}

// NewSnapshotHandler creates a new snapshot handler
func NewSnapshotHandler(snapshotService *service.SnapshotService, log *logger.Logger) *SnapshotHandler {
	return &SnapshotHandler{snapshotService: snapshotService, log: log}
}

// List handles GET /api/admin/snapshots. Tree data is never included in listings.
func (h *SnapshotHandler) List(w http.ResponseWriter, r *http.Request) {
	snapshots, err := h.snapshotService.ListSnapshots()
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, snapshots)
}

// Create handles POST /api/admin/snapshots
func (h *SnapshotHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}

	user := GetUserFromContext(r.Context())
	snapshot, err := h.snapshotService.CreateSnapshot(r.Context(), req.Name, models.SnapshotManual, &user.ID)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, snapshot)
}

// Get handles GET /api/admin/snapshots/{id}. With ?download=true the
// snapshot streams as a standalone backup file instead of the envelope.
func (h *SnapshotHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	if r.URL.Query().Get("download") == "true" {
		h.download(w, id)
		return
	}
	snapshot, err := h.snapshotService.GetSnapshot(id)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

// Delete handles DELETE /api/admin/snapshots/{id}
func (h *SnapshotHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	user := GetUserFromContext(r.Context())
	if err := h.snapshotService.DeleteSnapshot(user.ID, id); err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Restore handles POST /api/admin/snapshots/{id} with {"action": "restore"}.
// This replaces the whole member set, a PRE_RESTORE snapshot is taken first.
func (h *SnapshotHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	var req struct {
		Action string `json:"action"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	if req.Action != "restore" {
		respondError(w, h.log, apperr.Validation("Action must be restore", "الإجراء يجب أن يكون استعادة"))
		return
	}
	user := GetUserFromContext(r.Context())
	result, err := h.snapshotService.RestoreFromSnapshot(r.Context(), user.ID, id)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Verify handles GET /api/admin/snapshots/{id}/verify
func (h *SnapshotHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	report, err := h.snapshotService.VerifyBackupIntegrity(id)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (h *SnapshotHandler) download(w http.ResponseWriter, id int64) {
	document, err := h.snapshotService.BuildBackupDocument(id)
	if err != nil {
		respondError(w, h.log, err)
		return
	}

	filename := fmt.Sprintf("backup_%s_%s.json",
		sanitizeFilename(document.SnapshotName),
		document.Metadata.ExportedAt.Format("2006-01-02"))

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_ = json.NewEncoder(w).Encode(document)
}

// GetBackupConfig handles GET /api/admin/backup-config
func (h *SnapshotHandler) GetBackupConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.snapshotService.GetBackupConfig()
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

// UpdateBackupConfig handles PUT /api/admin/backup-config
func (h *SnapshotHandler) UpdateBackupConfig(w http.ResponseWriter, r *http.Request) {
	var cfg models.BackupConfig
	if err := decodeBody(r, &cfg); err != nil {
		respondError(w, h.log, err)
		return
	}
	if err := h.snapshotService.UpdateBackupConfig(&cfg); err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, &cfg)
}

// CheckBackup handles GET /api/backup/check, reporting whether an automatic
// backup is due. Unauthenticated so external schedulers can poll it.
func (h *SnapshotHandler) CheckBackup(w http.ResponseWriter, r *http.Request) {
	needed, err := h.snapshotService.IsBackupNeeded()
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"backupNeeded": needed})
}

// RunBackup handles POST /api/backup/check, running the scheduled backup if
// one is due. Idempotent, a second call inside the interval is a no-op.
// Retention cleanup happens inside the scheduled run.
func (h *SnapshotHandler) RunBackup(w http.ResponseWriter, r *http.Request) {
	ran, err := h.snapshotService.RunScheduledBackup(r.Context())
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"backupPerformed": ran})
}

func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", "\"", "", ":", "-")
	return replacer.Replace(name)
}
