package handlers

import (
	"net/http"

	"familytree/internal/database"
	"familytree/internal/logger"
)

// HealthHandler reports process and database health
type HealthHandler struct {
	db  *database.DB
	log *logger.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *database.DB, log *logger.Logger) *HealthHandler {
	return &HealthHandler{db: db, log: log}
}

// Health handles GET /api/health. Returns 503 when the database probe fails
// so load balancers stop routing to a dead instance.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(); err != nil {
		h.log.WithError(err).Error("health probe failed")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unhealthy","checks":{"database":"down"}}`))
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"checks": map[string]string{"database": "up"},
	})
}
