package handlers

import (
	"net/http"
	"time"

	"familytree/internal/logger"
	"familytree/internal/models"
	"familytree/internal/service"
)

// BroadcastHandler serves announcements and their RSVPs
type BroadcastHandler struct {
	broadcastService *service.BroadcastService
	log              *logger.Logger
}

// NewBroadcastHandler creates a new broadcast handler
func NewBroadcastHandler(broadcastService *service.BroadcastService, log *logger.Logger) *BroadcastHandler {
	return &BroadcastHandler{broadcastService: broadcastService, log: log}
}

// Create handles POST /api/broadcasts
func (h *BroadcastHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string     `json:"title"`
		Body        string     `json:"body"`
		ScheduledAt *time.Time `json:"scheduledAt"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}

	user := GetUserFromContext(r.Context())
	broadcast, err := h.broadcastService.CreateBroadcast(user.ID, req.Title, req.Body, req.ScheduledAt)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, broadcast)
}

// List handles GET /api/broadcasts
func (h *BroadcastHandler) List(w http.ResponseWriter, r *http.Request) {
	broadcasts, err := h.broadcastService.ListBroadcasts()
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, broadcasts)
}

// Get handles GET /api/broadcasts/{id}
func (h *BroadcastHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	broadcast, err := h.broadcastService.GetBroadcast(id)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, broadcast)
}

// Delete handles DELETE /api/broadcasts/{id}
func (h *BroadcastHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	if err := h.broadcastService.DeleteBroadcast(id); err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Send handles POST /api/broadcasts/{id}/send, dispatching a broadcast
// immediately regardless of its schedule.
func (h *BroadcastHandler) Send(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	user := GetUserFromContext(r.Context())
	broadcast, err := h.broadcastService.SendBroadcast(r.Context(), user.ID, id)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, broadcast)
}

// RSVP handles POST /api/broadcasts/{id}/rsvp. Repeat calls replace the
// caller's previous response.
func (h *BroadcastHandler) RSVP(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	var req struct {
		Response models.RSVPResponse `json:"response"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}

	user := GetUserFromContext(r.Context())
	if err := h.broadcastService.RecordRSVP(id, user.ID, req.Response); err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

// ListRSVPs handles GET /api/broadcasts/{id}/rsvps
func (h *BroadcastHandler) ListRSVPs(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	rsvps, err := h.broadcastService.GetRSVPs(id)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, rsvps)
}

// RSVPSummary handles GET /api/broadcasts/{id}/rsvps/summary
func (h *BroadcastHandler) RSVPSummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	summary, err := h.broadcastService.GetRSVPSummary(id)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}
