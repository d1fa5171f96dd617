package handlers

import (
	"net/http"
	"strconv"

	"familytree/internal/logger"
	"familytree/internal/models"
	"familytree/internal/service"
)

// AdminHandler serves user, invite and audit administration
type AdminHandler struct {
	adminService *service.AdminService
	log          *logger.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(adminService *service.AdminService, log *logger.Logger) *AdminHandler {
	return &AdminHandler{adminService: adminService, log: log}
}

// ListUsers handles GET /api/admin/users. Branch leaders only see their own
// branch.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.adminService.ListUsers(GetUserFromContext(r.Context()))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

// UpdateUserRole handles PUT /api/admin/users/{id}
func (h *AdminHandler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	var req struct {
		Role   models.Role `json:"role"`
		Branch string      `json:"branch"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}

	actor := GetUserFromContext(r.Context())
	updated, err := h.adminService.UpdateUserRole(actor, id, req.Role, req.Branch)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// CreateInvite handles POST /api/admin/invites
func (h *AdminHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email  string      `json:"email"`
		Role   models.Role `json:"role"`
		Branch string      `json:"branch"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}

	actor := GetUserFromContext(r.Context())
	invite, err := h.adminService.CreateInvite(r.Context(), actor, req.Email, req.Role, req.Branch)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, invite)
}

// ListInvites handles GET /api/admin/invites
func (h *AdminHandler) ListInvites(w http.ResponseWriter, r *http.Request) {
	invites, err := h.adminService.ListInvites(GetUserFromContext(r.Context()))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, invites)
}

// RevokeInvite handles DELETE /api/admin/invites/{id}
func (h *AdminHandler) RevokeInvite(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	if err := h.adminService.RevokeInvite(id); err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// ListActivity handles GET /api/admin/activity, newest first, ?limit= capped
// by the service.
func (h *AdminHandler) ListActivity(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.adminService.ListActivity(limit)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}
